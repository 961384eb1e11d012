/**
 * Copyright 2020 Appvia Ltd <info@appvia.io>
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config implements the persistent, human-editable project
// configuration file (spec §6): a versioned YAML document that survives
// re-runs, round-trips user edits, and migrates legacy keys on load.
package config

// CurrentVersion is stamped onto every freshly-written project config.
const CurrentVersion = "v1"

// DefaultVolumeRoot is used when a project config omits volume_root.
const DefaultVolumeRoot = "./data"

// DefaultFileName is the conventional name for the persisted project config.
const DefaultFileName = "h2c-project.yaml"

// Project is the root of the persisted project configuration (spec §6,
// "Project-config keys").
type Project struct {
	Version string `yaml:"version"`
	Name    string `yaml:"name" validate:"required"`

	VolumeRoot string `yaml:"volume_root,omitempty"`

	Extensions ExtensionsConfig `yaml:"extensions,omitempty"`

	Volumes map[string]VolumeOverride `yaml:"volumes,omitempty"`

	Exclude []string `yaml:"exclude,omitempty"`

	Replacements []Replacement `yaml:"replacements,omitempty"`

	// Overrides is a deep-merge mapping applied last, keyed by compose
	// service name. A null leaf value deletes the corresponding key
	// (spec §3 invariant 5). Kept as a generic mapping since its shape
	// mirrors arbitrary Compose service fields, not a fixed schema.
	Overrides map[string]map[string]interface{} `yaml:"overrides,omitempty"`

	// Services holds hand-authored extra compose services, appended after
	// the generated ones (only the keys artifact.Service models are kept).
	Services map[string]map[string]interface{} `yaml:"services,omitempty"`

	// IngressTypes maps an ingressClassName substring/exact match to the
	// canonical ingress-rewriter name that should handle it.
	IngressTypes map[string]string `yaml:"ingress_types,omitempty"`

	// DisableIngress is manual-only: never set by the pipeline itself.
	DisableIngress bool `yaml:"disable_ingress,omitempty"`

	// Network names an external Docker network for the project, instead of
	// the pipeline-managed default network.
	Network string `yaml:"network,omitempty"`
}

// ExtensionsConfig groups configuration for built-in extension-adjacent
// concerns that are part of the core (the Caddy ingress container), as
// distinct from third-party extensions loaded from --extensions-dir.
type ExtensionsConfig struct {
	Caddy CaddyConfig `yaml:"caddy,omitempty"`
}

// CaddyConfig configures the synthesised Caddy ingress container.
type CaddyConfig struct {
	Email       string `yaml:"email,omitempty"`
	TLSInternal bool   `yaml:"tls_internal,omitempty"`
}

// VolumeOverride lets a user pin a named volume's driver or host path
// instead of accepting the pipeline's default `driver: local`.
type VolumeOverride struct {
	Driver   string `yaml:"driver,omitempty"`
	HostPath string `yaml:"host_path,omitempty"`
}

// Replacement is a literal-match find/replace applied during post-process
// (spec §4.7 phase 8). Matching is literal, never regex: idempotence
// (spec invariant 4) is far easier to reason about without regex capture
// groups re-matching their own substitutions.
type Replacement struct {
	Old string `yaml:"old"`
	New string `yaml:"new"`
}

// ResolvedVolumeRoot returns the configured volume root, or the default.
func (p *Project) ResolvedVolumeRoot() string {
	if p.VolumeRoot == "" {
		return DefaultVolumeRoot
	}
	return p.VolumeRoot
}
