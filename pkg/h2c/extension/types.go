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

// Package extension implements the Extension Registry (spec §4.6):
// loading, classifying and priority-ordering converters, providers,
// transforms and ingress rewriters, and dispatching to them the way the
// Pipeline Driver's phases require.
package extension

import (
	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
)

// DefaultPriority is applied to any capability that does not specify one
// (spec §4.6).
const DefaultPriority = 100

// ConverterResult is produced by a converter invocation: zero or more
// synthetic manifests injected back into the index for downstream
// converters, and zero or more warnings (spec §3).
type ConverterResult struct {
	SyntheticManifests []*manifest.Manifest
	Warnings           []string
}

// ProviderResult extends ConverterResult with compose services and
// optional ingress entries a provider wants injected directly (spec §3).
// Embedding ConverterResult, rather than duplicating its fields, is what
// lets dispatch.go detect "has a Services field" generically: any struct
// that embeds or structurally matches ConverterResult's shape plus a
// Services field is a provider result, in-process or not.
type ProviderResult struct {
	ConverterResult
	Services       map[string]*artifact.Service
	IngressEntries []artifact.IngressEntry
}

// Converter claims a set of manifest kinds and converts one at a time
// (spec §4.6). Implementations may return either a ConverterResult, a
// ProviderResult, or nil (no opinion).
type Converter interface {
	Kinds() map[string]bool
	Convert(m *manifest.Manifest, ctx *convertctx.Context) (interface{}, error)
}

// Transform runs once per pipeline, after the ingress build and alias
// injection, over the full compose service and ingress entry sets (spec
// §4.6, phase 7).
type Transform interface {
	Transform(services map[string]*artifact.Service, entries []artifact.IngressEntry, ctx *convertctx.Context) error
}

// IngressRewriter translates a controller-specific Ingress manifest into
// routing directives (spec §4.6, §4.5).
type IngressRewriter interface {
	Name() string
	Match(m *manifest.Manifest) bool
	Rewrite(m *manifest.Manifest, ctx *convertctx.Context) (artifact.IngressEntry, error)
}

// Prioritized is implemented by any capability that wants to run earlier
// or later than DefaultPriority; registries sort ascending (lower runs
// first).
type Prioritized interface {
	Priority() int
}

func priorityOf(v interface{}) int {
	if p, ok := v.(Prioritized); ok {
		return p.Priority()
	}
	return DefaultPriority
}
