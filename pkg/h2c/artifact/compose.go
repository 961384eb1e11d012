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

// Package artifact holds the output-side data model shared by every stage
// of the pipeline that produces or mutates Compose services and Caddy
// ingress entries: the Service Builder, Ingress Builder, extensions, the
// Rewrite Engine and the Output Assembler all read and write these types.
package artifact

// Service is the compose-level spec attached to a name (spec §3,
// "ComposeService"). Fields are tagged for direct yaml.v3 marshalling into
// compose.yml.
type Service struct {
	Name string `yaml:"-"`

	Image      string   `yaml:"image,omitempty"`
	Entrypoint []string `yaml:"entrypoint,omitempty"`
	Command    []string `yaml:"command,omitempty"`

	// Environment preserves insertion order the way spec §3 requires
	// ("ordered mapping"); a plain Go map would not.
	Environment OrderedEnv `yaml:"environment,omitempty"`

	Ports   []string `yaml:"ports,omitempty"`
	Volumes []string `yaml:"volumes,omitempty"`

	Networks map[string]ServiceNetwork `yaml:"networks,omitempty"`

	Restart string `yaml:"restart,omitempty"`

	Hostname string `yaml:"hostname,omitempty"`

	// NetworkMode, when set (sidecars), excludes Networks/Ports per spec
	// invariant: "sidecar services ... networks: is absent".
	NetworkMode string `yaml:"network_mode,omitempty"`

	DependsOn []string `yaml:"depends_on,omitempty"`

	Labels map[string]string `yaml:"labels,omitempty"`
}

// ServiceNetwork is the per-network attachment block of a compose service.
type ServiceNetwork struct {
	Aliases []string `yaml:"aliases,omitempty"`
}

// EnvEntry is one ordered environment variable.
type EnvEntry struct {
	Key   string
	Value string
}

// OrderedEnv is an insertion-ordered environment mapping: Entries returns
// the pairs in the order they were added, which a native Go map cannot do.
// It marshals as a YAML mapping (not a sequence).
type OrderedEnv struct {
	entries []EnvEntry
	index   map[string]int
}

// NewOrderedEnv returns an empty ordered environment mapping.
func NewOrderedEnv() OrderedEnv {
	return OrderedEnv{index: map[string]int{}}
}

// Set inserts or updates a key, preserving its original position on update.
func (e *OrderedEnv) Set(key, value string) {
	if e.index == nil {
		e.index = map[string]int{}
	}
	if i, ok := e.index[key]; ok {
		e.entries[i].Value = value
		return
	}
	e.index[key] = len(e.entries)
	e.entries = append(e.entries, EnvEntry{Key: key, Value: value})
}

// Get returns a key's value and whether it is present.
func (e OrderedEnv) Get(key string) (string, bool) {
	i, ok := e.index[key]
	if !ok {
		return "", false
	}
	return e.entries[i].Value, true
}

// Delete removes a key if present.
func (e *OrderedEnv) Delete(key string) {
	i, ok := e.index[key]
	if !ok {
		return
	}
	e.entries = append(e.entries[:i], e.entries[i+1:]...)
	delete(e.index, key)
	for k, idx := range e.index {
		if idx > i {
			e.index[k] = idx - 1
		}
	}
}

// Entries returns the ordered key/value pairs.
func (e OrderedEnv) Entries() []EnvEntry {
	return e.entries
}

// Len reports the number of entries.
func (e OrderedEnv) Len() int {
	return len(e.entries)
}

// MarshalYAML implements yaml.Marshaler, emitting entries as a plain
// mapping so compose.yml reads naturally instead of as a sequence of
// pairs. Insertion order is not kept on this path.
func (e OrderedEnv) MarshalYAML() (interface{}, error) {
	out := make(map[string]string, len(e.entries))
	// Order is not representable through a plain map under yaml.v3's
	// default encoder; callers that need byte-stable ordered output render
	// compose.yml through output.RenderCompose instead of the generic
	// encoder. The Output Assembler uses RenderCompose for the final file.
	for _, kv := range e.entries {
		out[kv.Key] = kv.Value
	}
	return out, nil
}

// Volume is a top-level compose volume declaration (spec §3, "Volume
// declaration").
type Volume struct {
	Driver   string `yaml:"driver,omitempty"`
	External bool   `yaml:"external,omitempty"`
}

// Project is the full compose.yml document: services, volumes, networks.
type Project struct {
	Version  string              `yaml:"version,omitempty"`
	Services map[string]*Service `yaml:"-"`
	Volumes  map[string]Volume   `yaml:"volumes,omitempty"`
	Networks map[string]Network  `yaml:"networks,omitempty"`

	// ServiceOrder fixes output order (insertion order of discovery),
	// needed since Services is keyed by name for O(1) lookup during the
	// pipeline but compose.yml output should read deployment-order, not
	// alphabetical.
	ServiceOrder []string `yaml:"-"`
}

// Network is a top-level compose network declaration.
type Network struct {
	External bool   `yaml:"external,omitempty"`
	Name     string `yaml:"name,omitempty"`
}

// NewProject returns an empty compose project.
func NewProject() *Project {
	return &Project{
		Version:  "3.8",
		Services: map[string]*Service{},
		Volumes:  map[string]Volume{},
		Networks: map[string]Network{},
	}
}

// AddService registers a service, recording first-seen order.
func (p *Project) AddService(s *Service) {
	if _, exists := p.Services[s.Name]; !exists {
		p.ServiceOrder = append(p.ServiceOrder, s.Name)
	}
	p.Services[s.Name] = s
}

// RemoveService drops a service by name, used by exclude processing.
func (p *Project) RemoveService(name string) {
	delete(p.Services, name)
	for i, n := range p.ServiceOrder {
		if n == name {
			p.ServiceOrder = append(p.ServiceOrder[:i], p.ServiceOrder[i+1:]...)
			break
		}
	}
}

// OrderedServices returns services in first-seen order.
func (p *Project) OrderedServices() []*Service {
	out := make([]*Service, 0, len(p.ServiceOrder))
	for _, name := range p.ServiceOrder {
		if s, ok := p.Services[name]; ok {
			out = append(out, s)
		}
	}
	return out
}
