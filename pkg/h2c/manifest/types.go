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

// Package manifest implements the Manifest Index: parsing of a directory of
// rendered Kubernetes manifests into classified, immutable, null-safe
// documents that the rest of the pipeline can query by (kind, name).
package manifest

import (
	"gopkg.in/yaml.v3"
)

// Manifest is a single parsed Kubernetes-shaped document. It is immutable
// after construction except that the Pipeline Driver may insert wholly new
// synthetic Manifest values into the index during converter fan-out.
type Manifest struct {
	Kind        string
	Name        string
	Namespace   string
	Annotations StringMap
	Labels      StringMap

	// Synthetic is true for manifests injected by an extension converter
	// rather than read from the input directory.
	Synthetic bool
	// SyntheticID uniquely tags a synthetic manifest so the fan-out cycle
	// guard can tell repeated re-insertions of the "same" object apart from
	// genuinely new ones produced by a later cycle.
	SyntheticID string

	// raw holds the full original document so kind-specific code can decode
	// whatever nested shape it needs without the index having to know every
	// Kubernetes kind up front.
	raw *yaml.Node
}

// Decode unmarshals the manifest's raw document into dst, the same as
// calling yaml.Unmarshal against the original bytes. A nil raw document
// (synthetic manifests built directly in Go) decodes as a no-op.
func (m *Manifest) Decode(dst interface{}) error {
	if m == nil || m.raw == nil {
		return nil
	}
	return m.raw.Decode(dst)
}

// Key identifies a manifest by (kind, name) for ManifestIndex lookups.
type Key struct {
	Kind string
	Name string
}

// StringMap is a map[string]string used for the null-safe field read rule
// (spec §4.1): annotations, labels, and similar maps routinely appear as
// null from conditional templating. yaml.v3 does not call UnmarshalYAML
// for a null or absent field, so such a field is left nil; a nil StringMap
// still reads as empty, and the Manifest Index replaces a nil
// Annotations/Labels with an empty map at ingestion.
type StringMap map[string]string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringMap) UnmarshalYAML(value *yaml.Node) error {
	*s = StringMap{}
	if value == nil || value.Tag == "!!null" {
		return nil
	}
	var tmp map[string]string
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	for k, v := range tmp {
		(*s)[k] = v
	}
	return nil
}

// StringSlice is a []string list field. As with StringMap, a null or
// absent list is left nil by yaml.v3, which reads as an empty slice.
type StringSlice []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringSlice) UnmarshalYAML(value *yaml.Node) error {
	*s = StringSlice{}
	if value == nil || value.Tag == "!!null" {
		return nil
	}
	var tmp []string
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*s = tmp
	return nil
}
