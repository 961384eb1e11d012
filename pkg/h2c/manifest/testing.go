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

package manifest

import "gopkg.in/yaml.v3"

// NewManifestForTesting builds a Manifest whose Decode behaves as if it
// had been read from a document shaped like body, without going through
// file-based ingestion. Exported (not a _test.go helper) so other
// packages' test suites can build ConfigMap/Secret/Service fixtures for
// the resolvers that consume a *Manifest.
func NewManifestForTesting(kind, name string, body map[string]interface{}) *Manifest {
	node := &yaml.Node{}
	// Encode then decode through yaml.Node so Decode's behaviour (and any
	// custom UnmarshalYAML on nested types) matches production exactly,
	// rather than hand-building a Node tree field by field.
	raw, err := yaml.Marshal(body)
	if err != nil {
		panic(err)
	}
	if err := yaml.Unmarshal(raw, node); err != nil {
		panic(err)
	}
	// yaml.Unmarshal into a *yaml.Node produces a DocumentNode; raw's
	// Decode callers expect the content node itself, matching loadFile's
	// per-document decode target.
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}

	return &Manifest{
		Kind: kind,
		Name: name,
		raw:  node,
	}
}
