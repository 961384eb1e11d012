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

// Package output implements the Output Assembler (spec §4.7 phase 10):
// rendering the in-memory compose project and Caddy site list to disk,
// byte-stably, the way the teacher's Manifest/Environment types render
// themselves through a shared MarshalIndent helper and the io.WriterTo
// interface.
package output

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
)

// ComposeFileVersion is the `version:` field written to compose.yml.
const ComposeFileVersion = "3.8"

// RenderCompose renders a compose project to YAML bytes in deployment
// order (artifact.Project.ServiceOrder), not alphabetical, and with each
// service's environment preserved in insertion order: both properties a
// plain map-keyed marshal of artifact.Project cannot provide, which is
// why this builds a yaml.Node document directly instead of calling
// yaml.Marshal(project) (see artifact.OrderedEnv.MarshalYAML's comment).
func RenderCompose(project *artifact.Project) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	appendScalarField(doc, "version", project.Version)

	servicesNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range project.ServiceOrder {
		svc, ok := project.Services[name]
		if !ok {
			continue
		}
		node, err := serviceNode(svc)
		if err != nil {
			return nil, errors.Wrapf(err, "rendering service %s", name)
		}
		servicesNode.Content = append(servicesNode.Content, scalarNode(name), node)
	}
	appendKeyNode(doc, "services", servicesNode)

	if len(project.Volumes) > 0 {
		volumesNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		names := sortedKeys(project.Volumes)
		for _, name := range names {
			vNode, err := marshalToNode(project.Volumes[name])
			if err != nil {
				return nil, err
			}
			volumesNode.Content = append(volumesNode.Content, scalarNode(name), vNode)
		}
		appendKeyNode(doc, "volumes", volumesNode)
	}

	if len(project.Networks) > 0 {
		networksNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		names := sortedKeys(project.Networks)
		for _, name := range names {
			nNode, err := marshalToNode(project.Networks[name])
			if err != nil {
				return nil, err
			}
			networksNode.Content = append(networksNode.Content, scalarNode(name), nNode)
		}
		appendKeyNode(doc, "networks", networksNode)
	}

	return encodeDocument(doc)
}

// serviceNode renders a single Service preserving its environment's
// insertion order, by marshalling every field except Environment through
// the generic struct encoder and splicing the ordered environment mapping
// in afterward.
func serviceNode(svc *artifact.Service) (*yaml.Node, error) {
	base, err := marshalToNode(svc)
	if err != nil {
		return nil, err
	}
	if svc.Environment.Len() == 0 {
		return base, nil
	}

	envNode := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range svc.Environment.Entries() {
		envNode.Content = append(envNode.Content, scalarNode(e.Key), scalarNode(e.Value))
	}

	replaced := false
	for i := 0; i < len(base.Content); i += 2 {
		if base.Content[i].Value == "environment" {
			base.Content[i+1] = envNode
			replaced = true
			break
		}
	}
	if !replaced {
		base.Content = append(base.Content, scalarNode("environment"), envNode)
	}
	return base, nil
}

func marshalToNode(v interface{}) (*yaml.Node, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 1 {
		return node.Content[0], nil
	}
	return &node, nil
}

func scalarNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func appendScalarField(doc *yaml.Node, key, value string) {
	if value == "" {
		return
	}
	doc.Content = append(doc.Content, scalarNode(key), scalarNode(value))
}

func appendKeyNode(doc *yaml.Node, key string, node *yaml.Node) {
	doc.Content = append(doc.Content, scalarNode(key), node)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodeDocument(doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
