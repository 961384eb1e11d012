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

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// head is the decode target used to classify a raw document before
// deciding whether to keep it.
type head struct {
	Kind     string `yaml:"kind"`
	Metadata struct {
		Name        string    `yaml:"name"`
		Namespace   string    `yaml:"namespace"`
		Annotations StringMap `yaml:"annotations"`
		Labels      StringMap `yaml:"labels"`
	} `yaml:"metadata"`
}

// Index is the flat (kind,name) -> Manifest mapping plus per-kind lists
// (spec §3 ManifestIndex). It is immutable after ingestion except for
// synthetic manifest insertion during converter fan-out, which the
// Pipeline Driver serialises via Insert.
type Index struct {
	byKey  map[Key]*Manifest
	byKind map[string][]*Manifest
	// claimedUnknownKinds tracks kinds an extension has claimed, so that an
	// unknown kind can be retained instead of dropped (spec §4.1).
	claimedUnknownKinds map[string]bool
	warnedUnsupported   map[string]bool
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byKey:               map[Key]*Manifest{},
		byKind:               map[string][]*Manifest{},
		claimedUnknownKinds:  map[string]bool{},
		warnedUnsupported:    map[string]bool{},
	}
}

// ClaimKind marks a kind as claimed by at least one extension converter, so
// that ingestion retains unknown-kind documents of that kind instead of
// dropping them.
func (idx *Index) ClaimKind(kind string) {
	idx.claimedUnknownKinds[kind] = true
}

// Get looks up a manifest by (kind, name). If two manifests of the same
// kind share a name, the later one to be indexed wins (spec §3, documented
// gap: namespace is not part of the key).
func (idx *Index) Get(kind, name string) (*Manifest, bool) {
	m, ok := idx.byKey[Key{Kind: kind, Name: name}]
	return m, ok
}

// ByKind returns every manifest of a given kind, in ingestion order.
func (idx *Index) ByKind(kind string) []*Manifest {
	return idx.byKind[kind]
}

// All returns every manifest in the index, ordered by kind then name for
// determinism.
func (idx *Index) All() []*Manifest {
	out := make([]*Manifest, 0, len(idx.byKey))
	for _, m := range idx.byKey {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Insert adds a manifest to the index, overwriting any existing entry with
// the same (kind, name). Used both during ingestion and by the Pipeline
// Driver to insert converter-produced synthetic manifests.
func (idx *Index) Insert(m *Manifest) {
	key := Key{Kind: m.Kind, Name: m.Name}
	if _, exists := idx.byKey[key]; !exists {
		idx.byKind[m.Kind] = append(idx.byKind[m.Kind], m)
	} else {
		// replace in place within the per-kind slice
		for i, existing := range idx.byKind[m.Kind] {
			if existing.Name == m.Name {
				idx.byKind[m.Kind][i] = m
				break
			}
		}
	}
	idx.byKey[key] = m
}

// NewSynthetic constructs a synthetic Manifest (spec GLOSSARY) with a fresh
// identity, for converters that inject virtual objects back into the index.
func NewSynthetic(kind, name, namespace string) *Manifest {
	return &Manifest{
		Kind:        kind,
		Name:        name,
		Namespace:   namespace,
		Annotations: StringMap{},
		Labels:      StringMap{},
		Synthetic:   true,
		SyntheticID: uuid.NewString(),
	}
}

// Load reads every YAML document under dir (recursively, .yaml/.yml only),
// classifies each by kind, and returns the resulting Index. Malformed
// documents and documents missing kind/metadata.name are dropped with a
// warning; silently-ignored kinds are dropped without one; known-but-
// unsupported kinds emit a single warning per kind; unknown kinds emit a
// warning but are retained only if some extension has claimed them via
// ClaimKind beforehand.
func Load(dir string, sink *warn.Sink) (*Index, error) {
	return loadInto(NewIndex(), dir, sink)
}

func loadInto(idx *Index, dir string, sink *warn.Sink) (*Index, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest directory %s", dir)
	}
	sort.Strings(files)

	for _, path := range files {
		if err := loadFile(path, idx, sink); err != nil {
			return nil, errors.Wrapf(err, "reading %s", path)
		}
	}

	return idx, nil
}

// LoadAndClaim is like Load but pre-seeds the set of kinds known to be
// claimed by extensions, so unknown kinds those extensions handle are
// retained on first pass instead of requiring a second load.
func LoadAndClaim(dir string, sink *warn.Sink, claimedKinds []string) (*Index, error) {
	idx := NewIndex()
	for _, k := range claimedKinds {
		idx.ClaimKind(k)
	}
	return loadInto(idx, dir, sink)
}

func loadFile(path string, idx *Index, sink *warn.Sink) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(bufio.NewReader(f))
	for {
		var node yaml.Node
		if err := dec.Decode(&node); err != nil {
			if err == io.EOF {
				return nil
			}
			sink.Addf(warn.KindMalformedDocument, "", "%s: %v", path, err)
			return nil
		}
		if len(node.Content) == 0 {
			continue
		}
		doc := node.Content[0]

		var h head
		if err := doc.Decode(&h); err != nil {
			sink.Addf(warn.KindMalformedDocument, "", "%s: %v", path, err)
			continue
		}

		if h.Kind == "" || h.Metadata.Name == "" {
			sink.Addf(warn.KindMalformedDocument, "", "%s: document missing kind or metadata.name, dropped", path)
			continue
		}

		if IsSilentlyIgnored(h.Kind) {
			continue
		}

		if IsKnownUnsupported(h.Kind) {
			if !idx.warnedUnsupported[h.Kind] {
				idx.warnedUnsupported[h.Kind] = true
				sink.Addf(warn.KindUnsupportedKind, "", "kind %s is recognised but not converted", h.Kind)
			}
			continue
		}

		if !IsWorkload(h.Kind) && !isCoreConvertibleKind(h.Kind) {
			if !idx.claimedUnknownKinds[h.Kind] {
				sink.Addf(warn.KindUnknownKind, "", "%s/%s: unknown kind, no extension claims it, dropped", h.Kind, h.Metadata.Name)
				continue
			}
			sink.Addf(warn.KindUnknownKind, "", "%s/%s: unknown kind, retained for claiming extension", h.Kind, h.Metadata.Name)
		}

		// A null or absent map never reaches StringMap.UnmarshalYAML, so
		// normalise it here to the empty map the rest of the pipeline expects.
		annotations, labels := h.Metadata.Annotations, h.Metadata.Labels
		if annotations == nil {
			annotations = StringMap{}
		}
		if labels == nil {
			labels = StringMap{}
		}

		m := &Manifest{
			Kind:        h.Kind,
			Name:        h.Metadata.Name,
			Namespace:   h.Metadata.Namespace,
			Annotations: annotations,
			Labels:      labels,
			raw:         doc,
		}
		idx.Insert(m)
	}
}

// isCoreConvertibleKind reports whether the core pipeline itself (without
// any extension) knows how to turn this kind into Compose/Caddy output.
func isCoreConvertibleKind(kind string) bool {
	switch kind {
	case "Deployment", "StatefulSet", "DaemonSet", "Job",
		"Service", "Ingress", "ConfigMap", "Secret", "PersistentVolumeClaim":
		return true
	default:
		return false
	}
}
