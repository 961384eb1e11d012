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

package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"

	"github.com/pkg/errors"

	"github.com/helmfile2compose/h2c-core/internal/log"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// entry pairs a capability with the priority it was registered at.
type converterEntry struct {
	converter Converter
	priority  int
}

type transformEntry struct {
	transform Transform
	priority  int
}

type rewriterEntry struct {
	rewriter IngressRewriter
	priority int
}

// Registry holds every loaded extension capability, ordered ascending by
// priority within each capability kind (spec §4.6).
type Registry struct {
	convertersByKind map[string][]converterEntry
	transforms       []transformEntry
	rewritersByName  map[string][]rewriterEntry
}

// NewRegistry returns an empty registry. The empty-registry stance (spec
// §9, "No hidden globals") means a Registry with nothing loaded is a
// perfectly valid, inert pipeline input.
func NewRegistry() *Registry {
	return &Registry{
		convertersByKind: map[string][]converterEntry{},
		rewritersByName:  map[string][]rewriterEntry{},
	}
}

// RegisterConverter adds a converter for every kind it claims.
func (r *Registry) RegisterConverter(c Converter) {
	p := priorityOf(c)
	for kind := range c.Kinds() {
		r.convertersByKind[kind] = append(r.convertersByKind[kind], converterEntry{converter: c, priority: p})
		sort.SliceStable(r.convertersByKind[kind], func(i, j int) bool {
			return r.convertersByKind[kind][i].priority < r.convertersByKind[kind][j].priority
		})
	}
}

// RegisterTransform adds a transform, run once per pipeline in phase 7.
func (r *Registry) RegisterTransform(t Transform) {
	r.transforms = append(r.transforms, transformEntry{transform: t, priority: priorityOf(t)})
	sort.SliceStable(r.transforms, func(i, j int) bool {
		return r.transforms[i].priority < r.transforms[j].priority
	})
}

// RegisterIngressRewriter adds a rewriter under its declared name. Several
// rewriters may share a name (spec §4.5 step 2: "fall through to the next
// rewriter with the same canonical name").
func (r *Registry) RegisterIngressRewriter(rw IngressRewriter) {
	name := rw.Name()
	r.rewritersByName[name] = append(r.rewritersByName[name], rewriterEntry{rewriter: rw, priority: priorityOf(rw)})
	sort.SliceStable(r.rewritersByName[name], func(i, j int) bool {
		return r.rewritersByName[name][i].priority < r.rewritersByName[name][j].priority
	})
}

// ConvertersFor returns the converters claiming kind, in priority order.
func (r *Registry) ConvertersFor(kind string) []Converter {
	entries := r.convertersByKind[kind]
	out := make([]Converter, len(entries))
	for i, e := range entries {
		out[i] = e.converter
	}
	return out
}

// ClaimedKinds returns every kind at least one converter claims, for the
// Manifest Index to retain otherwise-unknown kinds (spec §4.1).
func (r *Registry) ClaimedKinds() []string {
	out := make([]string, 0, len(r.convertersByKind))
	for k := range r.convertersByKind {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Transforms returns every registered transform, in priority order.
func (r *Registry) Transforms() []Transform {
	out := make([]Transform, len(r.transforms))
	for i, e := range r.transforms {
		out[i] = e.transform
	}
	return out
}

// RewritersNamed returns the rewriters registered under name, in priority
// order (stable order across calls, per spec §4.5 step 2).
func (r *Registry) RewritersNamed(name string) []IngressRewriter {
	entries := r.rewritersByName[name]
	out := make([]IngressRewriter, len(entries))
	for i, e := range entries {
		out[i] = e.rewriter
	}
	return out
}

// Load walks dir one level deep — a leaf .so file, or a .so one directory
// below dir — compiling candidates found with `go build -buildmode=plugin`
// ahead of time is the operator's job; Load only opens already-built
// plugin objects. Each plugin is expected to export a package-level
// `New() interface{}` constructor whose returned value is classified by
// capability shape, mirroring the structural dispatch used for converter
// results (spec §4.6). A plugin that fails to open or whose New symbol is
// missing/malformed is dropped with a warning, not fatal (spec §7,
// ExtensionLoadFailure).
func Load(dir string, sink *warn.Sink) (*Registry, error) {
	r := NewRegistry()
	if dir == "" {
		return r, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading extensions dir %s", dir)
	}

	var candidates []string
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			sub, err := os.ReadDir(full)
			if err != nil {
				sink.Addf(warn.KindExtensionLoadFailure, "", "reading extension subdir %s: %v", full, err)
				continue
			}
			for _, s := range sub {
				if !s.IsDir() && filepath.Ext(s.Name()) == ".so" {
					candidates = append(candidates, filepath.Join(full, s.Name()))
				}
			}
			continue
		}
		if filepath.Ext(e.Name()) == ".so" {
			candidates = append(candidates, full)
		}
	}
	sort.Strings(candidates)

	for _, path := range candidates {
		if err := loadOne(r, path); err != nil {
			log.Warnf("extension %s: %v", path, err)
			sink.Addf(warn.KindExtensionLoadFailure, "", "%s: %v", path, err)
		}
	}

	return r, nil
}

func loadOne(r *Registry, path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening plugin")
	}

	sym, err := p.Lookup("New")
	if err != nil {
		return errors.Wrap(err, "looking up New symbol")
	}

	ctor, ok := sym.(func() interface{})
	if !ok {
		return fmt.Errorf("New has unexpected signature %T", sym)
	}

	capability := ctor()
	return classifyCapability(r, capability, path)
}

// classifyCapability examines capability's method set structurally (spec
// §4.6: Converter has Kinds+Convert, Transform has Transform,
// IngressRewriter has Name+Match+Rewrite) and registers it under every
// shape it satisfies, by interface assertion against Converter, Transform
// and IngressRewriter. Unlike the struct-type assertion dispatch.go avoids
// for extension.ConverterResult, these interfaces ARE satisfied across
// plugin boundaries as long as method signatures reference identical named
// types, which holds here since Manifest/Context/artifact types are
// resolved from this module's own package set at plugin build time, not
// duplicated by the extension author.
func classifyCapability(r *Registry, capability interface{}, path string) error {
	matched := false

	if c, ok := capability.(Converter); ok {
		r.RegisterConverter(c)
		matched = true
	}
	if t, ok := capability.(Transform); ok {
		r.RegisterTransform(t)
		matched = true
	}
	if rw, ok := capability.(IngressRewriter); ok {
		r.RegisterIngressRewriter(rw)
		matched = true
	}

	if !matched {
		return fmt.Errorf("New() in %s returned a value matching no known capability", path)
	}
	return nil
}
