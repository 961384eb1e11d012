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

// Package ingress implements the Ingress Builder (spec §4.5): resolving
// the right rewriter for an Ingress manifest, invoking it, and resolving
// its routes' backends to compose-service upstreams.
package ingress

import (
	"sort"
	"strings"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/extension"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// Build resolves and invokes the rewriter for one Ingress manifest,
// returning the resulting IngressEntry with every route's backend
// resolved to a compose upstream, in most-specific-first order (spec
// §4.5: "more-specific path prefixes are emitted before the catch-all
// `/`"). ok is false when no rewriter matched; the caller should skip the
// manifest entirely (a warning has already been recorded).
func Build(m *manifest.Manifest, registry *extension.Registry, ctx *convertctx.Context) (artifact.IngressEntry, bool) {
	ref := m.Kind + "/" + m.Name

	var doc manifest.IngressDoc
	if err := m.Decode(&doc); err != nil {
		ctx.Warnf(warn.KindMalformedDocument, ref, "Ingress unreadable: %v", err)
		return artifact.IngressEntry{}, false
	}

	canonical := canonicalRewriterName(doc.Spec.IngressClassName, ctx.IngressTypes)
	if canonical == "" {
		ctx.Warnf(warn.KindMissingReference, ref, "no ingress_types mapping for ingressClassName %q", doc.Spec.IngressClassName)
		return artifact.IngressEntry{}, false
	}

	for _, rw := range registry.RewritersNamed(canonical) {
		if !rw.Match(m) {
			continue
		}
		entry, err := rw.Rewrite(m, ctx)
		if err != nil {
			ctx.Warnf(warn.KindExtensionRuntime, ref, "rewriter %s: %v", rw.Name(), err)
			return artifact.IngressEntry{}, false
		}
		resolveRoutes(&entry, ref, ctx)
		orderRoutes(&entry)
		return entry, true
	}

	ctx.Warnf(warn.KindMissingReference, ref, "no rewriter named %q matched", canonical)
	return artifact.IngressEntry{}, false
}

// canonicalRewriterName applies the project's ingress_types mapping
// (substring or exact match against ingressClassName) to find the
// canonical rewriter name to dispatch to (spec §4.5 step 1).
func canonicalRewriterName(ingressClassName string, ingressTypes map[string]string) string {
	if exact, ok := ingressTypes[ingressClassName]; ok {
		return exact
	}
	for pattern, canonical := range ingressTypes {
		if pattern != "" && strings.Contains(ingressClassName, pattern) {
			return canonical
		}
	}
	return ""
}

// resolveRoutes rewrites every route's Upstream from its raw
// "service:port-name-or-number" form (as produced by a rewriter reading
// spec.rules[].http.paths[].backend.service) to a compose
// "service:containerPort" form (spec §4.5 step 4).
func resolveRoutes(entry *artifact.IngressEntry, ref string, ctx *convertctx.Context) {
	resolved := entry.Routes[:0]
	for _, route := range entry.Routes {
		serviceName, port, ok := splitBackend(route.Upstream)
		if !ok {
			ctx.Warnf(warn.KindMissingReference, ref, "route %s has malformed backend %q", route.Path, route.Upstream)
			continue
		}
		upstream, ok := ResolveBackend(serviceName, port, ref, ctx)
		if !ok {
			continue
		}
		route.Upstream = upstream
		resolved = append(resolved, route)
	}
	entry.Routes = resolved
}

func splitBackend(raw string) (service, port string, ok bool) {
	i := strings.LastIndex(raw, ":")
	if i < 0 {
		return "", "", false
	}
	return raw[:i], raw[i+1:], true
}

// orderRoutes sorts routes so more-specific path prefixes precede the
// catch-all `/` (spec §4.5 "Routing semantics").
func orderRoutes(entry *artifact.IngressEntry) {
	sort.SliceStable(entry.Routes, func(i, j int) bool {
		if entry.Routes[i].Path == "/" {
			return false
		}
		if entry.Routes[j].Path == "/" {
			return true
		}
		return len(entry.Routes[i].Path) > len(entry.Routes[j].Path)
	})
}
