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

package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/config"
)

// GroupByHost folds a flat ingress entry list into one CaddySite per
// distinct host, preserving first-seen host order and concatenating
// routes for hosts that appeared in more than one Ingress manifest.
func GroupByHost(entries []artifact.IngressEntry) []artifact.CaddySite {
	var order []string
	byHost := map[string]*artifact.CaddySite{}

	for _, entry := range entries {
		site, ok := byHost[entry.Host]
		if !ok {
			site = &artifact.CaddySite{Host: entry.Host}
			byHost[entry.Host] = site
			order = append(order, entry.Host)
		}
		site.Entries = append(site.Entries, entry)
	}

	out := make([]artifact.CaddySite, 0, len(order))
	for _, host := range order {
		out = append(out, *byHost[host])
	}
	return out
}

// RenderCaddyfile renders every site block to Caddyfile syntax (spec §4.5,
// "Routing semantics"): within a host block, more-specific path prefixes
// are emitted before the catch-all `/`; an HTTPS backend's route carries
// `transport http { tls }`.
func RenderCaddyfile(sites []artifact.CaddySite, cfg *config.Project) string {
	var b strings.Builder
	for i, site := range sites {
		if i > 0 {
			b.WriteString("\n")
		}
		writeSite(&b, site, cfg)
	}
	return b.String()
}

func writeSite(b *strings.Builder, site artifact.CaddySite, cfg *config.Project) {
	fmt.Fprintf(b, "%s {\n", site.Host)

	if cfg.Extensions.Caddy.TLSInternal {
		b.WriteString("\ttls internal\n")
	}

	for _, entry := range site.Entries {
		writeTLSPolicy(b, entry.TLS)
		for _, route := range orderedRoutes(entry.Routes) {
			writeRoute(b, route)
		}
	}

	b.WriteString("}\n")
}

func writeTLSPolicy(b *strings.Builder, tls artifact.TLSPolicy) {
	if tls.Internal {
		b.WriteString("\ttls internal\n")
	}
}

// orderedRoutes returns routes with the catch-all `/` last and, among the
// rest, longer (more specific) paths first; the Ingress Builder already
// orders its own Routes this way, but RenderCaddyfile re-sorts
// defensively since extensions/transforms may have appended routes after
// Build ran.
func orderedRoutes(routes []artifact.Route) []artifact.Route {
	out := make([]artifact.Route, len(routes))
	copy(out, routes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path == "/" {
			return false
		}
		if out[j].Path == "/" {
			return true
		}
		return len(out[i].Path) > len(out[j].Path)
	})
	return out
}

func writeRoute(b *strings.Builder, route artifact.Route) {
	path := route.Path
	if path == "" {
		path = "/"
	}
	fmt.Fprintf(b, "\thandle %s {\n", matcherFor(route.PathType, path))
	fmt.Fprintf(b, "\t\treverse_proxy %s", route.Upstream)
	if route.Transport == "https" {
		b.WriteString(" {\n\t\t\ttransport http {\n\t\t\t\ttls\n\t\t\t}\n\t\t}")
	}
	b.WriteString("\n")
	for _, directive := range route.ExtraDirectives {
		fmt.Fprintf(b, "\t\t%s\n", directive)
	}
	b.WriteString("\t}\n")
}

// matcherFor renders a Caddy path matcher. Prefix matches (the common
// Kubernetes Ingress pathType) get a trailing wildcard; exact matches are
// emitted verbatim.
func matcherFor(pathType, path string) string {
	if pathType == "Exact" {
		return path
	}
	if strings.HasSuffix(path, "/") {
		return path + "*"
	}
	return path + "*"
}
