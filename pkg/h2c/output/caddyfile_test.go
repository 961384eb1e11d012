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
	"strings"
	"testing"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/config"
)

func TestGroupByHost_MergesRoutesForSameHost(t *testing.T) {
	entries := []artifact.IngressEntry{
		{Host: "app.example.com", Routes: []artifact.Route{{Path: "/api", Upstream: "api:8080"}}},
		{Host: "app.example.com", Routes: []artifact.Route{{Path: "/", Upstream: "web:80"}}},
	}
	sites := GroupByHost(entries)
	if len(sites) != 1 {
		t.Fatalf("expected 1 site, got %d", len(sites))
	}
	if len(sites[0].Entries) != 2 {
		t.Fatalf("expected 2 merged entries, got %d", len(sites[0].Entries))
	}
}

func TestRenderCaddyfile_MoreSpecificPathBeforeCatchAll(t *testing.T) {
	sites := []artifact.CaddySite{
		{
			Host: "app.example.com",
			Entries: []artifact.IngressEntry{
				{
					Host: "app.example.com",
					Routes: []artifact.Route{
						{Path: "/", Upstream: "web:80"},
						{Path: "/api", Upstream: "api:8080"},
					},
				},
			},
		},
	}
	out := RenderCaddyfile(sites, &config.Project{})

	apiIdx := strings.Index(out, "/api")
	rootIdx := strings.LastIndex(out, "handle /*")
	if apiIdx == -1 || rootIdx == -1 || apiIdx > rootIdx {
		t.Fatalf("expected /api route before catch-all /, got:\n%s", out)
	}
}

func TestRenderCaddyfile_HTTPSBackendGetsTLSTransport(t *testing.T) {
	sites := []artifact.CaddySite{
		{
			Host: "secure.example.com",
			Entries: []artifact.IngressEntry{
				{
					Host:   "secure.example.com",
					Routes: []artifact.Route{{Path: "/", Upstream: "backend:443", Transport: "https"}},
				},
			},
		},
	}
	out := RenderCaddyfile(sites, &config.Project{})
	if !strings.Contains(out, "transport http") || !strings.Contains(out, "tls") {
		t.Errorf("expected tls transport block for https backend, got:\n%s", out)
	}
}

func TestRenderCaddyfile_TLSInternalFromConfig(t *testing.T) {
	sites := []artifact.CaddySite{{Host: "app.example.com"}}
	out := RenderCaddyfile(sites, &config.Project{Extensions: config.ExtensionsConfig{Caddy: config.CaddyConfig{TLSInternal: true}}})
	if !strings.Contains(out, "tls internal") {
		t.Errorf("expected tls internal directive, got:\n%s", out)
	}
}
