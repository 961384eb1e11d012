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

package artifact

// IngressEntry is one Kubernetes Ingress rule resolved down to a Caddy
// route (spec §3, "IngressEntry"). The Ingress Builder produces these; the
// Output Assembler renders them into the Caddyfile.
type IngressEntry struct {
	Host string

	Routes []Route

	TLS TLSPolicy
}

// Route is one path-matched upstream within a host's Ingress entry.
type Route struct {
	Path     string
	PathType string

	// Upstream is the compose service:port pair traffic is reverse-proxied
	// to. An IngressRewriter populates it in raw "k8sServiceName:port"
	// form (the backend it read off the Ingress spec); the Ingress
	// Builder resolves it in place to "composeService:containerPort"
	// before this entry leaves Build (spec §4.5 step 4).
	Upstream string

	// Transport is usually "http", but an extension's IngressRewriter may
	// request "h2c" or similar for a backend that speaks cleartext HTTP/2.
	Transport string

	// ExtraDirectives holds verbatim Caddyfile directive lines an
	// IngressRewriter extension contributed (spec §4.6, rewriter
	// dispatch), inserted into the route block as-is.
	ExtraDirectives []string
}

// TLSPolicy controls how a host's Caddyfile block requests/serves TLS.
type TLSPolicy struct {
	// Internal requests Caddy's internal CA instead of ACME, mirroring
	// extensions.caddy.tls_internal in the project config.
	Internal bool

	// SecretName, when non-empty, names the Kubernetes TLS secret the
	// Ingress referenced; informational only since Caddy manages its own
	// certificates, surfaced so extensions can react to it.
	SecretName string
}

// CaddySite is one compiled Caddyfile site block, ready to render.
type CaddySite struct {
	Host    string
	Entries []IngressEntry
}
