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

package ingress

import (
	"fmt"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// maxExternalNameHops bounds the ExternalName alias-chain walk (spec §9,
// "Cyclic references": "bounds the walk at a small constant (e.g. 8)").
const maxExternalNameHops = 8

// ResolveBackend resolves an Ingress path backend — a Service name plus a
// port name-or-number — down to a compose service name and numeric
// container port (spec §4.5 step 4). It chains through ExternalName
// Services until it reaches a non-ExternalName target or exhausts
// maxExternalNameHops, returning the last resolved node and a warning on
// cycle/bound exhaustion (spec §9).
func ResolveBackend(serviceName, portNameOrNumber, manifestRef string, ctx *convertctx.Context) (upstream string, ok bool) {
	visited := map[string]bool{}
	current := serviceName

	for hop := 0; hop < maxExternalNameHops; hop++ {
		if visited[current] {
			ctx.Warnf(warn.KindMissingReference, manifestRef, "ExternalName chain starting at %s cycles back to %s", serviceName, current)
			return lastResolvableUpstream(current, portNameOrNumber, ctx)
		}
		visited[current] = true

		sm, found := ctx.Index.Get("Service", current)
		if !found {
			ctx.Warnf(warn.KindMissingReference, manifestRef, "Ingress backend references missing Service %s", current)
			return "", false
		}

		var sdoc manifest.ServiceDoc
		if err := sm.Decode(&sdoc); err != nil {
			ctx.Warnf(warn.KindMissingReference, manifestRef, "Service %s unreadable: %v", current, err)
			return "", false
		}

		if sdoc.Spec.Type != "ExternalName" {
			workload, ok := ctx.Aliases.Resolve(current)
			if !ok {
				ctx.Warnf(warn.KindMissingReference, manifestRef, "Service %s has no resolvable workload alias", current)
				return "", false
			}
			containerPort, ok := ctx.Ports.Resolve(current, portNameOrNumber)
			if !ok {
				ctx.Warnf(warn.KindMissingReference, manifestRef, "Service %s has no port %s", current, portNameOrNumber)
				return "", false
			}
			return fmt.Sprintf("%s:%d", workload, containerPort), true
		}

		// ExternalName targets are DNS names; the convention elsewhere in
		// this pipeline (spec §4.7 phase 6) is that a Service's own short
		// name is itself among its workload's aliases, so the next hop is
		// just the leading label of the FQDN.
		current = leadingLabel(sdoc.Spec.ExternalName)
	}

	ctx.Warnf(warn.KindMissingReference, manifestRef, "ExternalName chain from %s exceeded %d hops", serviceName, maxExternalNameHops)
	return "", false
}

func lastResolvableUpstream(serviceName, portNameOrNumber string, ctx *convertctx.Context) (string, bool) {
	workload, ok := ctx.Aliases.Resolve(serviceName)
	if !ok {
		return "", false
	}
	containerPort, ok := ctx.Ports.Resolve(serviceName, portNameOrNumber)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s:%d", workload, containerPort), true
}

func leadingLabel(fqdn string) string {
	for i, r := range fqdn {
		if r == '.' {
			return fqdn[:i]
		}
	}
	return fqdn
}
