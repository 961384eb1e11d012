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

// Package rewrite implements the post-process pass common to every
// string-shaped artifact the pipeline produces: hostname/port remapping,
// `$secret:` and `$volume_root` placeholder substitution, and
// user-supplied literal replacements (spec §4.7 phase 8). Every function
// here is idempotent: applying it twice to its own output is a no-op,
// which is what lets phase 8 run once, late, over everything.
package rewrite

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// hostPortPattern matches a bare `name:port` token, the shape a
// Kubernetes-era env value or ConfigMap file commonly embeds to reach
// another Service (e.g. "redis-service:6379").
var hostPortPattern = regexp.MustCompile(`\b([a-zA-Z0-9-]+):(\d+)\b`)

// secretPlaceholderPattern matches `$secret:<name>:<key>` (spec §6,
// "Placeholder grammar").
var secretPlaceholderPattern = regexp.MustCompile(`\$secret:([a-zA-Z0-9-]+):([a-zA-Z0-9_.-]+)`)

// volumeRootPlaceholder matches the literal `$volume_root` token.
const volumeRootPlaceholder = "$volume_root"

// ApplyToString runs the full post-process pipeline over one string
// value, in the fixed order spec §9 requires: host:port remap happens
// first (it only ever touches literal Service names, never placeholder
// syntax), then user replacements, then placeholder substitution last so
// a transform-introduced `$volume_root` (spec §9, "Placeholder resolution
// order") still resolves.
func ApplyToString(s, ref string, ctx *convertctx.Context) string {
	s = remapHostPorts(s, ref, ctx)
	s = applyReplacements(s, ctx)
	s = substitutePlaceholders(s, ref, ctx)
	return s
}

// remapHostPorts rewrites any `service:port` token naming a known Service
// alias to its resolved `workload:containerPort` form. Once rewritten,
// the token no longer matches a Service alias (aliases are keyed by
// Service name, not workload name), so a second pass leaves it
// unchanged — the idempotence invariant (spec invariant 4).
func remapHostPorts(s, ref string, ctx *convertctx.Context) string {
	return hostPortPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := hostPortPattern.FindStringSubmatch(match)
		serviceName, port := parts[1], parts[2]

		workload, ok := ctx.Aliases.Resolve(serviceName)
		if !ok {
			return match
		}
		containerPort, ok := ctx.Ports.Resolve(serviceName, port)
		if !ok {
			return match
		}
		return workload + ":" + strconv.Itoa(int(containerPort))
	})
}

func applyReplacements(s string, ctx *convertctx.Context) string {
	for _, r := range ctx.Config.Replacements {
		s = strings.ReplaceAll(s, r.Old, r.New)
	}
	return s
}

// substitutePlaceholders resolves `$secret:<name>:<key>` and
// `$volume_root` (spec §6). An unresolved `$secret:` reference emits a
// warning and is left literal.
func substitutePlaceholders(s, ref string, ctx *convertctx.Context) string {
	s = secretPlaceholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := secretPlaceholderPattern.FindStringSubmatch(match)
		name, key := parts[1], parts[2]

		value, ok := resolveSecretValue(name, key, ctx)
		if !ok {
			ctx.Warnf(warn.KindUnresolvedPlaceholder, ref, "placeholder %s did not resolve", match)
			return match
		}
		return value
	})

	return strings.ReplaceAll(s, volumeRootPlaceholder, ctx.VolumeRoot)
}

func resolveSecretValue(name, key string, ctx *convertctx.Context) (string, bool) {
	sm, ok := ctx.Index.Get("Secret", name)
	if !ok {
		return "", false
	}
	var doc manifest.SecretDoc
	if err := sm.Decode(&doc); err != nil {
		return "", false
	}
	if v, ok := doc.StringData[key]; ok {
		return v, true
	}
	raw, ok := doc.Data[key]
	if !ok {
		return "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// ApplyToService post-processes every string-shaped field of a compose
// service in place: environment values, entrypoint and command.
func ApplyToService(svc *artifact.Service, ctx *convertctx.Context) {
	ref := "Service/" + svc.Name

	for _, kv := range svc.Environment.Entries() {
		svc.Environment.Set(kv.Key, ApplyToString(kv.Value, ref, ctx))
	}
	for i, arg := range svc.Entrypoint {
		svc.Entrypoint[i] = ApplyToString(arg, ref, ctx)
	}
	for i, arg := range svc.Command {
		svc.Command[i] = ApplyToString(arg, ref, ctx)
	}
}

// ApplyToIngressEntry post-processes an IngressEntry's upstream and extra
// directive lines in place.
func ApplyToIngressEntry(entry *artifact.IngressEntry, ctx *convertctx.Context) {
	ref := "Ingress/" + entry.Host
	for i := range entry.Routes {
		entry.Routes[i].Upstream = ApplyToString(entry.Routes[i].Upstream, ref, ctx)
		for j, d := range entry.Routes[i].ExtraDirectives {
			entry.Routes[i].ExtraDirectives[j] = ApplyToString(d, ref, ctx)
		}
	}
}

// ApplyToFileContent post-processes a materialised ConfigMap/Secret file
// body (spec §4.7 phase 8: "materialised ConfigMap file contents").
func ApplyToFileContent(content, ref string, ctx *convertctx.Context) string {
	return ApplyToString(content, ref, ctx)
}
