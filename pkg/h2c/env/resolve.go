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

// Package env implements the Env Resolver (spec §4.2): turning a
// container spec's env/envFrom entries into an ordered Compose
// environment mapping, including kubelet `$(VAR)` expansion and the
// shell `$VAR` escaping Compose requires to avoid re-interpolation.
package env

import (
	"encoding/base64"
	"regexp"

	"github.com/helmfile2compose/h2c-core/internal/log"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// kubeletVarPattern matches kubelet-style `$(VAR)` references.
var kubeletVarPattern = regexp.MustCompile(`\$\(([A-Za-z_][A-Za-z0-9_]*)\)`)

// shellVarPattern matches shell-style `$VAR` and `${VAR}` references that
// would otherwise be re-interpolated by Compose.
var shellVarPattern = regexp.MustCompile(`\$(\{[A-Za-z_][A-Za-z0-9_]*\}|[A-Za-z_][A-Za-z0-9_]*)`)

// Resolve builds the ordered environment for container within workload,
// per the resolution rules of spec §4.2. workloadRef is the compose
// service name the container becomes; it scopes warnings and is also the
// value a `status.podIP` fieldRef resolves to.
func Resolve(c manifest.Container, workloadRef string, idx *manifest.Index, ctx *convertctx.Context) artifact.OrderedEnv {
	out := artifact.NewOrderedEnv()

	for _, from := range c.EnvFrom {
		expandEnvFrom(&out, from, workloadRef, idx, ctx)
	}

	for _, e := range c.Env {
		resolveOne(&out, e, workloadRef, idx, ctx)
	}

	escapeShellVars(&out)

	return out
}

func expandEnvFrom(out *artifact.OrderedEnv, from manifest.EnvFromSource, workloadRef string, idx *manifest.Index, ctx *convertctx.Context) {
	switch {
	case from.ConfigMapRef != nil:
		cm, ok := idx.Get("ConfigMap", from.ConfigMapRef.Name)
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "envFrom references missing ConfigMap %s", from.ConfigMapRef.Name)
			return
		}
		var doc manifest.ConfigMapDoc
		if err := cm.Decode(&doc); err != nil {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "ConfigMap %s unreadable: %v", from.ConfigMapRef.Name, err)
			return
		}
		for k, v := range doc.Data {
			out.Set(from.Prefix+k, v)
		}
	case from.SecretRef != nil:
		sec, ok := idx.Get("Secret", from.SecretRef.Name)
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "envFrom references missing Secret %s", from.SecretRef.Name)
			return
		}
		var doc manifest.SecretDoc
		if err := sec.Decode(&doc); err != nil {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "Secret %s unreadable: %v", from.SecretRef.Name, err)
			return
		}
		for k, v := range doc.StringData {
			out.Set(from.Prefix+k, v)
		}
		for k, v := range doc.Data {
			decoded, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				ctx.Warnf(warn.KindMissingReference, workloadRef, "Secret %s key %s is not valid base64", from.SecretRef.Name, k)
				continue
			}
			out.Set(from.Prefix+k, string(decoded))
		}
	}
}

func resolveOne(out *artifact.OrderedEnv, e manifest.EnvVar, workloadRef string, idx *manifest.Index, ctx *convertctx.Context) {
	if e.ValueFrom == nil {
		out.Set(e.Name, expandKubeletVars(e.Value, *out))
		return
	}

	switch {
	case e.ValueFrom.ConfigMapKeyRef != nil:
		ref := e.ValueFrom.ConfigMapKeyRef
		cm, ok := idx.Get("ConfigMap", ref.Name)
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "env %s references missing ConfigMap %s", e.Name, ref.Name)
			return
		}
		var doc manifest.ConfigMapDoc
		if err := cm.Decode(&doc); err != nil {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "ConfigMap %s unreadable: %v", ref.Name, err)
			return
		}
		val, ok := doc.Data[ref.Key]
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "env %s references missing key %s in ConfigMap %s", e.Name, ref.Key, ref.Name)
			return
		}
		out.Set(e.Name, val)

	case e.ValueFrom.SecretKeyRef != nil:
		ref := e.ValueFrom.SecretKeyRef
		sec, ok := idx.Get("Secret", ref.Name)
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "env %s references missing Secret %s", e.Name, ref.Name)
			return
		}
		var doc manifest.SecretDoc
		if err := sec.Decode(&doc); err != nil {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "Secret %s unreadable: %v", ref.Name, err)
			return
		}
		if v, ok := doc.StringData[ref.Key]; ok {
			out.Set(e.Name, v)
			return
		}
		raw, ok := doc.Data[ref.Key]
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "env %s references missing key %s in Secret %s", e.Name, ref.Key, ref.Name)
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "Secret %s key %s is not valid base64", ref.Name, ref.Key)
			return
		}
		out.Set(e.Name, string(decoded))

	case e.ValueFrom.FieldRef != nil:
		if e.ValueFrom.FieldRef.FieldPath != "status.podIP" {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "env %s references unsupported fieldRef %s", e.Name, e.ValueFrom.FieldRef.FieldPath)
			return
		}
		// status.podIP has no compose equivalent IP; the nearest durable
		// analog is the service's own DNS name within the default
		// network, which is what every peer would resolve anyway.
		out.Set(e.Name, workloadRef)

	default:
		log.Debugf("env %s on %s has an empty valueFrom; skipping", e.Name, workloadRef)
	}
}

// expandKubeletVars performs kubelet-style `$(VAR)` expansion using only
// entries already resolved earlier in the same container (spec §4.2 rule
// 5). An unresolved reference is left literal.
func expandKubeletVars(value string, resolvedSoFar artifact.OrderedEnv) string {
	return kubeletVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := kubeletVarPattern.FindStringSubmatch(match)[1]
		if v, ok := resolvedSoFar.Get(name); ok {
			return v
		}
		return match
	})
}

// escapeShellVars escapes any remaining `$VAR`/`${VAR}` occurrences to
// `$$VAR`/`$${VAR}` across every resolved value, so Compose's own
// variable interpolation does not re-expand them (spec §4.2 rule 6).
func escapeShellVars(out *artifact.OrderedEnv) {
	for _, kv := range out.Entries() {
		escaped := shellVarPattern.ReplaceAllString(kv.Value, "$$$0")
		if escaped != kv.Value {
			out.Set(kv.Key, escaped)
		}
	}
}
