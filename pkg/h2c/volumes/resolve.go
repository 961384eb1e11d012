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

// Package volumes implements the Volume Resolver (spec §4.3): mapping a
// container's volumeMounts, via the pod spec's volumes list, onto Compose
// bind mounts and named volume declarations.
package volumes

import (
	"encoding/base64"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// MaterializedFile is a ConfigMap/Secret key written out to disk under
// the output directory so it can be bind-mounted (spec §4.3). The Output
// Assembler is responsible for actually writing the bytes; the resolver
// only decides where they go and what they contain.
type MaterializedFile struct {
	// RelPath is relative to the project output directory, e.g.
	// "configmaps/app-config/app.conf".
	RelPath string
	Content string
}

// Result is everything the resolver produced for one container.
type Result struct {
	// Mounts are ready-to-emit compose `volumes:` entries for the service.
	Mounts []string
	// NamedVolumes are top-level volume declarations this container's
	// mounts require (PVCs only).
	NamedVolumes map[string]artifact.Volume
	// Files are ConfigMap/Secret keys that must be materialised to disk.
	Files []MaterializedFile
}

// Resolve walks container's volumeMounts against pod's volumes and
// produces the Compose-side mounts, volume declarations and files to
// materialise.
func Resolve(container manifest.Container, pod manifest.PodSpec, workloadRef string, ctx *convertctx.Context) Result {
	res := Result{NamedVolumes: map[string]artifact.Volume{}}

	bySource := make(map[string]manifest.VolumeSource, len(pod.Volumes))
	for _, v := range pod.Volumes {
		bySource[v.Name] = v
	}

	for _, mount := range container.VolumeMounts {
		src, ok := bySource[mount.Name]
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "volumeMount %s references undeclared volume", mount.Name)
			continue
		}
		resolveOne(&res, mount, src, workloadRef, ctx)
	}

	return res
}

func resolveOne(res *Result, mount manifest.VolumeMount, src manifest.VolumeSource, workloadRef string, ctx *convertctx.Context) {
	roSuffix := ""
	if mount.ReadOnly {
		roSuffix = ":ro"
	}

	switch {
	case src.PersistentVolumeClaim != nil:
		claim := src.PersistentVolumeClaim.ClaimName
		vol := artifact.Volume{Driver: "local"}
		if override, ok := ctx.Config.Volumes[claim]; ok && override.HostPath != "" {
			// A host_path override only sets the declaration's driver
			// (the override's, else local); the host_path value is not
			// written to the declaration or the mount, and the
			// compose-side mount still refers to the volume by name.
			vol.Driver = override.Driver
			if vol.Driver == "" {
				vol.Driver = "local"
			}
		}
		res.NamedVolumes[claim] = vol
		res.Mounts = append(res.Mounts, fmt.Sprintf("%s:%s%s", claim, mount.MountPath, roSuffix))

	case src.ConfigMap != nil:
		materializeKeyed(res, "configmaps", src.ConfigMap.Name, src.ConfigMap.Items, mount, workloadRef, ctx)

	case src.Secret != nil:
		materializeKeyed(res, "secrets", src.Secret.SecretName, src.Secret.Items, mount, workloadRef, ctx)

	case src.EmptyDir != nil:
		// Anonymous volume: a bare target path with no source, which
		// Compose allocates and does not share across services (spec
		// §4.3, documented gap).
		res.Mounts = append(res.Mounts, mount.MountPath)

	case src.HostPath != nil:
		res.Mounts = append(res.Mounts, fmt.Sprintf("%s:%s%s", src.HostPath.Path, mount.MountPath, roSuffix))

	default:
		ctx.Warnf(warn.KindMissingReference, workloadRef, "volume %s has no supported source", mount.Name)
	}
}

// materializeKeyed handles the shared ConfigMap/Secret materialisation
// logic: each key (or, if items is set, each listed key under its alias)
// becomes a file under <kindDir>/<name>/<key-or-alias>, individually
// bind-mounted at mountPath/<key-or-alias>.
func materializeKeyed(res *Result, kindDir, name string, items []manifest.KeyToPath, mount manifest.VolumeMount, workloadRef string, ctx *convertctx.Context) {
	var data map[string]string
	var sourceKind string
	switch kindDir {
	case "configmaps":
		cm, ok := ctx.Index.Get("ConfigMap", name)
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "volume references missing ConfigMap %s", name)
			return
		}
		var doc manifest.ConfigMapDoc
		if err := cm.Decode(&doc); err != nil {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "ConfigMap %s unreadable: %v", name, err)
			return
		}
		data = doc.Data
		sourceKind = "ConfigMap"
	case "secrets":
		sec, ok := ctx.Index.Get("Secret", name)
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "volume references missing Secret %s", name)
			return
		}
		var doc manifest.SecretDoc
		if err := sec.Decode(&doc); err != nil {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "Secret %s unreadable: %v", name, err)
			return
		}
		data = decodeSecretData(doc)
		sourceKind = "Secret"
	}

	keys := items
	if len(keys) == 0 {
		// data is a map; iterating it directly would make res.Files (and
		// therefore the emitted compose volumes/mounts) order non-
		// deterministic run to run, so the implied "every key" case is
		// sorted explicitly, matching the byte-stable emission the rest of
		// this pipeline guarantees.
		unsorted := make([]string, 0, len(data))
		for k := range data {
			unsorted = append(unsorted, k)
		}
		sort.Strings(unsorted)
		for _, k := range unsorted {
			keys = append(keys, manifest.KeyToPath{Key: k, Path: k})
		}
	}

	for _, kp := range keys {
		content, ok := data[kp.Key]
		if !ok {
			ctx.Warnf(warn.KindMissingReference, workloadRef, "%s %s has no key %s", sourceKind, name, kp.Key)
			continue
		}
		alias := kp.Path
		if alias == "" {
			alias = kp.Key
		}
		relPath := path.Join(kindDir, name, alias)
		res.Files = append(res.Files, MaterializedFile{RelPath: relPath, Content: content})
		res.Mounts = append(res.Mounts, fmt.Sprintf("./%s:%s:ro", relPath, path.Join(mount.MountPath, alias)))
	}
}

func decodeSecretData(doc manifest.SecretDoc) map[string]string {
	out := make(map[string]string, len(doc.Data)+len(doc.StringData))
	for k, v := range doc.StringData {
		out[k] = v
	}
	for k, v := range doc.Data {
		if decoded, ok := base64DecodeLoose(v); ok {
			out[k] = decoded
		}
	}
	return out
}

// base64DecodeLoose decodes standard base64, tolerating the occasional
// manifest that omits padding.
func base64DecodeLoose(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return string(decoded), true
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return string(decoded), true
	}
	return "", false
}
