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

package volumes

import (
	"testing"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/config"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

func newTestContext(cfg *config.Project) (*manifest.Index, *convertctx.Context) {
	idx := manifest.NewIndex()
	if cfg == nil {
		cfg = &config.Project{Name: "demo"}
	}
	ctx := convertctx.New(idx, cfg, warn.NewSink())
	return idx, ctx
}

func TestResolve_PersistentVolumeClaim(t *testing.T) {
	_, ctx := newTestContext(nil)
	pod := manifest.PodSpec{
		Volumes: []manifest.VolumeSource{
			{Name: "data", PersistentVolumeClaim: &manifest.PVCSource{ClaimName: "app-data"}},
		},
	}
	container := manifest.Container{
		VolumeMounts: []manifest.VolumeMount{{Name: "data", MountPath: "/var/lib/app"}},
	}

	res := Resolve(container, pod, "app", ctx)

	if len(res.Mounts) != 1 || res.Mounts[0] != "app-data:/var/lib/app" {
		t.Fatalf("unexpected mounts: %v", res.Mounts)
	}
	if vol, ok := res.NamedVolumes["app-data"]; !ok || vol.Driver != "local" {
		t.Fatalf("expected named volume app-data with driver local, got %+v", res.NamedVolumes)
	}
}

func TestResolve_PersistentVolumeClaimHostPathOverride(t *testing.T) {
	cfg := &config.Project{
		Name:    "demo",
		Volumes: map[string]config.VolumeOverride{"app-data": {Driver: "local", HostPath: "/srv/app-data"}},
	}
	_, ctx := newTestContext(cfg)
	pod := manifest.PodSpec{
		Volumes: []manifest.VolumeSource{
			{Name: "data", PersistentVolumeClaim: &manifest.PVCSource{ClaimName: "app-data"}},
		},
	}
	container := manifest.Container{
		VolumeMounts: []manifest.VolumeMount{{Name: "data", MountPath: "/var/lib/app", ReadOnly: true}},
	}

	res := Resolve(container, pod, "app", ctx)

	if res.Mounts[0] != "app-data:/var/lib/app:ro" {
		t.Fatalf("expected read-only mount, got %v", res.Mounts)
	}
}

func TestResolve_ConfigMapMaterializesFiles(t *testing.T) {
	idx, ctx := newTestContext(nil)
	idx.Insert(manifest.NewManifestForTesting("ConfigMap", "app-config", map[string]interface{}{
		"data": map[string]interface{}{"app.conf": "key=value"},
	}))

	pod := manifest.PodSpec{
		Volumes: []manifest.VolumeSource{
			{Name: "conf", ConfigMap: &manifest.ConfigMapVolumeSource{Name: "app-config"}},
		},
	}
	container := manifest.Container{
		VolumeMounts: []manifest.VolumeMount{{Name: "conf", MountPath: "/etc/app"}},
	}

	res := Resolve(container, pod, "app", ctx)

	if len(res.Files) != 1 || res.Files[0].RelPath != "configmaps/app-config/app.conf" {
		t.Fatalf("unexpected files: %+v", res.Files)
	}
	if res.Files[0].Content != "key=value" {
		t.Errorf("unexpected content: %q", res.Files[0].Content)
	}
	if res.Mounts[0] != "./configmaps/app-config/app.conf:/etc/app/app.conf:ro" {
		t.Fatalf("unexpected mount: %v", res.Mounts)
	}
}

func TestResolve_ConfigMapAllKeysAreSortedForDeterministicOrder(t *testing.T) {
	idx, ctx := newTestContext(nil)
	idx.Insert(manifest.NewManifestForTesting("ConfigMap", "app-config", map[string]interface{}{
		"data": map[string]interface{}{
			"zeta.conf":  "z",
			"alpha.conf": "a",
			"mid.conf":   "m",
		},
	}))

	pod := manifest.PodSpec{
		Volumes: []manifest.VolumeSource{
			{Name: "conf", ConfigMap: &manifest.ConfigMapVolumeSource{Name: "app-config"}},
		},
	}
	container := manifest.Container{
		VolumeMounts: []manifest.VolumeMount{{Name: "conf", MountPath: "/etc/app"}},
	}

	res := Resolve(container, pod, "app", ctx)

	wantOrder := []string{
		"configmaps/app-config/alpha.conf",
		"configmaps/app-config/mid.conf",
		"configmaps/app-config/zeta.conf",
	}
	if len(res.Files) != len(wantOrder) {
		t.Fatalf("expected %d files, got %+v", len(wantOrder), res.Files)
	}
	for i, want := range wantOrder {
		if res.Files[i].RelPath != want {
			t.Errorf("file %d: expected %q, got %q", i, want, res.Files[i].RelPath)
		}
	}
}

func TestResolve_ConfigMapItemsRestrictsKeys(t *testing.T) {
	idx, ctx := newTestContext(nil)
	idx.Insert(manifest.NewManifestForTesting("ConfigMap", "app-config", map[string]interface{}{
		"data": map[string]interface{}{"app.conf": "a", "unused.conf": "b"},
	}))

	pod := manifest.PodSpec{
		Volumes: []manifest.VolumeSource{
			{Name: "conf", ConfigMap: &manifest.ConfigMapVolumeSource{
				Name:  "app-config",
				Items: []manifest.KeyToPath{{Key: "app.conf", Path: "renamed.conf"}},
			}},
		},
	}
	container := manifest.Container{
		VolumeMounts: []manifest.VolumeMount{{Name: "conf", MountPath: "/etc/app"}},
	}

	res := Resolve(container, pod, "app", ctx)

	if len(res.Files) != 1 || res.Files[0].RelPath != "configmaps/app-config/renamed.conf" {
		t.Fatalf("expected only the listed key under its alias, got %+v", res.Files)
	}
}

func TestResolve_SecretDecodesBase64(t *testing.T) {
	idx, ctx := newTestContext(nil)
	idx.Insert(manifest.NewManifestForTesting("Secret", "app-secret", map[string]interface{}{
		"data": map[string]interface{}{"password": "aHVudGVyMg=="},
	}))

	pod := manifest.PodSpec{
		Volumes: []manifest.VolumeSource{
			{Name: "secret", Secret: &manifest.SecretVolumeSource{SecretName: "app-secret"}},
		},
	}
	container := manifest.Container{
		VolumeMounts: []manifest.VolumeMount{{Name: "secret", MountPath: "/etc/secret"}},
	}

	res := Resolve(container, pod, "app", ctx)

	if len(res.Files) != 1 || res.Files[0].Content != "hunter2" {
		t.Fatalf("expected decoded secret content, got %+v", res.Files)
	}
}

func TestResolve_EmptyDirAnonymousVolume(t *testing.T) {
	_, ctx := newTestContext(nil)
	pod := manifest.PodSpec{
		Volumes: []manifest.VolumeSource{
			{Name: "scratch", EmptyDir: &struct{}{}},
		},
	}
	container := manifest.Container{
		VolumeMounts: []manifest.VolumeMount{{Name: "scratch", MountPath: "/tmp/work"}},
	}

	res := Resolve(container, pod, "app", ctx)

	if len(res.Mounts) != 1 || res.Mounts[0] != "/tmp/work" {
		t.Fatalf("expected anonymous volume mount, got %v", res.Mounts)
	}
	if len(res.NamedVolumes) != 0 {
		t.Errorf("expected no named volume for emptyDir")
	}
}

func TestResolve_HostPathDirectBind(t *testing.T) {
	_, ctx := newTestContext(nil)
	pod := manifest.PodSpec{
		Volumes: []manifest.VolumeSource{
			{Name: "dockersock", HostPath: &manifest.HostPathSource{Path: "/var/run/docker.sock"}},
		},
	}
	container := manifest.Container{
		VolumeMounts: []manifest.VolumeMount{{Name: "dockersock", MountPath: "/var/run/docker.sock"}},
	}

	res := Resolve(container, pod, "app", ctx)

	if res.Mounts[0] != "/var/run/docker.sock:/var/run/docker.sock" {
		t.Fatalf("unexpected mount: %v", res.Mounts)
	}
}

func TestResolve_UndeclaredVolumeWarns(t *testing.T) {
	_, ctx := newTestContext(nil)
	pod := manifest.PodSpec{}
	container := manifest.Container{
		VolumeMounts: []manifest.VolumeMount{{Name: "missing", MountPath: "/data"}},
	}

	res := Resolve(container, pod, "app", ctx)

	if len(res.Mounts) != 0 {
		t.Fatalf("expected no mounts for undeclared volume, got %v", res.Mounts)
	}
	if ctx.Warnings.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", ctx.Warnings.Len())
	}
}
