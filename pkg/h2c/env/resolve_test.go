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

package env

import (
	"encoding/base64"
	"testing"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/config"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

func newTestContext() (*manifest.Index, *convertctx.Context) {
	idx := manifest.NewIndex()
	ctx := convertctx.New(idx, &config.Project{Name: "demo"}, warn.NewSink())
	return idx, ctx
}

func TestResolve_LiteralValue(t *testing.T) {
	idx, ctx := newTestContext()
	c := manifest.Container{
		Env: []manifest.EnvVar{{Name: "FOO", Value: "bar"}},
	}

	out := Resolve(c, "web", idx, ctx)

	v, ok := out.Get("FOO")
	if !ok || v != "bar" {
		t.Fatalf("expected FOO=bar, got %q, %v", v, ok)
	}
}

func TestResolve_KubeletVarExpansion(t *testing.T) {
	idx, ctx := newTestContext()
	c := manifest.Container{
		Env: []manifest.EnvVar{
			{Name: "HOST", Value: "db"},
			{Name: "URL", Value: "postgres://$(HOST):5432/app"},
		},
	}

	out := Resolve(c, "web", idx, ctx)

	v, _ := out.Get("URL")
	if v != "postgres://db:5432/app" {
		t.Errorf("expected kubelet var expanded, got %q", v)
	}
}

func TestResolve_UnresolvedKubeletVarLeftLiteral(t *testing.T) {
	idx, ctx := newTestContext()
	c := manifest.Container{
		Env: []manifest.EnvVar{
			{Name: "URL", Value: "http://$(UNKNOWN)/"},
		},
	}

	out := Resolve(c, "web", idx, ctx)

	v, _ := out.Get("URL")
	if v != "http://$(UNKNOWN)/" {
		t.Errorf("expected literal left unresolved, got %q", v)
	}
}

func TestResolve_ShellVarEscaped(t *testing.T) {
	idx, ctx := newTestContext()
	c := manifest.Container{
		Env: []manifest.EnvVar{
			{Name: "PROMPT", Value: "value is $HOME"},
		},
	}

	out := Resolve(c, "web", idx, ctx)

	v, _ := out.Get("PROMPT")
	if v != "value is $$HOME" {
		t.Errorf("expected shell var escaped, got %q", v)
	}
}

func TestResolve_ConfigMapKeyRef(t *testing.T) {
	idx, ctx := newTestContext()
	idx.Insert(writeableManifest(t, "ConfigMap", "app-config", map[string]interface{}{
		"data": map[string]interface{}{"LOG_LEVEL": "debug"},
	}))

	c := manifest.Container{
		Env: []manifest.EnvVar{
			{Name: "LOG_LEVEL", ValueFrom: &manifest.EnvVarSource{
				ConfigMapKeyRef: &manifest.KeyRef{Name: "app-config", Key: "LOG_LEVEL"},
			}},
		},
	}

	out := Resolve(c, "web", idx, ctx)

	v, ok := out.Get("LOG_LEVEL")
	if !ok || v != "debug" {
		t.Fatalf("expected LOG_LEVEL=debug, got %q, %v", v, ok)
	}
}

func TestResolve_MissingConfigMapWarns(t *testing.T) {
	idx, ctx := newTestContext()
	c := manifest.Container{
		Env: []manifest.EnvVar{
			{Name: "LOG_LEVEL", ValueFrom: &manifest.EnvVarSource{
				ConfigMapKeyRef: &manifest.KeyRef{Name: "missing", Key: "LOG_LEVEL"},
			}},
		},
	}

	out := Resolve(c, "web", idx, ctx)

	if _, ok := out.Get("LOG_LEVEL"); ok {
		t.Errorf("expected entry absent when ConfigMap missing")
	}
	if ctx.Warnings.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", ctx.Warnings.Len())
	}
}

func TestResolve_SecretKeyRefBase64Decoded(t *testing.T) {
	idx, ctx := newTestContext()
	idx.Insert(writeableManifest(t, "Secret", "app-secret", map[string]interface{}{
		"data": map[string]interface{}{"PW": base64.StdEncoding.EncodeToString([]byte("hunter2"))},
	}))

	c := manifest.Container{
		Env: []manifest.EnvVar{
			{Name: "PW", ValueFrom: &manifest.EnvVarSource{
				SecretKeyRef: &manifest.KeyRef{Name: "app-secret", Key: "PW"},
			}},
		},
	}

	out := Resolve(c, "web", idx, ctx)

	v, ok := out.Get("PW")
	if !ok || v != "hunter2" {
		t.Fatalf("expected decoded PW=hunter2, got %q, %v", v, ok)
	}
}

func TestResolve_FieldRefPodIPResolvesToServiceName(t *testing.T) {
	idx, ctx := newTestContext()
	c := manifest.Container{
		Env: []manifest.EnvVar{
			{Name: "SELF_IP", ValueFrom: &manifest.EnvVarSource{
				FieldRef: &manifest.FieldRef{FieldPath: "status.podIP"},
			}},
		},
	}

	out := Resolve(c, "web", idx, ctx)

	v, ok := out.Get("SELF_IP")
	if !ok || v != "web" {
		t.Fatalf("expected SELF_IP=web, got %q, %v", v, ok)
	}
}

func TestResolve_UnsupportedFieldRefWarns(t *testing.T) {
	idx, ctx := newTestContext()
	c := manifest.Container{
		Env: []manifest.EnvVar{
			{Name: "NODE", ValueFrom: &manifest.EnvVarSource{
				FieldRef: &manifest.FieldRef{FieldPath: "spec.nodeName"},
			}},
		},
	}

	Resolve(c, "web", idx, ctx)

	if ctx.Warnings.Len() != 1 {
		t.Fatalf("expected 1 warning for unsupported fieldRef, got %d", ctx.Warnings.Len())
	}
}

func TestResolve_EnvFromConfigMapExpanded(t *testing.T) {
	idx, ctx := newTestContext()
	idx.Insert(writeableManifest(t, "ConfigMap", "settings", map[string]interface{}{
		"data": map[string]interface{}{"A": "1", "B": "2"},
	}))

	c := manifest.Container{
		EnvFrom: []manifest.EnvFromSource{
			{ConfigMapRef: &manifest.LocalObjRef{Name: "settings"}, Prefix: "APP_"},
		},
	}

	out := Resolve(c, "web", idx, ctx)

	if v, ok := out.Get("APP_A"); !ok || v != "1" {
		t.Errorf("expected APP_A=1, got %q, %v", v, ok)
	}
	if v, ok := out.Get("APP_B"); !ok || v != "2" {
		t.Errorf("expected APP_B=2, got %q, %v", v, ok)
	}
}

// writeableManifest builds an in-memory Manifest with the given body
// decodable via Decode, without going through the YAML-file ingestion
// path used by manifest.Load.
func writeableManifest(t *testing.T, kind, name string, body map[string]interface{}) *manifest.Manifest {
	t.Helper()
	return manifest.NewManifestForTesting(kind, name, body)
}
