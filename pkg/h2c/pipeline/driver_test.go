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

package pipeline

import (
	"testing"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/config"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/extension"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
)

func deployment(name string, labels map[string]interface{}, containers []interface{}) *manifest.Manifest {
	return manifest.NewManifestForTesting("Deployment", name, map[string]interface{}{
		"metadata": map[string]interface{}{"name": name},
		"spec": map[string]interface{}{
			"selector": map[string]interface{}{"matchLabels": labels},
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{"labels": labels},
				"spec":     map[string]interface{}{"containers": containers},
			},
		},
	})
}

func serviceManifest(name string, selector map[string]interface{}, ports []interface{}) *manifest.Manifest {
	return manifest.NewManifestForTesting("Service", name, map[string]interface{}{
		"metadata": map[string]interface{}{"name": name},
		"spec": map[string]interface{}{
			"selector": selector,
			"ports":    ports,
		},
	})
}

func TestRun_MinimalDeploymentAndService(t *testing.T) {
	idx := manifest.NewIndex()
	idx.Insert(deployment("web", map[string]interface{}{"app": "web"}, []interface{}{
		map[string]interface{}{
			"name":  "app",
			"image": "web:latest",
			"ports": []interface{}{map[string]interface{}{"containerPort": 8080}},
		},
	}))
	idx.Insert(serviceManifest("web-svc", map[string]interface{}{"app": "web"}, []interface{}{
		map[string]interface{}{"port": 80, "targetPort": 8080},
	}))

	cfg := &config.Project{Name: "demo", DisableIngress: true}
	result, err := Run(idx, cfg, extension.NewRegistry())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if _, ok := result.Project.Services["web"]; !ok {
		t.Fatalf("expected a 'web' service, got %v", result.Project.ServiceOrder)
	}

	svc := result.Project.Services["web"]
	net, ok := svc.Networks["default"]
	if !ok {
		t.Fatalf("expected default network aliases on web service")
	}
	found := false
	for _, a := range net.Aliases {
		if a == "web-svc.default.svc.cluster.local" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected injected FQDN alias for web-svc, got %v", net.Aliases)
	}
}

func TestRun_ExcludeCascadesToSidecarAndIngress(t *testing.T) {
	idx := manifest.NewIndex()
	idx.Insert(deployment("worker", map[string]interface{}{"app": "worker"}, []interface{}{
		map[string]interface{}{"name": "main", "image": "worker:latest"},
		map[string]interface{}{"name": "sidecar", "image": "sidecar:latest"},
	}))

	cfg := &config.Project{Name: "demo", DisableIngress: true, Exclude: []string{"worker"}}
	result, err := Run(idx, cfg, extension.NewRegistry())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if _, ok := result.Project.Services["worker"]; ok {
		t.Errorf("expected worker excluded")
	}
	if _, ok := result.Project.Services["worker-sidecar"]; ok {
		t.Errorf("expected worker-sidecar cascaded exclusion")
	}
}

func TestRun_CustomServiceAppendedVerbatim(t *testing.T) {
	idx := manifest.NewIndex()
	cfg := &config.Project{
		Name:           "demo",
		DisableIngress: true,
		Services: map[string]map[string]interface{}{
			"adminer": {"image": "adminer:latest"},
		},
	}
	result, err := Run(idx, cfg, extension.NewRegistry())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if _, ok := result.Project.Services["adminer"]; !ok {
		t.Errorf("expected custom service adminer present")
	}
}

func TestRun_OverrideCommandResolvesSecretPlaceholder(t *testing.T) {
	idx := manifest.NewIndex()
	idx.Insert(deployment("redis", map[string]interface{}{"app": "redis"}, []interface{}{
		map[string]interface{}{"name": "redis", "image": "redis:latest"},
	}))
	idx.Insert(manifest.NewManifestForTesting("Secret", "redis", map[string]interface{}{
		"metadata":   map[string]interface{}{"name": "redis"},
		"stringData": map[string]interface{}{"pw": "hunter2"},
	}))

	cfg := &config.Project{
		Name:           "demo",
		DisableIngress: true,
		Overrides: map[string]map[string]interface{}{
			"redis": {"command": []interface{}{"redis-server", "--requirepass", "$secret:redis:pw"}},
		},
	}
	result, err := Run(idx, cfg, extension.NewRegistry())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	cmd := result.Project.Services["redis"].Command
	want := []string{"redis-server", "--requirepass", "hunter2"}
	if len(cmd) != len(want) {
		t.Fatalf("expected command %v, got %v", want, cmd)
	}
	for i, w := range want {
		if cmd[i] != w {
			t.Errorf("expected command[%d] = %q, got %q", i, w, cmd[i])
		}
	}
}

func TestRun_OverrideEnvironmentResolvesSecretPlaceholder(t *testing.T) {
	idx := manifest.NewIndex()
	idx.Insert(deployment("api", map[string]interface{}{"app": "api"}, []interface{}{
		map[string]interface{}{"name": "api", "image": "api:latest"},
	}))
	idx.Insert(manifest.NewManifestForTesting("Secret", "api", map[string]interface{}{
		"metadata":   map[string]interface{}{"name": "api"},
		"stringData": map[string]interface{}{"token": "topsecret"},
	}))

	cfg := &config.Project{
		Name:           "demo",
		DisableIngress: true,
		Overrides: map[string]map[string]interface{}{
			"api": {"environment": map[string]interface{}{"API_TOKEN": "$secret:api:token"}},
		},
	}
	result, err := Run(idx, cfg, extension.NewRegistry())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	v, ok := result.Project.Services["api"].Environment.Get("API_TOKEN")
	if !ok || v != "topsecret" {
		t.Errorf("expected API_TOKEN=topsecret, got %q (found=%v)", v, ok)
	}
}

func TestRun_OverrideDeletesEnvKeyOnNull(t *testing.T) {
	idx := manifest.NewIndex()
	idx.Insert(deployment("api", map[string]interface{}{"app": "api"}, []interface{}{
		map[string]interface{}{
			"name":  "api",
			"image": "api:latest",
			"env": []interface{}{
				map[string]interface{}{"name": "DEBUG", "value": "1"},
			},
		},
	}))

	cfg := &config.Project{
		Name:           "demo",
		DisableIngress: true,
		Overrides: map[string]map[string]interface{}{
			"api": {"environment": map[string]interface{}{"DEBUG": nil}},
		},
	}
	result, err := Run(idx, cfg, extension.NewRegistry())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if _, ok := result.Project.Services["api"].Environment.Get("DEBUG"); ok {
		t.Errorf("expected DEBUG deleted by null override")
	}
}
