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

package rewrite

import (
	"encoding/base64"
	"testing"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/config"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

func newCtx(cfg *config.Project) (*manifest.Index, *convertctx.Context) {
	idx := manifest.NewIndex()
	if cfg == nil {
		cfg = &config.Project{Name: "demo"}
	}
	return idx, convertctx.New(idx, cfg, warn.NewSink())
}

func TestApplyToString_RemapsKnownHostPort(t *testing.T) {
	_, ctx := newCtx(nil)
	ctx.Aliases.Set("redis-service", "redis")
	ctx.Ports.Set("redis-service", "6379", 6379)

	got := ApplyToString("connect to redis-service:6379 now", "ref", ctx)
	if got != "connect to redis:6379 now" {
		t.Fatalf("unexpected remap result: %q", got)
	}
}

func TestApplyToString_RemapIsIdempotent(t *testing.T) {
	_, ctx := newCtx(nil)
	ctx.Aliases.Set("redis-service", "redis")
	ctx.Ports.Set("redis-service", "6379", 6379)

	once := ApplyToString("redis-service:6379", "ref", ctx)
	twice := ApplyToString(once, "ref", ctx)
	if once != twice {
		t.Fatalf("expected idempotence, got %q then %q", once, twice)
	}
}

func TestApplyToString_UnknownHostPortLeftAlone(t *testing.T) {
	_, ctx := newCtx(nil)
	got := ApplyToString("external-api:443", "ref", ctx)
	if got != "external-api:443" {
		t.Errorf("expected unknown host:port left alone, got %q", got)
	}
}

func TestApplyToString_VolumeRootPlaceholder(t *testing.T) {
	_, ctx := newCtx(&config.Project{Name: "demo", VolumeRoot: "/srv/data"})
	got := ApplyToString("$volume_root/app", "ref", ctx)
	if got != "/srv/data/app" {
		t.Fatalf("expected volume root substituted, got %q", got)
	}
}

func TestApplyToString_SecretPlaceholderResolves(t *testing.T) {
	idx, ctx := newCtx(nil)
	idx.Insert(manifest.NewManifestForTesting("Secret", "redis", map[string]interface{}{
		"data": map[string]interface{}{"pw": base64.StdEncoding.EncodeToString([]byte("hunter2"))},
	}))

	got := ApplyToString("--requirepass $secret:redis:pw", "ref", ctx)
	if got != "--requirepass hunter2" {
		t.Fatalf("expected secret resolved, got %q", got)
	}
}

func TestApplyToString_UnresolvedSecretWarnsAndLeavesLiteral(t *testing.T) {
	_, ctx := newCtx(nil)
	got := ApplyToString("$secret:missing:pw", "ref", ctx)
	if got != "$secret:missing:pw" {
		t.Errorf("expected literal left unresolved, got %q", got)
	}
	if ctx.Warnings.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", ctx.Warnings.Len())
	}
}

func TestApplyToString_UserReplacementLiteralMatch(t *testing.T) {
	_, ctx := newCtx(&config.Project{
		Name:         "demo",
		Replacements: []config.Replacement{{Old: "staging.internal", New: "localhost"}},
	})
	got := ApplyToString("http://staging.internal:8080", "ref", ctx)
	if got != "http://localhost:8080" {
		t.Fatalf("expected literal replacement, got %q", got)
	}
}

func TestApplyToService_RewritesEnvironmentAndCommand(t *testing.T) {
	_, ctx := newCtx(&config.Project{Name: "demo", VolumeRoot: "/data"})
	svc := &artifact.Service{Name: "web", Command: []string{"--root=$volume_root"}}
	svc.Environment = artifact.NewOrderedEnv()
	svc.Environment.Set("ROOT", "$volume_root/x")

	ApplyToService(svc, ctx)

	if v, _ := svc.Environment.Get("ROOT"); v != "/data/x" {
		t.Errorf("expected environment rewritten, got %q", v)
	}
	if svc.Command[0] != "--root=/data" {
		t.Errorf("expected command rewritten, got %q", svc.Command[0])
	}
}
