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
)

func TestRenderCompose_PreservesServiceOrderAndEnvOrder(t *testing.T) {
	project := artifact.NewProject()

	env := artifact.NewOrderedEnv()
	env.Set("ZETA", "1")
	env.Set("ALPHA", "2")

	project.AddService(&artifact.Service{Name: "web", Image: "web:latest", Environment: env})
	project.AddService(&artifact.Service{Name: "api", Image: "api:latest"})

	data, err := RenderCompose(project)
	if err != nil {
		t.Fatalf("RenderCompose error: %v", err)
	}
	out := string(data)

	webIdx := strings.Index(out, "web:")
	apiIdx := strings.Index(out, "api:")
	if webIdx == -1 || apiIdx == -1 || webIdx > apiIdx {
		t.Fatalf("expected web before api in service order, got:\n%s", out)
	}

	zetaIdx := strings.Index(out, "ZETA")
	alphaIdx := strings.Index(out, "ALPHA")
	if zetaIdx == -1 || alphaIdx == -1 || zetaIdx > alphaIdx {
		t.Fatalf("expected ZETA before ALPHA (insertion order), got:\n%s", out)
	}
}

func TestRenderCompose_EmptyProjectHasNoServices(t *testing.T) {
	project := artifact.NewProject()
	data, err := RenderCompose(project)
	if err != nil {
		t.Fatalf("RenderCompose error: %v", err)
	}
	if !strings.Contains(string(data), "services:") {
		t.Errorf("expected services key present even when empty, got:\n%s", string(data))
	}
}
