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

package renderer

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRender_InvokesBinaryAndCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake renderer script is a POSIX shell script")
	}

	helmfileDir := t.TempDir()
	fakeBinary := filepath.Join(helmfileDir, "fake-helmfile.sh")
	script := "#!/bin/sh\necho 'kind: ConfigMap'\necho 'metadata:'\necho '  name: rendered'\n"
	if err := os.WriteFile(fakeBinary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	outputDir, err := Render(Options{HelmfileDir: helmfileDir, Binary: fakeBinary})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	defer os.RemoveAll(outputDir)

	data, err := os.ReadFile(filepath.Join(outputDir, "rendered.yaml"))
	if err != nil {
		t.Fatalf("expected rendered.yaml: %v", err)
	}
	if len(data) == 0 {
		t.Errorf("expected non-empty rendered output")
	}
}
