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

// Package renderer wraps the upstream Helm/helmfile template renderer, an
// external collaborator this module treats as a black box (spec §1,
// "Out of scope: invoking the upstream template renderer"): it shells
// out to the `helmfile` binary the same way the teacher's kompose
// converter shells out to `kompose version` for a version string, and
// hands the core pipeline the directory the renderer wrote manifests to.
package renderer

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/helmfile2compose/h2c-core/internal/log"
)

// Options configures a single renderer invocation.
type Options struct {
	// HelmfileDir is the directory containing the helmfile.yaml to
	// render; Render always passes <HelmfileDir>/helmfile.yaml, so a
	// helmfile.d directory is not picked up.
	HelmfileDir string

	// Environment is passed to helmfile as `--environment`.
	Environment string

	// Binary overrides the helmfile executable name, for testing.
	Binary string
}

// Render invokes `helmfile template` against HelmfileDir and writes its
// whole stdout, unsplit, to a single multi-document rendered.yaml in a
// fresh temp directory, which phase 1 ingestion then reads the same way
// as a `--from-dir` input directory.
func Render(opts Options) (outputDir string, err error) {
	binary := opts.Binary
	if binary == "" {
		binary = "helmfile"
	}

	args := []string{"--file", filepath.Join(opts.HelmfileDir, "helmfile.yaml"), "template"}
	if opts.Environment != "" {
		args = append([]string{"--environment", opts.Environment}, args...)
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = opts.HelmfileDir
	cmd.Stderr = os.Stderr

	log.InfoWithFields(log.Fields{"binary": binary, "dir": opts.HelmfileDir, "env": opts.Environment}, "invoking upstream renderer")

	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrap(err, "invoking upstream renderer")
	}

	dir, err := os.MkdirTemp("", "h2c-rendered-")
	if err != nil {
		return "", errors.Wrap(err, "creating rendered-manifest temp directory")
	}

	if err := os.WriteFile(filepath.Join(dir, "rendered.yaml"), out, 0o644); err != nil {
		return "", errors.Wrap(err, "writing rendered manifest output")
	}

	return dir, nil
}
