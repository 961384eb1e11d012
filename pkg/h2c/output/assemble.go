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
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/helmfile2compose/h2c-core/internal/log"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/config"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/pipeline"
)

// DefaultComposeFileName is the default compose output filename.
const DefaultComposeFileName = "compose.yml"

// Assemble writes the Pipeline Driver's result to outputDir: compose.yml
// (or composeFileName when non-empty), a Caddyfile (named
// `Caddyfile-<project>` when disable_ingress is set, per spec §4.7 phase
// 5/10), every materialised ConfigMap/Secret file under volume_root, and
// the project config itself so manual edits round-trip on the next run.
func Assemble(outputDir string, result *pipeline.Result, cfg *config.Project, composeFileName string) error {
	if composeFileName == "" {
		composeFileName = DefaultComposeFileName
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	composeData, err := RenderCompose(result.Project)
	if err != nil {
		return errors.Wrap(err, "rendering compose project")
	}
	if err := os.WriteFile(filepath.Join(outputDir, composeFileName), composeData, 0o644); err != nil {
		return errors.Wrap(err, "writing compose file")
	}
	log.InfoWithFields(log.Fields{"path": composeFileName}, "wrote compose file")

	if err := writeCaddyfile(outputDir, result, cfg); err != nil {
		return err
	}

	if err := writeMaterializedFiles(outputDir, cfg, result); err != nil {
		return err
	}

	if err := config.Save(filepath.Join(outputDir, config.DefaultFileName), cfg); err != nil {
		return errors.Wrap(err, "saving project config")
	}

	return nil
}

func writeCaddyfile(outputDir string, result *pipeline.Result, cfg *config.Project) error {
	if len(result.Ingress) == 0 {
		return nil
	}

	name := "Caddyfile"
	if cfg.DisableIngress {
		name = fmt.Sprintf("Caddyfile-%s", cfg.Name)
	}

	sites := GroupByHost(result.Ingress)
	content := RenderCaddyfile(sites, cfg)

	if err := os.WriteFile(filepath.Join(outputDir, name), []byte(content), 0o644); err != nil {
		return errors.Wrap(err, "writing Caddyfile")
	}
	log.InfoWithFields(log.Fields{"path": name, "sites": len(sites)}, "wrote ingress routing file")
	return nil
}

// writeMaterializedFiles writes every ConfigMap/Secret-derived file the
// Volume Resolver collected, rooted under the project's configured
// volume_root (spec §4.3, "materialised files").
func writeMaterializedFiles(outputDir string, cfg *config.Project, result *pipeline.Result) error {
	root := cfg.ResolvedVolumeRoot()
	for _, f := range result.Files {
		fullPath := filepath.Join(outputDir, root, f.RelPath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return errors.Wrapf(err, "creating directory for %s", f.RelPath)
		}
		if err := os.WriteFile(fullPath, []byte(f.Content), 0o644); err != nil {
			return errors.Wrapf(err, "writing materialised file %s", f.RelPath)
		}
	}
	return nil
}
