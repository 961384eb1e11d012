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

// Package h2c ties the Manifest Index, project config, extension
// registry and Pipeline Driver together behind a single Run entry point,
// mirroring the way the teacher's kev package exposes a Project/
// Definition pair that commands under cmd/ call into rather than wiring
// phases themselves.
package h2c

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/helmfile2compose/h2c-core/internal/log"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/config"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/extension"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/output"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/pipeline"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// Options configures a single Run. Exactly one of InputDir (post-render,
// `--from-dir`) is set by the CLI layer; rendering a `--helmfile-dir` into
// a directory is the caller's job via the renderer package, kept separate
// so Options never needs to know about the external renderer.
type Options struct {
	InputDir      string
	OutputDir     string
	ExtensionsDir string
	ComposeFile   string
	ProjectName   string
}

// Result reports what a Run produced, for the CLI layer to print a
// summary and choose an exit code.
type Result struct {
	ServiceCount int
	Warnings     []warn.Warning
}

// Run executes the full pipeline end to end: load extensions, ingest
// manifests, run the Pipeline Driver, assemble output. It is the single
// entry point cmd/h2c's RunE functions call into (spec §4.7, all ten
// phases plus the extension-loading step that precedes phase 1).
func Run(opts Options) (*Result, error) {
	sink := warn.NewSink()

	registry := extension.NewRegistry()
	if opts.ExtensionsDir != "" {
		var err error
		registry, err = extension.Load(opts.ExtensionsDir, sink)
		if err != nil {
			return nil, errors.Wrap(err, "loading extensions")
		}
	}

	cfgPath := filepath.Join(opts.OutputDir, config.DefaultFileName)
	cfg, err := config.Load(cfgPath, opts.ProjectName)
	if err != nil {
		return nil, errors.Wrap(err, "loading project config")
	}

	idx, err := manifest.LoadAndClaim(opts.InputDir, sink, registry.ClaimedKinds())
	if err != nil {
		return nil, errors.Wrap(err, "loading manifests")
	}

	driverResult, err := pipeline.Run(idx, cfg, registry)
	if err != nil {
		return nil, errors.Wrap(err, "running conversion pipeline")
	}
	// The driver's own sink accumulates phase 2-9 warnings; the
	// extension-load and ingestion warnings were recorded on sink above.
	// Both sinks exist because Context is only constructed inside
	// pipeline.Run once idx/cfg are ready; merge them for a single report.
	allWarnings := append(sink.All(), driverResult.Warnings.All()...)

	if err := output.Assemble(opts.OutputDir, driverResult, cfg, opts.ComposeFile); err != nil {
		return nil, errors.Wrap(err, "writing output")
	}

	log.InfoWithFields(log.Fields{
		"services": len(driverResult.Project.Services),
		"warnings": len(allWarnings),
	}, "conversion complete")

	return &Result{
		ServiceCount: len(driverResult.Project.Services),
		Warnings:     allWarnings,
	}, nil
}
