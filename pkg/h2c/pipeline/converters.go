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
	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/extension"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// maxConverterCycles bounds converter fan-out re-evaluation (spec §4.7
// phase 2: "bounded to 3 cycles to prevent unbounded recursion; warn and
// stop on exceeding").
const maxConverterCycles = 3

// providerOutput accumulates compose services and ingress entries a
// provider contributed directly, for the Pipeline Driver to merge in
// after workload/ingress build.
type providerOutput struct {
	services map[string]*artifact.Service
	entries  []artifact.IngressEntry
}

// runConverterFanOut implements spec §4.7 phase 2. Every manifest whose
// kind is claimed by at least one converter is passed to each claiming
// converter, in priority order; synthetic manifests a converter returns
// are inserted back into the index and become eligible for conversion on
// the next cycle. The walk stops after maxConverterCycles with a warning
// if manifests are still being newly produced.
func runConverterFanOut(ctx *convertctx.Context, registry *extension.Registry, sink *warn.Sink) providerOutput {
	out := providerOutput{services: map[string]*artifact.Service{}}

	processed := map[string]bool{}

	for cycle := 0; cycle < maxConverterCycles; cycle++ {
		produced := false

		for _, kind := range registry.ClaimedKinds() {
			for _, m := range ctx.Index.ByKind(kind) {
				key := manifestProcessKey(m)
				if processed[key] {
					continue
				}
				processed[key] = true

				for _, conv := range registry.ConvertersFor(kind) {
					result, err := conv.Convert(m, ctx)
					if err != nil {
						sink.Addf(warn.KindExtensionRuntime, m.Kind+"/"+m.Name, "converter error: %v", err)
						continue
					}
					if result == nil {
						continue
					}
					d := classifyResult(result)
					for _, w := range d.Warnings {
						sink.Add(warn.KindExtensionRuntime, m.Kind+"/"+m.Name, w)
					}
					for _, synth := range d.SyntheticManifests {
						ctx.Index.Insert(synth)
						produced = true
					}
					if d.IsProvider {
						for name, svc := range d.Services {
							out.services[name] = svc
						}
						out.entries = append(out.entries, d.IngressEntries...)
					}
				}
			}
		}

		if !produced {
			return out
		}
	}

	sink.Add(warn.KindConvergenceExhausted, "", "converter fan-out exceeded the cycle bound; proceeding with current state")
	return out
}

func manifestProcessKey(m *manifest.Manifest) string {
	if m.Synthetic {
		return m.Kind + "/" + m.SyntheticID
	}
	return m.Kind + "/" + m.Name
}

// classifyResult is a package-local wrapper around the exported
// extension.Classify, the structural dispatch the driver applies to
// converter results.
func classifyResult(v interface{}) extension.Dispatch {
	return extension.Classify(v)
}
