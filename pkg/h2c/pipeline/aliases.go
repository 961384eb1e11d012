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
	"sort"
	"strconv"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
)

// buildAliasAndPortMaps implements spec §4.7 phase 3: walk every Service
// manifest, match its selector against each workload's pod labels, and
// record the alias (Service name -> workload name) plus the
// service-port map entries. Ties (more than one workload matching the
// same selector) break lexicographically on workload name (spec §4.7,
// §9 "Open question").
func buildAliasAndPortMaps(ctx *convertctx.Context) {
	workloads := allWorkloads(ctx)

	for _, sm := range ctx.Index.ByKind("Service") {
		var sdoc manifest.ServiceDoc
		if err := sm.Decode(&sdoc); err != nil {
			continue
		}
		if sdoc.Spec.Type == "ExternalName" {
			// ExternalName services have no selector and are resolved at
			// Ingress-build time by chaining, not by alias lookup.
			continue
		}

		workload, ok := matchingWorkload(sdoc.Spec.Selector, workloads)
		if !ok {
			continue
		}
		ctx.Aliases.Set(sm.Name, workload.name)

		for _, p := range sdoc.Spec.Ports {
			containerPort, ok := resolveContainerPort(workload, p)
			if !ok {
				continue
			}
			if p.Name != "" {
				ctx.Ports.Set(sm.Name, p.Name, containerPort)
			}
			ctx.Ports.Set(sm.Name, strconv.Itoa(int(p.Port)), containerPort)
		}
	}
}

// workloadInfo is the subset of a workload manifest the alias/port map
// builder needs.
type workloadInfo struct {
	name       string
	podLabels  manifest.StringMap
	containers []manifest.Container
}

func allWorkloads(ctx *convertctx.Context) []workloadInfo {
	var out []workloadInfo
	for _, kind := range manifestWorkloadKinds {
		for _, m := range ctx.Index.ByKind(kind) {
			var doc manifest.WorkloadDoc
			if err := m.Decode(&doc); err != nil {
				continue
			}
			labels := doc.Spec.Template.Metadata.Labels
			if len(labels) == 0 {
				labels = doc.Spec.Selector.MatchLabels
			}
			out = append(out, workloadInfo{
				name:       m.Name,
				podLabels:  labels,
				containers: doc.Spec.Template.Spec.Containers,
			})
		}
	}
	return out
}

var manifestWorkloadKinds = []string{"Deployment", "StatefulSet", "DaemonSet", "Job"}

// matchingWorkload finds every workload whose pod labels satisfy selector
// (every selector key/value must be present and equal), returning the
// lexicographically smallest name on a tie.
func matchingWorkload(selector manifest.StringMap, workloads []workloadInfo) (workloadInfo, bool) {
	if len(selector) == 0 {
		return workloadInfo{}, false
	}

	var matches []workloadInfo
	for _, w := range workloads {
		if labelsSatisfy(selector, w.podLabels) {
			matches = append(matches, w)
		}
	}
	if len(matches) == 0 {
		return workloadInfo{}, false
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].name < matches[j].name })
	return matches[0], true
}

func labelsSatisfy(selector, labels manifest.StringMap) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// resolveContainerPort resolves a ServicePort's targetPort against a
// workload's containers: by name if targetPort is a string, by number if
// it's numeric, falling back to the Service's own port number when
// targetPort is unset (standard Kubernetes default).
func resolveContainerPort(w workloadInfo, p manifest.ServicePort) (int32, bool) {
	switch tp := p.TargetPort.(type) {
	case string:
		for _, c := range w.containers {
			for _, cp := range c.Ports {
				if cp.Name == tp {
					return cp.ContainerPort, true
				}
			}
		}
		return 0, false
	case int:
		return int32(tp), true
	case int32:
		return tp, true
	case int64:
		return int32(tp), true
	case float64:
		return int32(tp), true
	default:
		return p.Port, true
	}
}
