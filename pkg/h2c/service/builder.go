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

// Package service implements the Service Builder (spec §4.4): turning one
// workload manifest into the compose services it maps to (main, init,
// sidecar), applying the hostname, command/args and port-publishing
// rules.
package service

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/convertctx"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/env"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/volumes"
)

// maxHostnameLength is the POSIX HOST_NAME_MAX many container runtimes
// enforce; compose service names can be longer, so names past this get an
// explicit, truncated `hostname:` (spec §4.4 "Hostname rule").
const maxHostnameLength = 63

var trailingNonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+$`)

// Result is everything Build produced for one workload.
type Result struct {
	Services []*artifact.Service
	Volumes  map[string]artifact.Volume
	Files    []volumes.MaterializedFile
}

// Build turns workload (kind is one of Deployment/StatefulSet/DaemonSet/
// Job) into its compose service(s).
func Build(m *manifest.Manifest, ctx *convertctx.Context) (Result, error) {
	var doc manifest.WorkloadDoc
	if err := m.Decode(&doc); err != nil {
		return Result{}, fmt.Errorf("decoding workload %s/%s: %w", m.Kind, m.Name, err)
	}

	pod := doc.Spec.Template.Spec
	res := Result{Volumes: map[string]artifact.Volume{}}

	restart := ""
	if m.Kind == "Job" {
		restart = "on-failure"
	}

	if len(pod.Containers) == 0 {
		return res, fmt.Errorf("workload %s/%s has no containers", m.Kind, m.Name)
	}

	main := buildContainer(pod.Containers[0], pod, m.Name, restart, ctx, &res)
	applyHostPorts(main, m.Name, ctx)
	applyNetworkAliases(main, m.Name, m.Namespace)
	res.Services = append(res.Services, main)

	for _, init := range pod.InitContainers {
		name := fmt.Sprintf("%s-init-%s", m.Name, init.Name)
		svc := buildContainer(init, pod, name, "on-failure", ctx, &res)
		res.Services = append(res.Services, svc)
	}

	for _, sidecar := range pod.Containers[1:] {
		name := fmt.Sprintf("%s-%s", m.Name, sidecar.Name)
		svc := buildContainer(sidecar, pod, name, restart, ctx, &res)
		svc.NetworkMode = "container:" + m.Name
		svc.Ports = nil
		svc.Networks = nil
		res.Services = append(res.Services, svc)
	}

	return res, nil
}

func buildContainer(c manifest.Container, pod manifest.PodSpec, name, restart string, ctx *convertctx.Context, res *Result) *artifact.Service {
	resolvedEnv := env.Resolve(c, name, ctx.Index, ctx)

	svc := &artifact.Service{
		Name:        name,
		Image:       c.Image,
		Environment: resolvedEnv,
		Restart:     restart,
	}

	if len(c.Command) > 0 {
		svc.Entrypoint = expandAgainstEnv(c.Command, resolvedEnv)
	}
	if len(c.Args) > 0 {
		svc.Command = expandAgainstEnv(c.Args, resolvedEnv)
	}

	if hostname, truncated := truncatedHostname(name); truncated {
		svc.Hostname = hostname
	}

	volResult := volumes.Resolve(c, pod, name, ctx)
	svc.Volumes = volResult.Mounts
	for k, v := range volResult.NamedVolumes {
		res.Volumes[k] = v
	}
	res.Files = append(res.Files, volResult.Files...)

	return svc
}

func expandAgainstEnv(values manifest.StringSlice, resolvedEnv artifact.OrderedEnv) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = expandKubeletVarsAgainst(v, resolvedEnv)
	}
	return out
}

var kubeletVarPattern = regexp.MustCompile(`\$\(([A-Za-z_][A-Za-z0-9_]*)\)`)

func expandKubeletVarsAgainst(value string, resolvedEnv artifact.OrderedEnv) string {
	return kubeletVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		name := kubeletVarPattern.FindStringSubmatch(match)[1]
		if v, ok := resolvedEnv.Get(name); ok {
			return v
		}
		return match
	})
}

// truncatedHostname implements spec §4.4's hostname rule: right-trim to
// 63 characters, then trim further until the string doesn't end on a
// non-alphanumeric, since a trailing `-` confuses some runtimes' hostname
// validation just as much as the overlong name did.
func truncatedHostname(name string) (string, bool) {
	if len(name) <= maxHostnameLength {
		return name, false
	}
	truncated := name[:maxHostnameLength]
	truncated = trailingNonAlnum.ReplaceAllString(truncated, "")
	return truncated, true
}

// applyHostPorts publishes ports for any NodePort/LoadBalancer Service
// whose alias resolves to this workload (spec §4.4 "Ports"). ClusterIP
// services never publish a host port.
func applyHostPorts(svc *artifact.Service, workloadName string, ctx *convertctx.Context) {
	for _, sm := range ctx.Index.ByKind("Service") {
		var sdoc manifest.ServiceDoc
		if err := sm.Decode(&sdoc); err != nil {
			continue
		}
		if sdoc.Spec.Type != "NodePort" && sdoc.Spec.Type != "LoadBalancer" {
			continue
		}
		resolved, ok := ctx.Aliases.Resolve(sm.Name)
		if !ok || resolved != workloadName {
			continue
		}
		for _, p := range sdoc.Spec.Ports {
			containerPort, ok := ctx.Ports.Resolve(sm.Name, portKey(p))
			if !ok {
				continue
			}
			svc.Ports = append(svc.Ports, fmt.Sprintf("%d:%d", p.Port, containerPort))
		}
	}
}

func portKey(p manifest.ServicePort) string {
	if p.Name != "" {
		return p.Name
	}
	return strconv.Itoa(int(p.Port))
}

// applyNetworkAliases attaches the default-network aliases every compose
// service carries: its own workload name plus the cluster-DNS variants
// (spec §4.7 phase 6). The Service Builder seeds this baseline; alias
// injection (driven separately, once the alias map is final) adds the
// Service-name aliases on top.
func applyNetworkAliases(svc *artifact.Service, name, namespace string) {
	ns := namespace
	if ns == "" {
		ns = "default"
	}
	svc.Networks = map[string]artifact.ServiceNetwork{
		"default": {
			Aliases: []string{
				name,
				fmt.Sprintf("%s.%s.svc.cluster.local", name, ns),
				fmt.Sprintf("%s.%s.svc", name, ns),
				fmt.Sprintf("%s.%s", name, ns),
			},
		},
	}
}
