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

// Package convertctx defines the read-mostly bundle passed to every
// extension call (spec §3, "ConvertContext"). It sits above manifest,
// config and warn but below everything that actually builds compose
// services, so it can be imported freely by extension, env, volumes,
// service, ingress, rewrite and pipeline without cycling back.
package convertctx

import (
	"github.com/helmfile2compose/h2c-core/pkg/h2c/config"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/warn"
)

// PortKey identifies one entry of the service-port map: a Service name
// paired with either the port's name or its number, stringified, in the
// single Port field (spec §3, "port-name-or-number").
type PortKey struct {
	Service string
	Port    string // port name if named, else the decimal port number
}

// AliasMap maps a Kubernetes Service name to the compose service name of
// the workload it selects (spec §3, "alias map"). Built once in phase 3
// and read-only from then on.
type AliasMap struct {
	toWorkload map[string]string
}

// NewAliasMap returns an empty alias map.
func NewAliasMap() *AliasMap {
	return &AliasMap{toWorkload: map[string]string{}}
}

// Set records serviceName as an alias of workloadName. Per invariant 3,
// the same alias may not be set to two different workloads; callers
// (phase 3's construction routine) must only call Set once per
// serviceName and rely on Resolve/Has to detect the conflict case
// themselves, since AliasMap has no warning sink of its own to report
// through.
func (a *AliasMap) Set(serviceName, workloadName string) {
	a.toWorkload[serviceName] = workloadName
}

// Resolve returns the workload name a Service name aliases, if any.
func (a *AliasMap) Resolve(serviceName string) (string, bool) {
	w, ok := a.toWorkload[serviceName]
	return w, ok
}

// Has reports whether serviceName has been recorded as an alias.
func (a *AliasMap) Has(serviceName string) bool {
	_, ok := a.toWorkload[serviceName]
	return ok
}

// ServicePortMap maps (service name, port name-or-number) to the numeric
// container port it ultimately resolves to (spec §3, "service-port map").
type ServicePortMap struct {
	ports map[PortKey]int32
}

// NewServicePortMap returns an empty service-port map.
func NewServicePortMap() *ServicePortMap {
	return &ServicePortMap{ports: map[PortKey]int32{}}
}

// Set records the container port a (service, port) pair resolves to.
func (m *ServicePortMap) Set(service, portNameOrNumber string, containerPort int32) {
	m.ports[PortKey{Service: service, Port: portNameOrNumber}] = containerPort
}

// Resolve looks up the container port for a (service, port) pair.
func (m *ServicePortMap) Resolve(service, portNameOrNumber string) (int32, bool) {
	p, ok := m.ports[PortKey{Service: service, Port: portNameOrNumber}]
	return p, ok
}

// Context is the bundle threaded through every converter, provider,
// transform and ingress-rewriter call. Created once per run in phase 1
// and grows monotonically: the alias map and service-port map start
// empty and are populated in phase 3, before any transform or rewriter
// runs (spec §3).
type Context struct {
	Index *manifest.Index

	Config *config.Project

	Aliases *AliasMap

	Ports *ServicePortMap

	// VolumeRoot is the resolved volume_root, cached off Config at
	// construction so downstream code does not need to re-derive it.
	VolumeRoot string

	Warnings *warn.Sink

	// IngressTypes mirrors config.Project.IngressTypes, copied onto the
	// context so ingress rewriter resolution does not need a Config nil
	// check on every call.
	IngressTypes map[string]string
}

// New builds a Context for a single run. Aliases and Ports start empty;
// the pipeline driver populates them during phase 3.
func New(idx *manifest.Index, cfg *config.Project, sink *warn.Sink) *Context {
	ingressTypes := cfg.IngressTypes
	if ingressTypes == nil {
		ingressTypes = map[string]string{}
	}
	return &Context{
		Index:        idx,
		Config:       cfg,
		Aliases:      NewAliasMap(),
		Ports:        NewServicePortMap(),
		VolumeRoot:   cfg.ResolvedVolumeRoot(),
		Warnings:     sink,
		IngressTypes: ingressTypes,
	}
}

// Warnf records a formatted warning against the given manifest reference.
func (c *Context) Warnf(kind warn.Kind, manifestRef, format string, args ...interface{}) {
	c.Warnings.Addf(kind, manifestRef, format, args...)
}
