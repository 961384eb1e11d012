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

package extension

import (
	"reflect"

	"github.com/helmfile2compose/h2c-core/pkg/h2c/artifact"
	"github.com/helmfile2compose/h2c-core/pkg/h2c/manifest"
)

// Dispatch is the structurally-decoded form of whatever a Converter
// returned. The driver never type-asserts the raw interface{} against
// extension.ConverterResult/ProviderResult directly, because an extension
// loaded via plugin.Open links its own copy of types that look identical
// to ours but fail a Go type-identity check (same field layout, different
// provenance). Reflection over field names is what lets core and
// extension interoperate anyway (spec §4.6, §9 "structural dispatch over
// identity").
type Dispatch struct {
	SyntheticManifests []*manifest.Manifest
	Warnings           []string
	Services           map[string]*artifact.Service
	IngressEntries     []artifact.IngressEntry
	IsProvider         bool
}

// Classify inspects v's concrete type structurally and extracts whatever
// ConverterResult/ProviderResult-shaped fields it finds. A nil v (the
// converter had no opinion on this manifest) yields a zero Dispatch.
func Classify(v interface{}) Dispatch {
	var d Dispatch
	if v == nil {
		return d
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return d
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return d
	}

	d.SyntheticManifests = stringSliceOrManifestSliceField(rv, "SyntheticManifests")
	d.Warnings = stringSliceField(rv, "Warnings")

	if svc := rv.FieldByName("Services"); svc.IsValid() && !svc.IsZero() {
		if m, ok := svc.Interface().(map[string]*artifact.Service); ok {
			d.Services = m
			d.IsProvider = true
		}
	}
	if entries := rv.FieldByName("IngressEntries"); entries.IsValid() {
		if e, ok := entries.Interface().([]artifact.IngressEntry); ok && len(e) > 0 {
			d.IngressEntries = e
			d.IsProvider = true
		}
	}

	return d
}

func stringSliceOrManifestSliceField(rv reflect.Value, name string) []*manifest.Manifest {
	f := rv.FieldByName(name)
	if !f.IsValid() {
		return nil
	}
	if m, ok := f.Interface().([]*manifest.Manifest); ok {
		return m
	}
	return nil
}

func stringSliceField(rv reflect.Value, name string) []string {
	f := rv.FieldByName(name)
	if !f.IsValid() {
		return nil
	}
	if s, ok := f.Interface().([]string); ok {
		return s
	}
	return nil
}
