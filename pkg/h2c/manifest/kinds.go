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

package manifest

// silentlyIgnoredKinds are dropped from the index without a warning: they
// carry no Compose/Caddy equivalent and their absence is expected, not a
// conversion gap (spec §4.1).
var silentlyIgnoredKinds = map[string]bool{
	"Role":               true,
	"RoleBinding":        true,
	"ClusterRole":        true,
	"ClusterRoleBinding": true,
	"ServiceAccount":     true,
	"NetworkPolicy":      true,
	"CustomResourceDefinition": true,
	"IngressClass":       true,
	"ValidatingWebhookConfiguration": true,
	"MutatingWebhookConfiguration":   true,
	"Namespace":          true,
}

// unsupportedKinds are known but unconverted: a single warning per kind is
// emitted, not once per instance (spec §4.1).
var unsupportedKinds = map[string]bool{
	"CronJob":                  true,
	"HorizontalPodAutoscaler":  true,
	"PodDisruptionBudget":      true,
}

// WorkloadKinds are the kinds that produce compose services via the
// Service Builder (spec GLOSSARY: Workload).
var WorkloadKinds = map[string]bool{
	"Deployment":  true,
	"StatefulSet": true,
	"DaemonSet":   true,
	"Job":         true,
}

// IsSilentlyIgnored reports whether a kind is dropped without comment.
func IsSilentlyIgnored(kind string) bool { return silentlyIgnoredKinds[kind] }

// IsKnownUnsupported reports whether a kind is recognised but unconverted.
func IsKnownUnsupported(kind string) bool { return unsupportedKinds[kind] }

// IsWorkload reports whether a kind is a workload kind.
func IsWorkload(kind string) bool { return WorkloadKinds[kind] }
