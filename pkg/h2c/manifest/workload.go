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

// The types below are null-safe decode targets for the workload-shaped
// portion of a manifest (Deployment/StatefulSet/DaemonSet/Job). They are
// deliberately hand-rolled rather than vendoring k8s.io/api/apps/v1: the
// index reads manifests generically and must tolerate unknown/absent
// fields instead of rejecting anything that isn't a well-formed object of
// the real Kubernetes schema.

// WorkloadDoc is the decode target for the whole Deployment/StatefulSet/
// DaemonSet/Job document body.
type WorkloadDoc struct {
	Spec WorkloadSpec `yaml:"spec"`
}

// WorkloadSpec covers the subset of a workload's spec this module cares
// about. DaemonSet/Deployment/StatefulSet share this shape; Job differs
// only in restart semantics, handled by the Service Builder.
type WorkloadSpec struct {
	Replicas *int32          `yaml:"replicas"`
	Selector Selector        `yaml:"selector"`
	Template PodTemplateSpec `yaml:"template"`
}

// Selector is a label selector; MatchLabels is null-safe.
type Selector struct {
	MatchLabels StringMap `yaml:"matchLabels"`
}

// PodTemplateSpec is the pod template embedded in a workload spec.
type PodTemplateSpec struct {
	Metadata PodMetadata `yaml:"metadata"`
	Spec     PodSpec     `yaml:"spec"`
}

// PodMetadata is the metadata block of a pod template.
type PodMetadata struct {
	Labels StringMap `yaml:"labels"`
}

// PodSpec is the subset of a v1.PodSpec this module acts on.
type PodSpec struct {
	Containers     []Container    `yaml:"containers"`
	InitContainers []Container    `yaml:"initContainers"`
	Volumes        []VolumeSource `yaml:"volumes"`
	Hostname       string         `yaml:"hostname"`
}

// Container is the subset of a v1.Container this module acts on.
type Container struct {
	Name         string          `yaml:"name"`
	Image        string          `yaml:"image"`
	Command      StringSlice     `yaml:"command"`
	Args         StringSlice     `yaml:"args"`
	Env          []EnvVar        `yaml:"env"`
	EnvFrom      []EnvFromSource `yaml:"envFrom"`
	Ports        []ContainerPort `yaml:"ports"`
	VolumeMounts []VolumeMount   `yaml:"volumeMounts"`
}

// EnvVar mirrors v1.EnvVar.
type EnvVar struct {
	Name      string        `yaml:"name"`
	Value     string        `yaml:"value"`
	ValueFrom *EnvVarSource `yaml:"valueFrom"`
}

// EnvVarSource mirrors v1.EnvVarSource, restricted to the sources spec §4.2 resolves.
type EnvVarSource struct {
	ConfigMapKeyRef *KeyRef   `yaml:"configMapKeyRef"`
	SecretKeyRef    *KeyRef   `yaml:"secretKeyRef"`
	FieldRef        *FieldRef `yaml:"fieldRef"`
}

// KeyRef mirrors the common {name,key} shape of ConfigMap/Secret key refs.
type KeyRef struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// FieldRef mirrors v1.ObjectFieldSelector.
type FieldRef struct {
	FieldPath string `yaml:"fieldPath"`
}

// EnvFromSource mirrors v1.EnvFromSource.
type EnvFromSource struct {
	Prefix       string        `yaml:"prefix"`
	ConfigMapRef *LocalObjRef  `yaml:"configMapRef"`
	SecretRef    *LocalObjRef  `yaml:"secretRef"`
}

// LocalObjRef mirrors v1.LocalObjectReference (+optional, ignored).
type LocalObjRef struct {
	Name string `yaml:"name"`
}

// ContainerPort mirrors v1.ContainerPort.
type ContainerPort struct {
	Name          string `yaml:"name"`
	ContainerPort int32  `yaml:"containerPort"`
	Protocol      string `yaml:"protocol"`
}

// VolumeMount mirrors v1.VolumeMount.
type VolumeMount struct {
	Name      string `yaml:"name"`
	MountPath string `yaml:"mountPath"`
	ReadOnly  bool   `yaml:"readOnly"`
}

// VolumeSource mirrors the subset of v1.Volume this module resolves.
type VolumeSource struct {
	Name                  string                 `yaml:"name"`
	PersistentVolumeClaim *PVCSource             `yaml:"persistentVolumeClaim"`
	ConfigMap             *ConfigMapVolumeSource `yaml:"configMap"`
	Secret                *SecretVolumeSource    `yaml:"secret"`
	EmptyDir              *struct{}              `yaml:"emptyDir"`
	HostPath              *HostPathSource        `yaml:"hostPath"`
}

// PVCSource mirrors v1.PersistentVolumeClaimVolumeSource.
type PVCSource struct {
	ClaimName string `yaml:"claimName"`
}

// HostPathSource mirrors v1.HostPathVolumeSource.
type HostPathSource struct {
	Path string `yaml:"path"`
}

// KeyToPath mirrors v1.KeyToPath: an explicit key->path alias for a
// ConfigMap/Secret volume's `items:` list.
type KeyToPath struct {
	Key  string `yaml:"key"`
	Path string `yaml:"path"`
}

// ConfigMapVolumeSource mirrors v1.ConfigMapVolumeSource.
type ConfigMapVolumeSource struct {
	Name  string      `yaml:"name"`
	Items []KeyToPath `yaml:"items"`
}

// SecretVolumeSource mirrors v1.SecretVolumeSource.
type SecretVolumeSource struct {
	SecretName string      `yaml:"secretName"`
	Items      []KeyToPath `yaml:"items"`
}

// ConfigMapDoc is the decode target for a ConfigMap document.
type ConfigMapDoc struct {
	Data StringMap `yaml:"data"`
}

// SecretDoc is the decode target for a Secret document; values are base64.
type SecretDoc struct {
	Data       StringMap `yaml:"data"`
	StringData StringMap `yaml:"stringData"`
}

// ServiceDoc is the decode target for a Service document.
type ServiceDoc struct {
	Spec ServiceSpec `yaml:"spec"`
}

// ServiceSpec mirrors the subset of v1.ServiceSpec this module acts on.
type ServiceSpec struct {
	Type         string        `yaml:"type"`
	Selector     StringMap     `yaml:"selector"`
	Ports        []ServicePort `yaml:"ports"`
	ExternalName string        `yaml:"externalName"`
}

// ServicePort mirrors v1.ServicePort.
type ServicePort struct {
	Name       string      `yaml:"name"`
	Port       int32       `yaml:"port"`
	TargetPort interface{} `yaml:"targetPort"`
	NodePort   int32       `yaml:"nodePort"`
	Protocol   string      `yaml:"protocol"`
}

// IngressDoc is the decode target for an Ingress document.
type IngressDoc struct {
	Spec IngressSpec `yaml:"spec"`
}

// IngressSpec mirrors the subset of networking.k8s.io/v1 IngressSpec this
// module acts on.
type IngressSpec struct {
	IngressClassName string         `yaml:"ingressClassName"`
	TLS              []IngressTLS   `yaml:"tls"`
	Rules            []IngressRule  `yaml:"rules"`
}

// IngressTLS mirrors networking.k8s.io/v1 IngressTLS.
type IngressTLS struct {
	Hosts      StringSlice `yaml:"hosts"`
	SecretName string      `yaml:"secretName"`
}

// IngressRule mirrors networking.k8s.io/v1 IngressRule.
type IngressRule struct {
	Host string            `yaml:"host"`
	HTTP IngressRuleValueHTTP `yaml:"http"`
}

// IngressRuleValueHTTP mirrors networking.k8s.io/v1 HTTPIngressRuleValue.
type IngressRuleValueHTTP struct {
	Paths []IngressPath `yaml:"paths"`
}

// IngressPath mirrors networking.k8s.io/v1 HTTPIngressPath.
type IngressPath struct {
	Path     string             `yaml:"path"`
	PathType string             `yaml:"pathType"`
	Backend  IngressPathBackend `yaml:"backend"`
}

// IngressPathBackend mirrors networking.k8s.io/v1 IngressBackend, restricted
// to service backends (resource backends are not converted).
type IngressPathBackend struct {
	Service *IngressServiceBackend `yaml:"service"`
}

// IngressServiceBackend mirrors networking.k8s.io/v1 IngressServiceBackend.
type IngressServiceBackend struct {
	Name string                `yaml:"name"`
	Port IngressServiceBackendPort `yaml:"port"`
}

// IngressServiceBackendPort mirrors networking.k8s.io/v1 ServiceBackendPort.
type IngressServiceBackendPort struct {
	Name   string `yaml:"name"`
	Number int32  `yaml:"number"`
}
