package deploy

import (
	"bytes"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"
)

const (
	gpuResource     = corev1.ResourceName("nvidia.com/gpu")
	gpuProductLabel = "nvidia.com/gpu.product"
	appLabel        = "app.kubernetes.io/name"
	componentLabel  = "app.kubernetes.io/component"
	partOfLabel     = "app.kubernetes.io/part-of"
	partOf          = "coding-agent-server"
)

// Deployment builds the apps/v1 Deployment running spec on a GPU node
func Deployment(spec EndpointSpec) *appsv1.Deployment {
	name := resourceName(spec)
	labels := map[string]string{
		appLabel:       name,
		componentLabel: spec.Name,
		partOfLabel:    partOf,
	}

	replicas := int32(1)
	gpus := resource.MustParse(fmt.Sprintf("%d", spec.GPUCount))
	args := VLLMArgs(spec)

	probe := &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: "/health",
				Port: intstr.FromInt32(int32(spec.Port)),
			},
		},
		PeriodSeconds:    int32(healthPollInterval.Seconds()),
		FailureThreshold: int32(spec.StartupTimeout / healthPollInterval),
	}

	pod := corev1.PodSpec{
		Containers: []corev1.Container{{
			Name:    spec.Name,
			Image:   spec.Image,
			Command: args[:1],
			Args:    args[1:],
			Ports: []corev1.ContainerPort{{
				Name:          "http",
				ContainerPort: int32(spec.Port),
				Protocol:      corev1.ProtocolTCP,
			}},
			Resources: corev1.ResourceRequirements{
				Limits:   corev1.ResourceList{gpuResource: gpus},
				Requests: corev1.ResourceList{gpuResource: gpus},
			},
			StartupProbe: probe,
			ReadinessProbe: &corev1.Probe{
				ProbeHandler:  probe.ProbeHandler,
				PeriodSeconds: probe.PeriodSeconds,
			},
			VolumeMounts: []corev1.VolumeMount{{
				Name:      "weights",
				MountPath: spec.ModelDir,
				ReadOnly:  true,
			}},
		}},
		Volumes: []corev1.Volume{{
			Name: "weights",
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
					ClaimName: name + "-weights",
					ReadOnly:  true,
				},
			},
		}},
	}
	if spec.GPUType != "" {
		pod.NodeSelector = map[string]string{gpuProductLabel: spec.GPUType}
	}

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels,
			Annotations: map[string]string{
				partOf + "/max-concurrent-inputs": fmt.Sprintf("%d", spec.MaxConcurrentInputs),
				partOf + "/scaledown-window":      spec.ScaledownWindow.String(),
			},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{appLabel: name}},
			Strategy: appsv1.DeploymentStrategy{Type: appsv1.RecreateDeploymentStrategyType},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       pod,
			},
		},
	}
}

// Service exposes the Deployment's HTTP port inside the cluster
func Service(spec EndpointSpec) *corev1.Service {
	name := resourceName(spec)
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{appLabel: name, partOfLabel: partOf},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{appLabel: name},
			Ports: []corev1.ServicePort{{
				Name:       "http",
				Port:       int32(spec.Port),
				TargetPort: intstr.FromString("http"),
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
}

// Manifests renders the Deployment and Service as a multi-document YAML stream
func Manifests(spec EndpointSpec) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for i, obj := range []interface{}{Deployment(spec), Service(spec)} {
		out, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("render manifest: %w", err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(out)
	}
	return buf.Bytes(), nil
}

func resourceName(spec EndpointSpec) string {
	return partOf + "-" + spec.Name
}
