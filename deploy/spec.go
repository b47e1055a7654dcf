// Package deploy describes the two vLLM endpoints this repository serves and turns
// those descriptions into engine launch arguments and Kubernetes manifests.
package deploy

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Endpoint names
const (
	Coder = "coder"
	VLM   = "vlm"
)

// EndpointSpec is everything needed to launch one model server
type EndpointSpec struct {
	Name                 string        `yaml:"name"`
	Model                string        `yaml:"model"`
	ModelDir             string        `yaml:"modelDir"`
	GPUType              string        `yaml:"gpuType"`
	GPUCount             int           `yaml:"gpuCount"`
	MaxModelLen          int           `yaml:"maxModelLen"`
	GPUMemoryUtilization float64       `yaml:"gpuMemoryUtilization"`
	KVCacheDType         string        `yaml:"kvCacheDtype"`
	ToolCallParser       string        `yaml:"toolCallParser,omitempty"`
	ImagesPerPrompt      int           `yaml:"imagesPerPrompt,omitempty"`
	MaxConcurrentInputs  int           `yaml:"maxConcurrentInputs"`
	MaxContainers        int           `yaml:"maxContainers,omitempty"`
	ScaledownWindow      time.Duration `yaml:"scaledownWindow"`
	StartupTimeout       time.Duration `yaml:"startupTimeout"`
	Port                 int           `yaml:"port"`
	Image                string        `yaml:"image,omitempty"`
}

const (
	defaultPort           = 8000
	defaultScaledown      = 5 * time.Minute
	defaultStartupTimeout = 10 * time.Minute
	defaultImage          = "vllm/vllm-openai:latest"
)

// Defaults returns the built-in coder and VLM specs
func Defaults() map[string]EndpointSpec {
	return map[string]EndpointSpec{
		// H200 (141 GiB) holds the 78 GiB FP8 weights plus a 128K KV cache on one GPU
		Coder: {
			Name:                 Coder,
			Model:                "unsloth/Qwen3-Coder-Next-FP8-Dynamic",
			ModelDir:             "/model",
			GPUType:              "H200",
			GPUCount:             1,
			MaxModelLen:          131072,
			GPUMemoryUtilization: 0.90,
			KVCacheDType:         "fp8",
			ToolCallParser:       "qwen3_coder",
			MaxConcurrentInputs:  128,
			MaxContainers:        1,
			ScaledownWindow:      defaultScaledown,
			StartupTimeout:       defaultStartupTimeout,
			Port:                 defaultPort,
			Image:                defaultImage,
		},
		// A100-40GB: 17 GiB FP8 weights leave ~19 GiB for KV cache
		VLM: {
			Name:                 VLM,
			Model:                "Qwen/Qwen3-VL-32B-Thinking-FP8",
			ModelDir:             "/vlm-model",
			GPUType:              "A100-40GB",
			GPUCount:             1,
			MaxModelLen:          32768,
			GPUMemoryUtilization: 0.90,
			KVCacheDType:         "fp8",
			ImagesPerPrompt:      5,
			MaxConcurrentInputs:  16,
			ScaledownWindow:      defaultScaledown,
			StartupTimeout:       defaultStartupTimeout,
			Port:                 defaultPort,
			Image:                defaultImage,
		},
	}
}

// Validate rejects specs the engine would refuse to start with
func (s EndpointSpec) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("endpoint name is required")
	case s.Model == "":
		return fmt.Errorf("endpoint %s: model is required", s.Name)
	case s.GPUCount < 1:
		return fmt.Errorf("endpoint %s: gpuCount must be at least 1, got %d", s.Name, s.GPUCount)
	case s.GPUMemoryUtilization <= 0 || s.GPUMemoryUtilization > 1:
		return fmt.Errorf("endpoint %s: gpuMemoryUtilization must be in (0, 1], got %g", s.Name, s.GPUMemoryUtilization)
	case s.MaxModelLen <= 0:
		return fmt.Errorf("endpoint %s: maxModelLen must be positive, got %d", s.Name, s.MaxModelLen)
	case s.Port <= 0 || s.Port > 65535:
		return fmt.Errorf("endpoint %s: invalid port %d", s.Name, s.Port)
	case s.ImagesPerPrompt < 0:
		return fmt.Errorf("endpoint %s: imagesPerPrompt must not be negative", s.Name)
	}
	return nil
}

// VLLMArgs is the argument vector for `vllm serve` (argv[0] included)
func VLLMArgs(s EndpointSpec) []string {
	modelPath := s.ModelDir
	if modelPath == "" {
		modelPath = s.Model
	}

	args := []string{
		"vllm", "serve", modelPath,
		"--host", "0.0.0.0",
		"--port", strconv.Itoa(s.Port),
		"--served-model-name", s.Model,
		"--tensor-parallel-size", strconv.Itoa(s.GPUCount),
		"--max-model-len", strconv.Itoa(s.MaxModelLen),
		"--gpu-memory-utilization", strconv.FormatFloat(s.GPUMemoryUtilization, 'f', -1, 64),
	}
	if s.KVCacheDType != "" {
		args = append(args, "--kv-cache-dtype", s.KVCacheDType)
	}
	if s.ToolCallParser != "" {
		args = append(args, "--enable-auto-tool-choice", "--tool-call-parser", s.ToolCallParser)
	}
	if s.ImagesPerPrompt > 0 {
		args = append(args, "--limit-mm-per-prompt", fmt.Sprintf("image=%d", s.ImagesPerPrompt))
	}
	return append(args, "--trust-remote-code", "--enforce-eager", "--disable-log-requests")
}

// File is the on-disk override format
type File struct {
	Endpoints []EndpointSpec `yaml:"endpoints"`
}

// LoadFile merges endpoint specs from a YAML file over the defaults. Fields left
// empty in the file keep their default values.
func LoadFile(path string) (map[string]EndpointSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deploy file: %w", err)
	}
	return Parse(data)
}

// Parse is LoadFile on bytes
func Parse(data []byte) (map[string]EndpointSpec, error) {
	specs := Defaults()

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse deploy file: %w", err)
	}

	for _, override := range f.Endpoints {
		if override.Name == "" {
			return nil, fmt.Errorf("parse deploy file: endpoint without name")
		}
		merged := merge(specs[override.Name], override)
		if err := merged.Validate(); err != nil {
			return nil, err
		}
		specs[override.Name] = merged
	}
	return specs, nil
}

// Names returns spec names in sorted order
func Names(specs map[string]EndpointSpec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func merge(base, o EndpointSpec) EndpointSpec {
	out := base
	out.Name = o.Name
	setString(&out.Model, o.Model)
	setString(&out.ModelDir, o.ModelDir)
	setString(&out.GPUType, o.GPUType)
	setString(&out.KVCacheDType, o.KVCacheDType)
	setString(&out.ToolCallParser, o.ToolCallParser)
	setString(&out.Image, o.Image)
	setInt(&out.GPUCount, o.GPUCount)
	setInt(&out.MaxModelLen, o.MaxModelLen)
	setInt(&out.ImagesPerPrompt, o.ImagesPerPrompt)
	setInt(&out.MaxConcurrentInputs, o.MaxConcurrentInputs)
	setInt(&out.MaxContainers, o.MaxContainers)
	setInt(&out.Port, o.Port)
	if o.GPUMemoryUtilization != 0 {
		out.GPUMemoryUtilization = o.GPUMemoryUtilization
	}
	if o.ScaledownWindow != 0 {
		out.ScaledownWindow = o.ScaledownWindow
	}
	if o.StartupTimeout != 0 {
		out.StartupTimeout = o.StartupTimeout
	}

	// New endpoints start from zero values; give them the shared defaults
	if out.Port == 0 {
		out.Port = defaultPort
	}
	if out.ScaledownWindow == 0 {
		out.ScaledownWindow = defaultScaledown
	}
	if out.StartupTimeout == 0 {
		out.StartupTimeout = defaultStartupTimeout
	}
	if out.Image == "" {
		out.Image = defaultImage
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
