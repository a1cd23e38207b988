// Package providers - Configuration of the ONNX Runtime backend.
package providers

import "github.com/pkg/errors"

// Config represents the configuration of the ONNX Runtime backend.
type Config struct {
	// Backend specifies the execution provider to use.
	Backend ProviderBackend `json:"backend"           yaml:"backend"`
	// SharedLibraryPath is the path of the onnxruntime shared library. Empty selects the platform
	// default.
	SharedLibraryPath string `json:"sharedLibraryPath" yaml:"sharedLibraryPath"`
	// Optimization holds the graph optimization and threading settings.
	Optimization OptimizationConfig `json:"optimization"      yaml:"optimization"`
	// CPU holds the CPU provider options.
	CPU CPUOptions `json:"cpu"               yaml:"cpu"`
	// CUDA holds the CUDA provider options.
	CUDA CUDAOptions `json:"cuda"              yaml:"cuda"`
	// CoreML holds the CoreML provider options.
	CoreML CoreMLOptions `json:"coreml"            yaml:"coreml"`
	// OpenVINO holds the OpenVINO provider options.
	OpenVINO OpenVINOOptions `json:"openvino"          yaml:"openvino"`
}

// DefaultConfig returns a production-ready configuration with sensible defaults.
//
// Returns:
//   - Config: The CPU provider with full graph optimization.
func DefaultConfig() Config {
	return Config{
		Backend:      CPUProviderBackend,
		Optimization: DefaultOptimizationConfig(),
		CPU: CPUOptions{
			EnableCPUMemArena:   true,
			EnableMemoryPattern: true,
		},
	}
}

// Validate checks the configuration.
//
// Returns:
//   - error: An error if the backend or an option of the selected backend is invalid.
func (c Config) Validate() error {
	if _, err := NewProvider(c); err != nil {
		return err
	}
	if err := c.Optimization.Validate(); err != nil {
		return errors.Wrap(err, "optimization")
	}
	if c.Backend == CoreMLProviderBackend {
		if _, err := c.CoreML.Flags(); err != nil {
			return err
		}
	}
	return nil
}
