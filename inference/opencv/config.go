// Package opencv - Inference graphs backed by the OpenCV DNN module.
package opencv

import (
	"time"

	"github.com/pkg/errors"
)

// Config configures the OpenCV DNN backend.
type Config struct {
	// PoolSize is the number of networks loaded per model.
	PoolSize int `json:"poolSize"       yaml:"poolSize"`
	// AcquireTimeout bounds how long a run waits for a free network.
	AcquireTimeout time.Duration `json:"acquireTimeout" yaml:"acquireTimeout"`
	// Backend is one of "", "opencv", "cuda", "openvino", "vulkan" or "halide".
	Backend string `json:"backend"        yaml:"backend"`
	// Target is one of "", "cpu", "fp32", "fp16", "vpu", "vulkan", "fpga", "cuda" or "cuda_fp16".
	Target string `json:"target"         yaml:"target"`
	// Outputs names the output layers per model, in the order the model emits them.
	// A model without an entry uses the network's unconnected output layers.
	Outputs map[string][]string `json:"outputs"        yaml:"outputs"`
}

var (
	backends = map[string]bool{"": true, "opencv": true, "cuda": true, "openvino": true, "vulkan": true, "halide": true}
	targets  = map[string]bool{
		"": true, "cpu": true, "fp32": true, "fp16": true, "vpu": true,
		"vulkan": true, "fpga": true, "cuda": true, "cuda_fp16": true,
	}
)

// DefaultConfig returns a CPU configuration with two networks per model.
//
// The detector's outputs are pinned to scores then boxes, since OpenCV does not report unconnected
// layers in model order.
func DefaultConfig() Config {
	return Config{
		PoolSize:       2,
		AcquireTimeout: 5 * time.Second,
		Backend:        "opencv",
		Target:         "cpu",
		Outputs: map[string][]string{
			"detector": {"scores", "boxes"},
		},
	}
}

// Validate checks the configuration.
//
// Returns:
//   - error: An error describing the first invalid field.
func (c Config) Validate() error {
	if c.PoolSize < 0 {
		return errors.Errorf("opencv: pool size must not be negative, got %d", c.PoolSize)
	}
	if c.AcquireTimeout < 0 {
		return errors.Errorf("opencv: acquire timeout must not be negative, got %s", c.AcquireTimeout)
	}
	if !backends[c.Backend] {
		return errors.Errorf("opencv: unknown dnn backend %q", c.Backend)
	}
	if !targets[c.Target] {
		return errors.Errorf("opencv: unknown dnn target %q", c.Target)
	}
	for model, names := range c.Outputs {
		if len(names) == 0 {
			return errors.Errorf("opencv: empty output list for model %q", model)
		}
	}
	return nil
}
