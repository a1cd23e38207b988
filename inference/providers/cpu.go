// Package providers - CPU based execution provider.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CPUProviderBackend runs inference on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
)

// CPUOptions contains arguments for the CPU provider.
type CPUOptions struct {
	// Use the CPU memory arena allocator.
	EnableCPUMemArena bool `json:"enableCPUMemArena" yaml:"enableCPUMemArena"`
	// Pre-plan memory allocations from the first run's shapes.
	EnableMemoryPattern bool `json:"enableMemoryPattern" yaml:"enableMemoryPattern"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CPUOptions) isProviderOptions() {}

// CPUProvider implements the ExecutionProvider interface.
type CPUProvider struct {
	options CPUOptions
}

// NewCPUProvider creates a new CPU provider.
func NewCPUProvider(args CPUOptions) *CPUProvider {
	return &CPUProvider{options: args}
}

// Backend returns the backend of the CPU provider.
func (p *CPUProvider) Backend() ProviderBackend {
	return CPUProviderBackend
}

// Options returns the options of the CPU provider.
func (p *CPUProvider) Options() ProviderOptions {
	return p.options
}

// Apply configures the CPU allocator settings. The CPU provider itself is always present.
func (p *CPUProvider) Apply(options *ort.SessionOptions) error {
	if err := options.SetCpuMemArena(p.options.EnableCPUMemArena); err != nil {
		return errors.Wrap(err, "error setting CPU memory arena")
	}
	if err := options.SetMemPattern(p.options.EnableMemoryPattern); err != nil {
		return errors.Wrap(err, "error setting memory pattern")
	}
	return nil
}
