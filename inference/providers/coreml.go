// Package providers - Apple CoreML execution provider.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML provider flags, see coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly                 uint32 = 0x001
	coreMLFlagEnableOnSubgraph           uint32 = 0x002
	coreMLFlagOnlyEnableDeviceWithANE    uint32 = 0x004
	coreMLFlagOnlyAllowStaticInputShapes uint32 = 0x008
	coreMLFlagCreateMLProgram            uint32 = 0x010
	coreMLFlagUseCPUAndGPU               uint32 = 0x020
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// MLProgram creates an MLProgram format model (Core ML 5+). NeuralNetwork otherwise.
	// Default: NeuralNetwork
	ModelFormat string `json:"modelFormat"              yaml:"modelFormat"`
	// CPUOnly, CPUAndNeuralEngine, CPUAndGPU or ALL.
	// Default: ALL
	MLComputeUnits string `json:"mlComputeUnits"           yaml:"mlComputeUnits"`
	// Only allow the CoreML EP to take nodes with inputs that have static shapes.
	RequireStaticInputShapes bool `json:"requireStaticInputShapes" yaml:"requireStaticInputShapes"`
	// Enable CoreML EP to run on a subgraph in the body of a control flow operator.
	EnableOnSubgraphs bool `json:"enableOnSubgraphs"        yaml:"enableOnSubgraphs"`
}

// Flags converts the options to the CoreML provider flag set.
//
// Returns:
//   - uint32: The flags.
//   - error: An error if a named option value is unknown.
func (o CoreMLOptions) Flags() (uint32, error) {
	var flags uint32

	switch o.ModelFormat {
	case "", "NeuralNetwork":
	case "MLProgram":
		flags |= coreMLFlagCreateMLProgram
	default:
		return 0, errors.Errorf("unknown CoreML model format: %q", o.ModelFormat)
	}

	switch o.MLComputeUnits {
	case "", "ALL":
	case "CPUOnly":
		flags |= coreMLFlagUseCPUOnly
	case "CPUAndNeuralEngine":
		flags |= coreMLFlagOnlyEnableDeviceWithANE
	case "CPUAndGPU":
		flags |= coreMLFlagUseCPUAndGPU
	default:
		return 0, errors.Errorf("unknown CoreML compute units: %q", o.MLComputeUnits)
	}

	if o.RequireStaticInputShapes {
		flags |= coreMLFlagOnlyAllowStaticInputShapes
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLFlagEnableOnSubgraph
	}

	return flags, nil
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CoreMLOptions) isProviderOptions() {}

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// NewCoreMLProvider creates a new CoreML provider.
func NewCoreMLProvider(args CoreMLOptions) *CoreMLProvider {
	return &CoreMLProvider{options: args}
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Options returns the options of the CoreML provider.
func (p *CoreMLProvider) Options() ProviderOptions {
	return p.options
}

// Apply appends the CoreML provider to the session options.
func (p *CoreMLProvider) Apply(options *ort.SessionOptions) error {
	flags, err := p.options.Flags()
	if err != nil {
		return err
	}
	if err := options.AppendExecutionProviderCoreML(flags); err != nil {
		return errors.Wrap(err, "error enabling CoreML")
	}
	return nil
}
