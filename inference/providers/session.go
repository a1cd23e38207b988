// Package providers - Inference sessions.
package providers

import (
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Session is an ONNX Runtime session wrapped as an inference.Graph.
//
// Input and output tensors are allocated per run, so one Session serves concurrent runs.
type Session struct {
	name        string
	session     *ort.DynamicAdvancedSession
	inputName   string
	outputNames []string
}

var _ inference.Graph = (*Session)(nil)

// Run executes the session on one float32 input.
//
// Arguments:
//   - input: The input tensor.
//
// Returns:
//   - []inference.Tensor: The outputs in model order, copied out of native memory.
//   - error: An error if the run fails or an output is not float32.
func (s *Session) Run(input inference.Tensor) ([]inference.Tensor, error) {
	dims := make([]int64, len(input.Shape))
	for i, d := range input.Shape {
		dims[i] = int64(d)
	}

	in, err := ort.NewTensor(ort.NewShape(dims...), input.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: error creating input tensor %q", s.name, s.inputName)
	}
	defer in.Destroy()

	// Nil outputs are allocated by ONNX Runtime with the shapes the graph produces.
	outputs := make([]ort.Value, len(s.outputNames))
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, errors.Wrapf(err, "%s: error running session on input %q", s.name, s.inputName)
	}

	results := make([]inference.Tensor, len(outputs))
	for i, out := range outputs {
		t, ok := out.(*ort.Tensor[float32])
		if !ok {
			return nil, errors.Errorf("%s: output %q is %T, want float32 tensor", s.name, s.outputNames[i], out)
		}

		nativeShape := t.GetShape()
		shape := make(tensor.Shape, len(nativeShape))
		for j, d := range nativeShape {
			shape[j] = int(d)
		}

		results[i], err = inference.NewTensor(shape, append([]float32(nil), t.GetData()...))
		if err != nil {
			return nil, errors.Wrapf(err, "%s: output %q", s.name, s.outputNames[i])
		}
	}

	return results, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return errors.Wrapf(err, "%s: error destroying ORT session", s.name)
	}
	return nil
}

// Loader compiles ONNX model definitions into ONNX Runtime sessions.
type Loader struct {
	provider     ExecutionProvider
	optimization OptimizationConfig
}

var _ inference.Loader = (*Loader)(nil)

// NewLoader initializes the ONNX Runtime environment and creates a loader.
//
// Order of operations:
//  1. Library path check: Ensures native runtime is accessible.
//  2. Environment setup: Required once per process to prepare ONNX Runtime internals.
//  3. Provider selection: Resolves the configured execution provider.
//
// Arguments:
//   - config: The backend configuration.
//
// Returns:
//   - *Loader: The loader.
//   - error: ErrModelLoad if the configuration is invalid or the runtime cannot be loaded.
func NewLoader(config Config) (*Loader, error) {
	if err := config.Validate(); err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "invalid onnxruntime config")
	}
	provider, err := NewProvider(config)
	if err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "onnxruntime provider")
	}
	if err := InitializeEnvironment(GetSharedLibPath(config.SharedLibraryPath)); err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "onnxruntime environment")
	}

	return &Loader{provider: provider, optimization: config.Optimization}, nil
}

// Load decodes the model, applies graph optimization and creates a session bound to the model's
// single input and all of its outputs.
//
// Arguments:
//   - name: The model name, used in error messages.
//   - definition: The ONNX model bytes.
//
// Returns:
//   - inference.Graph: The session.
//   - error: ErrModelLoad if the model is malformed or uses unsupported operators.
func (l *Loader) Load(name string, definition []byte) (inference.Graph, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(definition)
	if err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "%s: reading model inputs and outputs", name)
	}
	if len(inputs) != 1 {
		return nil, inference.NewError(inference.ErrModelLoad, nil, "%s: model has %d inputs, want 1", name, len(inputs))
	}
	if len(outputs) == 0 {
		return nil, inference.NewError(inference.ErrModelLoad, nil, "%s: model has no outputs", name)
	}

	outputNames := make([]string, len(outputs))
	for i, info := range outputs {
		outputNames[i] = info.Name
	}

	options, err := OptimizedSessionOptions(l.optimization, l.provider)
	if err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "%s: session options", name)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		definition,               // Model bytes
		[]string{inputs[0].Name}, // Input node names expected by model
		outputNames,              // Output node names in model order
		options,                  // Session options configured above
	)
	if err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "%s: creating ORT session", name)
	}

	return &Session{
		name:        name,
		session:     session,
		inputName:   inputs[0].Name,
		outputNames: outputNames,
	}, nil
}

// Provider returns the execution provider sessions are created with.
func (l *Loader) Provider() ExecutionProvider {
	return l.provider
}
