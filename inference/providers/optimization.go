// Package providers - ONNX Runtime graph optimization settings.
package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// GraphOptimizationLevel names an ONNX Runtime graph optimization level.
type GraphOptimizationLevel string

const (
	// GraphOptimizationDisableAll disables every graph rewrite.
	GraphOptimizationDisableAll GraphOptimizationLevel = "disable_all"
	// GraphOptimizationBasic applies semantics-preserving rewrites such as constant folding.
	GraphOptimizationBasic GraphOptimizationLevel = "basic"
	// GraphOptimizationExtended adds node fusions.
	GraphOptimizationExtended GraphOptimizationLevel = "extended"
	// GraphOptimizationAll adds layout optimizations.
	GraphOptimizationAll GraphOptimizationLevel = "all"
)

// ORT returns the native optimization level.
//
// Returns:
//   - ort.GraphOptimizationLevel: The native level.
//   - error: An error if the level is unknown.
func (l GraphOptimizationLevel) ORT() (ort.GraphOptimizationLevel, error) {
	switch l {
	case GraphOptimizationDisableAll:
		return ort.GraphOptimizationLevelDisableAll, nil
	case GraphOptimizationBasic:
		return ort.GraphOptimizationLevelEnableBasic, nil
	case GraphOptimizationExtended:
		return ort.GraphOptimizationLevelEnableExtended, nil
	case GraphOptimizationAll, "":
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown graph optimization level: %q", l)
	}
}

// OptimizationConfig contains ONNX Runtime session optimization settings.
type OptimizationConfig struct {
	// GraphOptimizationLevel controls the level of graph optimization.
	GraphOptimizationLevel GraphOptimizationLevel `json:"graphOptimizationLevel" yaml:"graphOptimizationLevel"`
	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets ONNX Runtime decide.
	IntraOpNumThreads int `json:"intraOpNumThreads"      yaml:"intraOpNumThreads"`
	// InterOpNumThreads sets threads for parallelizing independent ops. Zero lets ONNX Runtime decide.
	InterOpNumThreads int `json:"interOpNumThreads"      yaml:"interOpNumThreads"`
}

// DefaultOptimizationConfig returns a production-ready optimization configuration.
//
// Both face models are small and run one image at a time, so inter-op parallelism is off.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimizationLevel: GraphOptimizationAll,
		IntraOpNumThreads:      max(1, runtime.NumCPU()/2),
		InterOpNumThreads:      1,
	}
}

// Validate checks the configuration.
func (c OptimizationConfig) Validate() error {
	if _, err := c.GraphOptimizationLevel.ORT(); err != nil {
		return err
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return errors.Errorf(
			"thread counts must not be negative: intra=%d inter=%d", c.IntraOpNumThreads, c.InterOpNumThreads,
		)
	}
	return nil
}

// OptimizedSessionOptions creates session options from the configuration and provider.
//
// Arguments:
//   - config: The optimization settings.
//   - provider: The execution provider appended to the options.
//
// Returns:
//   - *ort.SessionOptions: The options. The caller must Destroy them.
//   - error: An error if an option cannot be applied.
//
// @example
// options, err := OptimizedSessionOptions(DefaultOptimizationConfig(), NewCPUProvider(CPUOptions{}))
//
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// defer options.Destroy()
func OptimizedSessionOptions(config OptimizationConfig, provider ExecutionProvider) (*ort.SessionOptions, error) {
	level, err := config.GraphOptimizationLevel.ORT()
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}

	apply := func() error {
		if err := options.SetGraphOptimizationLevel(level); err != nil {
			return errors.Wrap(err, "error setting graph optimization level")
		}
		if config.IntraOpNumThreads > 0 {
			if err := options.SetIntraOpNumThreads(config.IntraOpNumThreads); err != nil {
				return errors.Wrap(err, "error setting intra-op threads")
			}
		}
		if config.InterOpNumThreads > 0 {
			if err := options.SetInterOpNumThreads(config.InterOpNumThreads); err != nil {
				return errors.Wrap(err, "error setting inter-op threads")
			}
		}
		if provider != nil {
			if err := provider.Apply(options); err != nil {
				return errors.Wrapf(err, "failed to configure %s provider", provider.Backend())
			}
		}
		return nil
	}
	if err := apply(); err != nil {
		options.Destroy()
		return nil, err
	}

	return options, nil
}
