// Package model - Contract shared by the face models.
package model

import (
	"image"

	"github.com/nvr-ai/go-faceml/images"
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models/model/preprocess"
)

// Name is the unique identifier of a model graph in the registry.
type Name string

const (
	// ModelNameDetector is the name of the face detector graph.
	ModelNameDetector Name = "detector"
	// ModelNameEmbedder is the name of the face embedding graph.
	ModelNameEmbedder Name = "embedder"
)

// Names lists every graph the registry loads, in load order.
var Names = []Name{ModelNameDetector, ModelNameEmbedder}

// Model turns images into input tensors and graph outputs into results of type R.
//
// A Model holds no per-request state and is safe for concurrent use.
type Model[R any] interface {
	// Name returns the registry name of the graph the model runs on.
	Name() Name
	// Config returns the preprocessing configuration of the model.
	Config() preprocess.ModelConfig
	// PreProcess resizes and normalizes a decoded image into the model's input tensor.
	PreProcess(img image.Image) (inference.Tensor, error)
	// PostProcess decodes the graph outputs into a result.
	PostProcess(outputs []inference.Tensor) (R, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	// Resampler selects the library that resizes images to the model input size.
	Resampler images.ResamplerName `json:"resampler" yaml:"resampler"`
}

// NewPreprocessor builds the preprocessor for a model configuration from the arguments.
//
// Arguments:
//   - args: The model arguments.
//   - config: The preprocessing configuration of the model.
//
// Returns:
//   - *preprocess.Preprocessor: The preprocessor.
//   - error: An error if the resampler is unknown or the configuration is invalid.
func NewPreprocessor(args NewModelArgs, config preprocess.ModelConfig) (*preprocess.Preprocessor, error) {
	resampler, err := images.NewResampler(args.Resampler)
	if err != nil {
		return nil, err
	}
	return preprocess.NewPreprocessor(config, resampler)
}
