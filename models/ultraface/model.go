// Package ultraface - Ultra-Light-Fast face detector (version-RFB-320).
package ultraface

import (
	"image"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models/model"
	"github.com/nvr-ai/go-faceml/models/model/preprocess"
	"github.com/nvr-ai/go-faceml/models/postprocess"
)

const (
	// InputWidth is the width the detector was trained on.
	InputWidth = 320
	// InputHeight is the height the detector was trained on.
	InputHeight = 240
)

var (
	// Mean is the per-channel (R, G, B) mean subtracted from [0, 1] samples.
	Mean = [preprocess.Channels]float64{0.485, 0.456, 0.406}
	// Std is the per-channel (R, G, B) standard deviation dividing [0, 1] samples.
	Std = [preprocess.Channels]float64{0.229, 0.224, 0.225}
)

// Config returns the preprocessing configuration of the detector.
func Config() preprocess.ModelConfig {
	return preprocess.ModelConfig{
		Name:              string(model.ModelNameDetector),
		InputWidth:        InputWidth,
		InputHeight:       InputHeight,
		NormalizationType: preprocess.NormalizeStandardize,
		MeanValues:        Mean,
		StdValues:         Std,
	}
}

// UltraFace is the instance of the face detector model.
type UltraFace struct {
	pre *preprocess.Preprocessor
}

var _ model.Model[postprocess.Result] = (*UltraFace)(nil)

// NewModel creates a new model.
//
// Arguments:
//   - args: The arguments for creating a new model.
//
// Returns:
//   - *UltraFace: The model.
//   - error: An error if the preprocessor cannot be built.
func NewModel(args model.NewModelArgs) (*UltraFace, error) {
	pre, err := model.NewPreprocessor(args, Config())
	if err != nil {
		return nil, err
	}
	return &UltraFace{pre: pre}, nil
}

// Name implements model.Model.
func (m *UltraFace) Name() model.Name {
	return model.ModelNameDetector
}

// Config implements model.Model.
func (m *UltraFace) Config() preprocess.ModelConfig {
	return m.pre.Config()
}

// PreProcess resizes the image to 320x240 and standardizes it into a (1, 3, 240, 320) tensor.
func (m *UltraFace) PreProcess(img image.Image) (inference.Tensor, error) {
	return m.pre.Preprocess(img)
}
