// Package preprocess - Resizing and normalization of images into model input tensors.
package preprocess

import (
	"image"

	"github.com/nvr-ai/go-faceml/images"
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Channels is the number of color channels of every input tensor (R, G, B).
const Channels = 3

// NormalizationType defines how pixel values are normalized.
type NormalizationType int

const (
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne NormalizationType = iota
	// NormalizeStandardize scales pixel values to [0, 1], then subtracts the channel mean and
	// divides by the channel standard deviation.
	NormalizeStandardize
)

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for error messages.
	Name string
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
	// NormalizationType defines how to normalize pixel values.
	NormalizationType NormalizationType
	// MeanValues per channel (R, G, B) in the [0, 1] range, for NormalizeStandardize.
	MeanValues [Channels]float64
	// StdValues per channel (R, G, B) in the [0, 1] range, for NormalizeStandardize.
	StdValues [Channels]float64
}

// Shape returns the NCHW shape of the tensor built for this configuration.
func (c ModelConfig) Shape() tensor.Shape {
	return tensor.Shape{1, Channels, c.InputHeight, c.InputWidth}
}

// Validate checks the configuration.
//
// Returns:
//   - error: An error if the dimensions or normalization constants are unusable.
func (c ModelConfig) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return errors.Errorf("%s: invalid input dimensions: %dx%d", c.Name, c.InputWidth, c.InputHeight)
	}
	switch c.NormalizationType {
	case NormalizeZeroToOne:
	case NormalizeStandardize:
		for i, std := range c.StdValues {
			if std == 0 {
				return errors.Errorf("%s: standard deviation of channel %d is zero", c.Name, i)
			}
		}
	default:
		return errors.Errorf("%s: unknown normalization type %d", c.Name, c.NormalizationType)
	}
	return nil
}

// Preprocessor turns decoded images into NCHW float32 tensors for one model.
type Preprocessor struct {
	config    ModelConfig
	resampler images.Resampler
	// lut holds the normalized value of every 8-bit sample, per channel.
	lut [Channels][256]float32
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The model-specific preprocessing configuration.
//   - resampler: The resampler used to reach the model input size.
//
// Returns:
//   - *Preprocessor: A configured Preprocessor instance.
//   - error: An error if the configuration is invalid.
//
// @example
//
//	pre, err := NewPreprocessor(ModelConfig{
//	    Name:              "embedder",
//	    InputWidth:        140,
//	    InputHeight:       140,
//	    NormalizationType: NormalizeZeroToOne,
//	}, images.ImagingResampler{})
func NewPreprocessor(config ModelConfig, resampler images.Resampler) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if resampler == nil {
		return nil, errors.Errorf("%s: resampler is nil", config.Name)
	}

	p := &Preprocessor{config: config, resampler: resampler}
	for c := 0; c < Channels; c++ {
		for v := 0; v < 256; v++ {
			p.lut[c][v] = config.Normalize(c, uint8(v))
		}
	}

	return p, nil
}

// Normalize returns the normalized value of one 8-bit sample of channel c.
//
// Arguments:
//   - channel: The channel index (0 = R, 1 = G, 2 = B).
//   - v: The raw sample.
//
// Returns:
//   - float32: The normalized value.
func (c ModelConfig) Normalize(channel int, v uint8) float32 {
	x := float64(v) / 255.0
	if c.NormalizationType == NormalizeStandardize {
		x = (x - c.MeanValues[channel]) / c.StdValues[channel]
	}
	return float32(x)
}

// Config returns the preprocessing configuration.
func (p *Preprocessor) Config() ModelConfig {
	return p.config
}

// Preprocess resizes the image to the model input size and builds the normalized NCHW tensor.
//
// Arguments:
//   - img: The decoded input image.
//
// Returns:
//   - inference.Tensor: The (1, 3, height, width) input tensor.
//   - error: An error if the image cannot be resized.
func (p *Preprocessor) Preprocess(img image.Image) (inference.Tensor, error) {
	resized, err := p.resampler.Resize(img, p.config.InputWidth, p.config.InputHeight)
	if err != nil {
		return inference.Tensor{}, errors.Wrapf(err, "%s: resize failed", p.config.Name)
	}

	return p.ToTensor(resized)
}

// ToTensor converts an image that already has the model input size into the NCHW tensor.
//
// Arguments:
//   - img: The resized image. Its bounds must be exactly InputWidth x InputHeight.
//
// Returns:
//   - inference.Tensor: The (1, 3, height, width) input tensor.
//   - error: An error if the image has the wrong size.
func (p *Preprocessor) ToTensor(img *image.NRGBA) (inference.Tensor, error) {
	width, height := p.config.InputWidth, p.config.InputHeight
	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		return inference.Tensor{}, errors.Errorf(
			"%s: image is %dx%d, want %dx%d", p.config.Name, bounds.Dx(), bounds.Dy(), width, height,
		)
	}

	plane := width * height
	data := make([]float32, Channels*plane)
	for y := 0; y < height; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			i := y*width + x
			data[i] = p.lut[0][px[0]]
			data[plane+i] = p.lut[1][px[1]]
			data[2*plane+i] = p.lut[2][px[2]]
		}
	}

	return inference.NewTensor(p.config.Shape(), data)
}
