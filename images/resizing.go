package images

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ResamplerName selects the library used to resample images.
type ResamplerName string

const (
	// ResamplerImaging resamples with github.com/disintegration/imaging.
	ResamplerImaging ResamplerName = "imaging"
	// ResamplerNFNT resamples with github.com/nfnt/resize.
	ResamplerNFNT ResamplerName = "nfnt"
)

// Resampler scales an image to exact dimensions with a triangle (bilinear) filter.
//
// Aspect ratio is never preserved: the output is always exactly width x height.
type Resampler interface {
	Name() ResamplerName
	Resize(img image.Image, width, height int) (*image.NRGBA, error)
}

// NewResampler returns the resampler registered under the given name.
//
// Arguments:
//   - name: The resampler name. Empty selects ResamplerImaging.
//
// Returns:
//   - Resampler: The resampler.
//   - error: An error if the name is unknown.
func NewResampler(name ResamplerName) (Resampler, error) {
	switch name {
	case ResamplerImaging, "":
		return ImagingResampler{}, nil
	case ResamplerNFNT:
		return NFNTResampler{}, nil
	default:
		return nil, errors.Errorf("unknown resampler: %q", name)
	}
}

// ImagingResampler resizes with imaging's Linear (triangle) filter.
type ImagingResampler struct{}

// Name implements Resampler.
func (ImagingResampler) Name() ResamplerName {
	return ResamplerImaging
}

// Resize implements Resampler.
func (ImagingResampler) Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	if err := checkDimensions(img, width, height); err != nil {
		return nil, err
	}

	return imaging.Resize(img, width, height, imaging.Linear), nil
}

// NFNTResampler resizes with nfnt's Bilinear (triangle) filter.
type NFNTResampler struct{}

// Name implements Resampler.
func (NFNTResampler) Name() ResamplerName {
	return ResamplerNFNT
}

// Resize implements Resampler.
func (NFNTResampler) Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	if err := checkDimensions(img, width, height); err != nil {
		return nil, err
	}

	resized := resize.Resize(uint(width), uint(height), img, resize.Bilinear)

	return imaging.Clone(resized), nil
}

func checkDimensions(img image.Image, width, height int) error {
	if img == nil {
		return errors.New("image is nil")
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	if img.Bounds().Empty() {
		return errors.New("image has no pixels")
	}
	return nil
}
