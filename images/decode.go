package images

import (
	"bytes"
	"image"

	// Registers the WebP decoder with the image package.
	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Decode parses encoded image bytes into an 8-bit RGB raster.
//
// The alpha channel is discarded: every pixel of the returned image is fully opaque and keeps its
// straight (non-premultiplied) color samples. EXIF orientation is not applied.
//
// Arguments:
//   - data: The encoded image bytes (JPEG, PNG, WebP, GIF, BMP or TIFF).
//
// Returns:
//   - *image.NRGBA: The decoded raster with bounds starting at (0, 0).
//   - ImageFormat: The detected encoding.
//   - error: An error if the bytes are not a supported image encoding.
func Decode(data []byte) (*image.NRGBA, ImageFormat, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image data")
	}

	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read image header")
	}
	format, err := ParseFormat(name)
	if err != nil {
		return nil, "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to decode %s image", format)
	}

	rgb := imaging.Clone(img)
	if rgb.Rect.Empty() {
		return nil, "", errors.Errorf("decoded %s image has no pixels", format)
	}
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}

	return rgb, format, nil
}
