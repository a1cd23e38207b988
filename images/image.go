// Package images - Decoding and resampling of encoded input images.
package images

import (
	"strings"

	"github.com/pkg/errors"
)

// ImageFormat is the encoding of an input image as reported by the decoder registry.
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatGIF is the GIF image format.
	FormatGIF ImageFormat = "gif"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatTIFF is the TIFF image format.
	FormatTIFF ImageFormat = "tiff"
)

// ParseFormat maps a decoder format name to an ImageFormat.
//
// Arguments:
//   - name: The format name, e.g. "jpeg" or "PNG".
//
// Returns:
//   - ImageFormat: The matching format.
//   - error: An error if the format is not supported.
func ParseFormat(name string) (ImageFormat, error) {
	switch f := ImageFormat(strings.ToLower(name)); f {
	case FormatJPEG, FormatWebP, FormatPNG, FormatGIF, FormatBMP, FormatTIFF:
		return f, nil
	case "jpg":
		return FormatJPEG, nil
	default:
		return "", errors.Errorf("unsupported image format: %q", name)
	}
}
