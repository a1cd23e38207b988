// Package common - Types shared by the detection and embedding pipelines.
package common

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// BoxValues is the number of floats that make up one box in a detector output.
const BoxValues = 4

// BoundingBox is a face box in the detector's relative output coordinates.
//
// Values are raw network output. They may fall outside [0, 1] and are not guaranteed to be
// ordered (Left < Right, Top < Bottom).
type BoundingBox struct {
	Left   float32 `json:"left"   yaml:"left"`
	Top    float32 `json:"top"    yaml:"top"`
	Right  float32 `json:"right"  yaml:"right"`
	Bottom float32 `json:"bottom" yaml:"bottom"`
}

// NewBoundingBox creates a box from one contiguous run of four output floats.
//
// Arguments:
//   - values: The {left, top, right, bottom} run.
//
// Returns:
//   - BoundingBox: The box, in the order the values were given.
//   - error: An error if values does not hold exactly four floats.
func NewBoundingBox(values []float32) (BoundingBox, error) {
	if len(values) != BoxValues {
		return BoundingBox{}, errors.Errorf("bounding box needs %d values, got %d", BoxValues, len(values))
	}

	return BoundingBox{
		Left:   values[0],
		Top:    values[1],
		Right:  values[2],
		Bottom: values[3],
	}, nil
}

// Values returns the box as {left, top, right, bottom}.
func (b BoundingBox) Values() [BoxValues]float32 {
	return [BoxValues]float32{b.Left, b.Top, b.Right, b.Bottom}
}

// Scale maps relative coordinates onto an image of the given pixel size.
//
// Arguments:
//   - width: The width of the original image in pixels.
//   - height: The height of the original image in pixels.
//
// Returns:
//   - BoundingBox: The box in pixel coordinates. Order is preserved.
//
// @example
// box := BoundingBox{Left: 0.1, Top: 0.2, Right: 0.5, Bottom: 0.6}
// px := box.Scale(640, 480) // {64, 96, 320, 288}
func (b BoundingBox) Scale(width, height int) BoundingBox {
	w, h := float32(width), float32(height)
	return BoundingBox{
		Left:   b.Left * w,
		Top:    b.Top * h,
		Right:  b.Right * w,
		Bottom: b.Bottom * h,
	}
}

// ToRect converts the bounding box to an image.Rectangle.
//
// This method truncates floating-point coordinates to integers, so it is only meaningful after
// Scale. The rectangle is canonicalized, so an unordered box still yields a well-formed rectangle.
//
// Returns:
//   - An image.Rectangle with canonicalized coordinates.
func (b BoundingBox) ToRect() image.Rectangle {
	return image.Rect(int(b.Left), int(b.Top), int(b.Right), int(b.Bottom)).Canon()
}

// String formats the bounding box for display.
func (b BoundingBox) String() string {
	return fmt.Sprintf("(%f, %f), (%f, %f)", b.Left, b.Top, b.Right, b.Bottom)
}
