// Package inference - Backend neutral tensors and graphs.
package inference

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Tensor is a dense float32 array with a row-major shape.
//
// Inputs built by the preprocessing layer are always NCHW: (1, channels, height, width).
// Outputs returned by a Graph carry whatever shape the network produced.
type Tensor struct {
	// Shape is the dimensions of the tensor, outermost first.
	Shape tensor.Shape `json:"shape" yaml:"shape"`
	// Data holds Shape.TotalSize() values in row-major order.
	Data []float32 `json:"data" yaml:"data"`
}

// NewTensor creates a new tensor, checking that the data fills the shape exactly.
//
// Arguments:
//   - shape: The dimensions of the tensor.
//   - data: The row-major values of the tensor.
//
// Returns:
//   - Tensor: The tensor.
//   - error: An error if the data length does not match the shape.
func NewTensor(shape tensor.Shape, data []float32) (Tensor, error) {
	if len(shape) == 0 {
		return Tensor{}, errors.New("tensor shape has no dimensions")
	}
	for i, d := range shape {
		if d < 0 {
			return Tensor{}, errors.Errorf("tensor dimension %d is negative: %v", i, shape)
		}
	}
	if size := shape.TotalSize(); size != len(data) {
		return Tensor{}, errors.Errorf(
			"tensor shape %v holds %d values, got %d", shape, size, len(data),
		)
	}

	return Tensor{Shape: shape.Clone(), Data: data}, nil
}

// Len returns the number of values in the tensor.
func (t Tensor) Len() int {
	return len(t.Data)
}

// At returns the value at the given multi-dimensional index.
//
// Arguments:
//   - coords: One index per dimension.
//
// Returns:
//   - float32: The value.
//   - error: An error if the index does not address a value in the tensor.
func (t Tensor) At(coords ...int) (float32, error) {
	if len(coords) != len(t.Shape) {
		return 0, errors.Errorf("index %v has %d dimensions, tensor has %d", coords, len(coords), len(t.Shape))
	}

	offset := 0
	for i, c := range coords {
		if c < 0 || c >= t.Shape[i] {
			return 0, errors.Errorf("index %v out of range for shape %v", coords, t.Shape)
		}
		offset = offset*t.Shape[i] + c
	}

	return t.Data[offset], nil
}

// String implements fmt.Stringer.
func (t Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.Shape)
}
