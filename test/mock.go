// Package test - Deterministic fakes and fixtures for pipeline tests.
package test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// MockGraph is an inference.Graph that returns canned outputs and records every input.
//
// @example
// g := NewMockGraph(DetectorOutputs([]float32{0.2, 0.9}, boxes))
// out, err := g.Run(input)
type MockGraph struct {
	mu      sync.Mutex
	outputs []inference.Tensor
	fn      func(input inference.Tensor) ([]inference.Tensor, error)
	err     error
	inputs  []inference.Tensor
	closed  bool
	// ID tells graphs from different loads apart.
	ID int
}

// NewMockGraph creates a graph that returns the given outputs on every run.
//
// Arguments:
// - outputs: The tensors returned by Run.
//
// Returns:
// - A configured MockGraph.
func NewMockGraph(outputs ...inference.Tensor) *MockGraph {
	return &MockGraph{outputs: outputs}
}

// NewMockGraphFunc creates a graph that computes its outputs with fn.
func NewMockGraphFunc(fn func(input inference.Tensor) ([]inference.Tensor, error)) *MockGraph {
	return &MockGraph{fn: fn}
}

// NewFailingGraph creates a graph whose runs fail with err.
func NewFailingGraph(err error) *MockGraph {
	return &MockGraph{err: err}
}

// Run implements inference.Graph.
func (g *MockGraph) Run(input inference.Tensor) ([]inference.Tensor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, errors.New("graph is closed")
	}
	g.inputs = append(g.inputs, input)
	if g.err != nil {
		return nil, g.err
	}
	if g.fn != nil {
		return g.fn(input)
	}

	return g.outputs, nil
}

// Close implements inference.Graph.
func (g *MockGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// Inputs returns every tensor passed to Run, in call order.
func (g *MockGraph) Inputs() []inference.Tensor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]inference.Tensor(nil), g.inputs...)
}

// Closed reports whether Close was called.
func (g *MockGraph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// MockLoader is an inference.Loader that hands out graphs built by a factory.
type MockLoader struct {
	mu      sync.Mutex
	factory func(name string, definition []byte) (*MockGraph, error)
	loaded  []*MockGraph
	loads   int
}

// NewMockLoader creates a loader that builds graphs with factory.
//
// Arguments:
// - factory: Builds the graph for one model definition.
//
// Returns:
// - A configured MockLoader.
func NewMockLoader(factory func(name string, definition []byte) (*MockGraph, error)) *MockLoader {
	return &MockLoader{factory: factory}
}

// Load implements inference.Loader.
func (l *MockLoader) Load(name string, definition []byte) (inference.Graph, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loads++
	g, err := l.factory(name, definition)
	if err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "loading %s", name)
	}
	g.ID = l.loads
	l.loaded = append(l.loaded, g)

	return g, nil
}

// Loaded returns every graph the loader has built, in load order.
func (l *MockLoader) Loaded() []*MockGraph {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*MockGraph(nil), l.loaded...)
}

// DetectorOutputs builds detector style outputs: scores (1, N, 2) and boxes (1, N, 4).
//
// Arguments:
// - confidences: The face confidence of each candidate.
// - boxes: Four floats per candidate.
//
// Returns:
// - The two output tensors.
func DetectorOutputs(confidences []float32, boxes []float32) []inference.Tensor {
	scores := make([]float32, 0, 2*len(confidences))
	for _, c := range confidences {
		scores = append(scores, 1-c, c)
	}

	return []inference.Tensor{
		{Shape: tensor.Shape{1, len(confidences), 2}, Data: scores},
		{Shape: tensor.Shape{1, len(boxes) / 4, 4}, Data: boxes},
	}
}

// EmbedderOutputs builds an embedder style output of shape (1, len(values)).
func EmbedderOutputs(values []float32) []inference.Tensor {
	return []inference.Tensor{{Shape: tensor.Shape{1, len(values)}, Data: values}}
}

// MockImageGenerator creates deterministic encoded test images.
//
// @example
// gen := NewMockImageGenerator(640, 480)
// data := gen.JPEG()
type MockImageGenerator struct {
	width  int
	height int
}

// NewMockImageGenerator creates a new image generator with specified dimensions.
//
// Arguments:
// - width: Image width in pixels.
// - height: Image height in pixels.
//
// Returns:
// - A configured MockImageGenerator instance.
func NewMockImageGenerator(width, height int) *MockImageGenerator {
	return &MockImageGenerator{width: width, height: height}
}

// Image returns a gradient with a bright square in the middle.
func (g *MockImageGenerator) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.width, g.height))
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / g.width),
				G: uint8(y * 255 / g.height),
				B: 128,
				A: 255,
			})
		}
	}

	square := image.Rect(g.width/3, g.height/3, 2*g.width/3, 2*g.height/3)
	for y := square.Min.Y; y < square.Max.Y; y++ {
		for x := square.Min.X; x < square.Max.X; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 240, G: 200, B: 180, A: 255})
		}
	}

	return img
}

// Uniform returns an image filled with one color.
func (g *MockImageGenerator) Uniform(c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.width, g.height))
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// JPEG returns Image encoded as JPEG.
func (g *MockImageGenerator) JPEG() []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, g.Image(), &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNG returns img encoded as PNG.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
