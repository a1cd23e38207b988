package opencv

import (
	"context"
	"unsafe"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/inference/pool"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// net is one loaded network. A gocv.Net must not run concurrently, so a Graph pools them.
type net struct {
	net         gocv.Net
	outputNames []string
}

// Graph is a pool of identical OpenCV networks wrapped as an inference.Graph.
type Graph struct {
	name string
	pool *pool.Pool[*net]
}

var _ inference.Graph = (*Graph)(nil)

// Run executes one network from the pool on the input.
//
// Arguments:
//   - input: The input tensor.
//
// Returns:
//   - []inference.Tensor: The outputs in model order, copied out of native memory.
//   - error: An error if no network is free in time or the forward pass fails.
func (g *Graph) Run(input inference.Tensor) ([]inference.Tensor, error) {
	n, err := g.pool.Acquire(context.Background())
	if err != nil {
		return nil, errors.Wrapf(err, "%s: error acquiring network", g.name)
	}
	defer g.pool.Release(n)

	blob, err := gocv.NewMatWithSizesFromBytes(input.Shape.Clone(), gocv.MatTypeCV32F, float32Bytes(input.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: error creating input blob", g.name)
	}
	defer blob.Close()

	n.net.SetInput(blob, "")

	outs := n.net.ForwardLayers(n.outputNames)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	if len(outs) != len(n.outputNames) {
		return nil, errors.Errorf("%s: forward returned %d outputs, want %d", g.name, len(outs), len(n.outputNames))
	}

	results := make([]inference.Tensor, len(outs))
	for i, out := range outs {
		results[i], err = matTensor(out)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: output %q", g.name, n.outputNames[i])
		}
	}

	return results, nil
}

// Close releases every network in the pool.
func (g *Graph) Close() error {
	g.pool.Close()
	return nil
}

// Metrics returns the usage of the network pool.
func (g *Graph) Metrics() pool.Metrics {
	return g.pool.Metrics()
}

func matTensor(m gocv.Mat) (inference.Tensor, error) {
	if m.Type() != gocv.MatTypeCV32F {
		return inference.Tensor{}, errors.Errorf("mat type %v, want CV32F", m.Type())
	}

	data, err := m.DataPtrFloat32()
	if err != nil {
		return inference.Tensor{}, errors.Wrap(err, "error reading mat data")
	}

	return inference.NewTensor(tensor.Shape(m.Size()), append([]float32(nil), data...))
}

// float32Bytes views data as its native byte representation without copying.
func float32Bytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}
