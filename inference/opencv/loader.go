package opencv

import (
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/inference/pool"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Loader builds pooled OpenCV graphs from ONNX definitions.
type Loader struct {
	config  Config
	backend gocv.NetBackendType
	target  gocv.NetTargetType
}

var _ inference.Loader = (*Loader)(nil)

// NewLoader creates an OpenCV DNN loader.
//
// Arguments:
//   - config: The backend configuration.
//
// Returns:
//   - *Loader: The loader.
//   - error: An ErrModelLoad error if the configuration is invalid.
func NewLoader(config Config) (*Loader, error) {
	if err := config.Validate(); err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "invalid opencv configuration")
	}

	return &Loader{
		config:  config,
		backend: gocv.ParseNetBackend(config.Backend),
		target:  gocv.ParseNetTarget(config.Target),
	}, nil
}

// Load parses the definition once per pool slot.
//
// Arguments:
//   - name: The model name, used to look up configured output names.
//   - definition: The ONNX model bytes.
//
// Returns:
//   - inference.Graph: A *Graph.
//   - error: An ErrModelLoad error if any network fails to load.
func (l *Loader) Load(name string, definition []byte) (inference.Graph, error) {
	if len(definition) == 0 {
		return nil, inference.NewError(inference.ErrModelLoad, nil, "%s: empty model definition", name)
	}

	p, err := pool.New(l.config.PoolSize, l.config.AcquireTimeout, func(int) (*net, error) {
		return l.readNet(name, definition)
	}, func(n *net) {
		n.net.Close()
	})
	if err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "%s: error loading opencv network", name)
	}

	return &Graph{name: name, pool: p}, nil
}

func (l *Loader) readNet(name string, definition []byte) (*net, error) {
	n, err := gocv.ReadNetFromONNXBytes(definition)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing onnx definition")
	}
	if n.Empty() {
		n.Close()
		return nil, errors.New("network is empty")
	}

	n.SetPreferableBackend(l.backend)
	n.SetPreferableTarget(l.target)

	outputs := l.config.Outputs[name]
	if len(outputs) == 0 {
		outputs = unconnectedOutputs(&n)
	}
	if len(outputs) == 0 {
		n.Close()
		return nil, errors.New("network has no outputs")
	}

	return &net{net: n, outputNames: outputs}, nil
}

func unconnectedOutputs(n *gocv.Net) []string {
	ids := n.GetUnconnectedOutLayers()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		layer := n.GetLayer(id)
		names = append(names, layer.GetName())
		layer.Close()
	}
	return names
}
