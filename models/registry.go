// Package models - registry for the loaded face model graphs.
package models

import (
	stderrors "errors"
	"sync"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models/model"
)

// Definitions holds the encoded model definitions compiled by Initialize.
type Definitions struct {
	// Detector is the ONNX definition of the face detector.
	Detector []byte
	// Embedder is the ONNX definition of the face embedder.
	Embedder []byte
}

// Get returns the definition of the named model.
func (d Definitions) Get(name model.Name) []byte {
	switch name {
	case model.ModelNameDetector:
		return d.Detector
	case model.ModelNameEmbedder:
		return d.Embedder
	default:
		return nil
	}
}

// Registry owns the detector and embedder graphs.
//
// A Registry starts uninitialized. A successful Initialize makes it ready. Reads never block each
// other; Initialize swaps the graph set only once no run is in flight.
type Registry struct {
	loader inference.Loader
	// initMu serializes Initialize calls so loads never interleave.
	initMu sync.Mutex
	mu     sync.RWMutex
	graphs map[model.Name]inference.Graph
}

// NewRegistry creates an uninitialized registry.
//
// Arguments:
//   - loader: Compiles model definitions into graphs.
//
// Returns:
//   - *Registry: The registry.
func NewRegistry(loader inference.Loader) *Registry {
	return &Registry{loader: loader}
}

// Initialize decodes, optimizes and compiles both model definitions and installs them.
//
// Calling Initialize again reloads both models from scratch and replaces the installed graphs.
// The replaced graphs are closed once in-flight runs have finished. When loading fails, the
// previously installed graphs (if any) stay in place.
//
// Arguments:
//   - defs: The encoded model definitions.
//
// Returns:
//   - error: ErrModelLoad if a definition is missing, malformed or unsupported.
func (r *Registry) Initialize(defs Definitions) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	loaded := make(map[model.Name]inference.Graph, len(model.Names))
	for _, name := range model.Names {
		graph, err := r.load(name, defs.Get(name))
		if err != nil {
			closeGraphs(loaded)
			return err
		}
		loaded[name] = graph
	}

	r.mu.Lock()
	replaced := r.graphs
	r.graphs = loaded
	r.mu.Unlock()

	// Runs hold the read lock, so nothing still uses the replaced graphs.
	return closeGraphs(replaced)
}

func (r *Registry) load(name model.Name, definition []byte) (inference.Graph, error) {
	if len(definition) == 0 {
		return nil, inference.NewError(inference.ErrModelLoad, nil, "%s: empty model definition", name)
	}
	if r.loader == nil {
		return nil, inference.NewError(inference.ErrModelLoad, nil, "%s: no loader configured", name)
	}

	graph, err := r.loader.Load(string(name), definition)
	if err != nil {
		return nil, inference.NewError(inference.ErrModelLoad, err, "%s", name)
	}
	if graph == nil {
		return nil, inference.NewError(inference.ErrModelLoad, nil, "%s: loader returned no graph", name)
	}

	return graph, nil
}

// Get returns the named graph.
//
// The handle stays valid until the next Initialize or Close. Callers running inference should
// prefer Use, which keeps the graph alive for the duration of the run.
//
// Arguments:
//   - name: The model name.
//
// Returns:
//   - inference.Graph: The graph.
//   - error: ErrNotInitialized if Initialize has not completed successfully.
func (r *Registry) Get(name model.Name) (inference.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.get(name)
}

func (r *Registry) get(name model.Name) (inference.Graph, error) {
	if r.graphs == nil {
		return nil, inference.NewError(inference.ErrNotInitialized, nil, "%s requested before initialize", name)
	}
	graph, ok := r.graphs[name]
	if !ok {
		return nil, inference.NewError(inference.ErrNotInitialized, nil, "no graph named %q", name)
	}
	return graph, nil
}

// Use calls fn with the named graph, keeping it installed until fn returns.
//
// Arguments:
//   - name: The model name.
//   - fn: The function to run with the graph.
//
// Returns:
//   - error: ErrNotInitialized if Initialize has not completed successfully, otherwise the error
//     returned by fn.
func (r *Registry) Use(name model.Name, fn func(inference.Graph) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graph, err := r.get(name)
	if err != nil {
		return err
	}
	return fn(graph)
}

// Ready reports whether Initialize has completed successfully.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graphs != nil
}

// Close releases the installed graphs. The registry is unusable afterwards.
//
// Returns:
//   - error: The errors returned by the graphs' Close methods, joined.
func (r *Registry) Close() error {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	r.mu.Lock()
	graphs := r.graphs
	r.graphs = nil
	r.mu.Unlock()

	return closeGraphs(graphs)
}

func closeGraphs(graphs map[model.Name]inference.Graph) error {
	var errs []error
	for _, name := range model.Names {
		if graph, ok := graphs[name]; ok {
			if err := graph.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderrors.Join(errs...)
}
