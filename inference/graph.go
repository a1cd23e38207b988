package inference

// Graph is a loaded, optimized network that can run forward inference.
//
// A Graph is immutable once loaded. Implementations must be safe for concurrent Run calls.
type Graph interface {
	// Run executes the graph on a single input tensor and returns its outputs in model order.
	Run(input Tensor) ([]Tensor, error)
	// Close releases native resources held by the graph.
	Close() error
}

// Loader compiles model definitions into runnable graphs.
type Loader interface {
	// Load decodes, optimizes and compiles the definition.
	//
	// Failures are returned as ErrModelLoad.
	Load(name string, definition []byte) (Graph, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(name string, definition []byte) (Graph, error)

// Load implements Loader.
func (f LoaderFunc) Load(name string, definition []byte) (Graph, error) {
	return f(name, definition)
}
