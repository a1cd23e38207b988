package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/nvr-ai/go-faceml/images"
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models"
	"github.com/nvr-ai/go-faceml/models/facerec"
	"github.com/nvr-ai/go-faceml/models/model"
	"github.com/nvr-ai/go-faceml/models/postprocess"
	"github.com/nvr-ai/go-faceml/models/ultraface"
)

// Engine runs the detection and embedding pipelines against the graphs of a registry.
//
// Pipelines hold no state between calls; an Engine is safe for concurrent use.
type Engine struct {
	registry *models.Registry
	detector *ultraface.UltraFace
	embedder *facerec.FaceRec
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the observer notified after every pipeline stage.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// NewEngine creates a new engine.
//
// Arguments:
//   - registry: The registry holding the detector and embedder graphs. It may be initialized later.
//   - args: The model arguments shared by both pipelines.
//   - opts: Engine options.
//
// Returns:
//   - *Engine: The engine.
//   - error: An error if a model cannot be built from args.
func NewEngine(registry *models.Registry, args model.NewModelArgs, opts ...Option) (*Engine, error) {
	detector, err := ultraface.NewModel(args)
	if err != nil {
		return nil, err
	}
	embedder, err := facerec.NewModel(args)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		registry: registry,
		detector: detector,
		embedder: embedder,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Detect locates the single most confident face in an encoded image.
//
// The returned box is in the detector's relative coordinates and is not scaled to the image.
//
// Arguments:
//   - ctx: Checked once before decoding; the pipeline is not interrupted once started.
//   - data: The encoded image.
//
// Returns:
//   - postprocess.Result: The box and confidence of the most confident candidate.
//   - error: ErrNotInitialized, ErrImageDecode, ErrInference or ErrNoFaceDetected.
func (e *Engine) Detect(ctx context.Context, data []byte) (postprocess.Result, error) {
	return run[postprocess.Result](ctx, e, OperationDetect, e.detector, data)
}

// Embed computes the embedding of an encoded face crop.
//
// No face presence check is made: any decodable image yields a vector.
//
// Arguments:
//   - ctx: Checked once before decoding; the pipeline is not interrupted once started.
//   - data: The encoded image, already cropped to a face.
//
// Returns:
//   - facerec.Embedding: The raw, unnormalized embedding.
//   - error: ErrNotInitialized, ErrImageDecode or ErrInference.
func (e *Engine) Embed(ctx context.Context, data []byte) (facerec.Embedding, error) {
	return run[facerec.Embedding](ctx, e, OperationEmbed, e.embedder, data)
}

func run[R any](ctx context.Context, e *Engine, op Operation, m model.Model[R], data []byte) (R, error) {
	var zero R

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if !e.registry.Ready() {
		return zero, inference.NewError(inference.ErrNotInitialized, nil, "%s requested before initialize", op)
	}

	var img image.Image
	err := e.stage(op, StageDecode, func() error {
		decoded, _, err := images.Decode(data)
		if err != nil {
			return inference.NewError(inference.ErrImageDecode, err, "%s", op)
		}
		img = decoded
		return nil
	})
	if err != nil {
		return zero, err
	}

	var input inference.Tensor
	err = e.stage(op, StagePreprocess, func() error {
		t, err := m.PreProcess(img)
		if err != nil {
			return inference.NewError(inference.ErrImageDecode, err, "%s", op)
		}
		input = t
		return nil
	})
	if err != nil {
		return zero, err
	}

	var outputs []inference.Tensor
	err = e.stage(op, StageRun, func() error {
		return e.registry.Use(m.Name(), func(graph inference.Graph) error {
			out, err := graph.Run(input)
			if err != nil {
				return inference.NewError(inference.ErrInference, err, "%s: running %s", op, m.Name())
			}
			outputs = out
			return nil
		})
	})
	if err != nil {
		return zero, err
	}

	var result R
	err = e.stage(op, StagePostprocess, func() error {
		r, err := m.PostProcess(outputs)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return zero, err
	}

	return result, nil
}

func (e *Engine) stage(op Operation, stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	e.observer.ObserveStage(op, stage, time.Since(start), err)
	return err
}
