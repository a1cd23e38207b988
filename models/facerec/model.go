// Package facerec - Face embedding model (facerec).
package facerec

import (
	"image"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models/model"
	"github.com/nvr-ai/go-faceml/models/model/preprocess"
)

// InputSize is the width and height the embedder was trained on.
const InputSize = 140

// Embedding is a point in face-embedding space, in the order the network produced it.
type Embedding []float32

// Config returns the preprocessing configuration of the embedder.
func Config() preprocess.ModelConfig {
	return preprocess.ModelConfig{
		Name:              string(model.ModelNameEmbedder),
		InputWidth:        InputSize,
		InputHeight:       InputSize,
		NormalizationType: preprocess.NormalizeZeroToOne,
	}
}

// FaceRec is the instance of the face embedding model.
type FaceRec struct {
	pre *preprocess.Preprocessor
}

var _ model.Model[Embedding] = (*FaceRec)(nil)

// NewModel creates a new model.
//
// Arguments:
//   - args: The arguments for creating a new model.
//
// Returns:
//   - *FaceRec: The model.
//   - error: An error if the preprocessor cannot be built.
func NewModel(args model.NewModelArgs) (*FaceRec, error) {
	pre, err := model.NewPreprocessor(args, Config())
	if err != nil {
		return nil, err
	}
	return &FaceRec{pre: pre}, nil
}

// Name implements model.Model.
func (m *FaceRec) Name() model.Name {
	return model.ModelNameEmbedder
}

// Config implements model.Model.
func (m *FaceRec) Config() preprocess.ModelConfig {
	return m.pre.Config()
}

// PreProcess resizes the image to 140x140 and scales it into a (1, 3, 140, 140) tensor.
func (m *FaceRec) PreProcess(img image.Image) (inference.Tensor, error) {
	return m.pre.Preprocess(img)
}

// PostProcess flattens output 0 into the embedding. No normalization is applied.
//
// Arguments:
//   - outputs: The graph outputs in model order.
//
// Returns:
//   - Embedding: A copy of the values of output 0 in row-major order.
//   - error: ErrInference if there is no output or it is empty.
func (m *FaceRec) PostProcess(outputs []inference.Tensor) (Embedding, error) {
	if len(outputs) == 0 {
		return nil, inference.NewError(inference.ErrInference, nil, "embedder returned no outputs")
	}

	out := outputs[0]
	if out.Len() == 0 {
		return nil, inference.NewError(inference.ErrInference, nil,
			"embedder output has shape %v and no values", out.Shape)
	}

	embedding := make(Embedding, out.Len())
	copy(embedding, out.Data)

	return embedding, nil
}
