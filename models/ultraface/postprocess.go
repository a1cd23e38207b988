package ultraface

import (
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models/postprocess"
)

const (
	// scoresOutput holds per-candidate class scores shaped (1, N, classes).
	scoresOutput = 0
	// boxesOutput holds per-candidate boxes as a flat run of {left, top, right, bottom}.
	boxesOutput = 1
	// faceClass is the index of the face class within a candidate's scores.
	faceClass = 1
)

// PostProcess picks the most confident face from the detector outputs.
//
// Output 0 holds the scores, where [0, i, 1] is the face confidence of candidate i. Output 1 holds
// the boxes, four floats per candidate. Box coordinates are returned unscaled.
//
// Arguments:
//   - outputs: The graph outputs in model order.
//
// Returns:
//   - postprocess.Result: The most confident candidate.
//   - error: ErrNoFaceDetected when the detector returned no candidates, ErrInference when the
//     outputs do not follow the layout above.
func (m *UltraFace) PostProcess(outputs []inference.Tensor) (postprocess.Result, error) {
	if len(outputs) < 2 {
		return postprocess.Result{}, inference.NewError(inference.ErrInference, nil,
			"detector returned %d outputs, want at least 2", len(outputs))
	}

	scores, boxes := outputs[scoresOutput], outputs[boxesOutput]
	if scores.Len() == 0 && boxes.Len() == 0 {
		return postprocess.Result{}, inference.NewError(inference.ErrNoFaceDetected, nil,
			"detector returned 0 candidates")
	}

	confidences, err := faceConfidences(scores)
	if err != nil {
		return postprocess.Result{}, err
	}

	decoded, err := postprocess.DecodeBoxes(boxes.Data)
	if err != nil {
		return postprocess.Result{}, err
	}

	return postprocess.SelectBest(confidences, decoded)
}

// faceConfidences extracts [0, i, 1] for every candidate i of a (1, N, K) score tensor.
func faceConfidences(scores inference.Tensor) ([]float32, error) {
	shape := scores.Shape
	if len(shape) != 3 || shape[0] != 1 || shape[2] <= faceClass {
		return nil, inference.NewError(inference.ErrInference, nil,
			"detector scores have shape %v, want (1, N, K>=%d)", shape, faceClass+1)
	}

	n, k := shape[1], shape[2]
	if len(scores.Data) != n*k {
		return nil, inference.NewError(inference.ErrInference, nil,
			"detector scores hold %d values for shape %v", len(scores.Data), shape)
	}

	confidences := make([]float32, n)
	for i := range confidences {
		confidences[i] = scores.Data[i*k+faceClass]
	}

	return confidences, nil
}
