package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-faceml/common"
	"github.com/nvr-ai/go-faceml/inference"
)

// DecodeBoxes groups a flat run of floats into boxes of four values each.
//
// Arguments:
//   - flat: The box output, {left, top, right, bottom} per candidate.
//
// Returns:
//   - []common.BoundingBox: One box per consecutive group of four floats.
//   - error: ErrInference if the length is not a multiple of four.
func DecodeBoxes(flat []float32) ([]common.BoundingBox, error) {
	if len(flat)%common.BoxValues != 0 {
		return nil, inference.NewError(inference.ErrInference, nil,
			"box output holds %d values, not a multiple of %d", len(flat), common.BoxValues)
	}

	boxes := make([]common.BoundingBox, 0, len(flat)/common.BoxValues)
	for i := 0; i < len(flat); i += common.BoxValues {
		box, err := common.NewBoundingBox(flat[i : i+common.BoxValues])
		if err != nil {
			return nil, inference.NewError(inference.ErrInference, err, "box %d", i/common.BoxValues)
		}
		boxes = append(boxes, box)
	}

	return boxes, nil
}

// SelectBest pairs box i with confidence i and returns the pair with the highest confidence.
//
// Ties go to the lowest index: a later candidate only wins with a strictly greater confidence.
//
// Arguments:
//   - confidences: The face confidence of each candidate.
//   - boxes: The box of each candidate.
//
// Returns:
//   - Result: The winning candidate.
//   - error: ErrNoFaceDetected when there are no candidates, ErrInference when the counts differ or
//     a confidence is NaN.
func SelectBest(confidences []float32, boxes []common.BoundingBox) (Result, error) {
	if len(confidences) != len(boxes) {
		return Result{}, inference.NewError(inference.ErrInference, nil,
			"%d confidences for %d boxes", len(confidences), len(boxes))
	}
	if len(confidences) == 0 {
		return Result{}, inference.NewError(inference.ErrNoFaceDetected, nil, "detector returned 0 candidates")
	}

	best := -1
	for i, c := range confidences {
		if math32.IsNaN(c) {
			return Result{}, inference.NewError(inference.ErrInference, nil, "confidence %d is NaN", i)
		}
		if best < 0 || c > confidences[best] {
			best = i
		}
	}

	return Result{
		Box:        boxes[best],
		Confidence: confidences[best],
		Index:      best,
	}, nil
}
