// Package postprocess - Decoding of raw detector outputs into results.
package postprocess

import "github.com/nvr-ai/go-faceml/common"

// Result is the single most confident face candidate of a detection.
type Result struct {
	// The bounding box of the result, in relative network coordinates.
	Box common.BoundingBox `json:"box"        yaml:"box"`
	// The confidence score of the result, in the model's native range.
	Confidence float32 `json:"confidence" yaml:"confidence"`
	// The index of the candidate in the detector output.
	Index int `json:"index"      yaml:"index"`
}
