// Package pipeline - Face detection and embedding pipelines.
package pipeline

import "time"

// Operation names a pipeline.
type Operation string

const (
	// OperationDetect is the face detection pipeline.
	OperationDetect Operation = "detect"
	// OperationEmbed is the face embedding pipeline.
	OperationEmbed Operation = "embed"
)

// Stage names one step of a pipeline.
type Stage string

const (
	// StageDecode parses the encoded image.
	StageDecode Stage = "decode"
	// StagePreprocess resizes and normalizes the image into the input tensor.
	StagePreprocess Stage = "preprocess"
	// StageRun executes the graph.
	StageRun Stage = "run"
	// StagePostprocess decodes the graph outputs.
	StagePostprocess Stage = "postprocess"
)

// Stages lists the stages of every pipeline in execution order.
var Stages = []Stage{StageDecode, StagePreprocess, StageRun, StagePostprocess}

// Observer receives the outcome of every pipeline stage.
//
// ObserveStage is called synchronously after each stage that ran, including a failed one. It must
// be safe for concurrent use and must not block.
type Observer interface {
	ObserveStage(op Operation, stage Stage, duration time.Duration, err error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(op Operation, stage Stage, duration time.Duration, err error)

// ObserveStage implements Observer.
func (f ObserverFunc) ObserveStage(op Operation, stage Stage, duration time.Duration, err error) {
	f(op, stage, duration, err)
}

// Observers fans stage outcomes out to several observers.
type Observers []Observer

// ObserveStage implements Observer.
func (o Observers) ObserveStage(op Operation, stage Stage, duration time.Duration, err error) {
	for _, observer := range o {
		if observer != nil {
			observer.ObserveStage(op, stage, duration, err)
		}
	}
}

type nopObserver struct{}

func (nopObserver) ObserveStage(Operation, Stage, time.Duration, error) {}
