package server

import (
	"time"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/pipeline"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LogObserver logs every pipeline stage at debug level. Failed stages are logged at warn level,
// except for detections that found no face.
type LogObserver struct {
	Log *logrus.Logger
}

var _ pipeline.Observer = LogObserver{}

// ObserveStage implements pipeline.Observer.
func (o LogObserver) ObserveStage(op pipeline.Operation, stage pipeline.Stage, d time.Duration, err error) {
	if o.Log == nil {
		return
	}

	entry := o.Log.WithFields(logrus.Fields{
		"op":       op,
		"stage":    stage,
		"duration": d,
	})
	if err != nil && !errors.Is(err, inference.ErrNoFaceDetected) {
		entry.WithError(err).Warn("stage failed")
		return
	}
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("stage completed")
}
