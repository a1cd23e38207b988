package main

import (
	"context"

	"github.com/nvr-ai/go-faceml/config"
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/inference/opencv"
	"github.com/nvr-ai/go-faceml/inference/providers"
	"github.com/nvr-ai/go-faceml/models"
	"github.com/nvr-ai/go-faceml/models/model"
	"github.com/nvr-ai/go-faceml/pipeline"
	"github.com/nvr-ai/go-faceml/profiler"
	"github.com/nvr-ai/go-faceml/server"
	"github.com/nvr-ai/go-faceml/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// app wires the configured backend, registry and pipelines together.
type app struct {
	config   config.Config
	log      *logrus.Logger
	registry *models.Registry
	engine   *pipeline.Engine
	profiler *profiler.StageProfiler
	cleanup  func()
}

// newApp builds the pipelines and loads both models.
func newApp(ctx context.Context, cfg config.Config, log *logrus.Logger) (*app, error) {
	loader, cleanup, err := newLoader(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		config:   cfg,
		log:      log,
		registry: models.NewRegistry(loader),
		profiler: profiler.NewStageProfiler(),
		cleanup:  cleanup,
	}

	a.engine, err = pipeline.NewEngine(a.registry, model.NewModelArgs{Resampler: cfg.Resampler},
		pipeline.WithObserver(pipeline.Observers{a.profiler, server.LogObserver{Log: log}}))
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "error creating pipelines")
	}

	if err := a.load(ctx); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// load fetches both model definitions and installs them in the registry.
func (a *app) load(ctx context.Context) error {
	a.log.WithFields(logrus.Fields{
		"detector": a.config.Models.Detector,
		"embedder": a.config.Models.Embedder,
		"backend":  a.config.Backend,
	}).Info("loading models")

	defs, err := util.NewModelLoader(a.config.Models.S3Region).
		LoadDefinitions(ctx, a.config.Models.Detector, a.config.Models.Embedder)
	if err != nil {
		return err
	}

	if err := a.registry.Initialize(defs); err != nil {
		return err
	}

	a.log.Info("models loaded")
	return nil
}

// Close releases the graphs and the backend.
func (a *app) Close() {
	if err := a.registry.Close(); err != nil {
		a.log.WithError(err).Warn("error closing graphs")
	}
	a.cleanup()
}

func newLoader(cfg config.Config, log *logrus.Logger) (inference.Loader, func(), error) {
	switch cfg.Backend {
	case config.BackendOpenCV:
		loader, err := opencv.NewLoader(cfg.OpenCV)
		if err != nil {
			return nil, nil, err
		}
		return loader, func() {}, nil
	case config.BackendONNXRuntime:
		loader, err := providers.NewLoader(cfg.ONNXRuntime)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("provider", loader.Provider().Backend()).Debug("onnxruntime environment initialized")
		return loader, func() {
			if err := providers.DestroyEnvironment(); err != nil {
				log.WithError(err).Warn("error destroying onnxruntime environment")
			}
		}, nil
	default:
		return nil, nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}
}
