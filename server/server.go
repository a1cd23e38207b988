// Package server - HTTP host for the face detection and embedding pipelines.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nvr-ai/go-faceml/config"
	"github.com/nvr-ai/go-faceml/models/facerec"
	"github.com/nvr-ai/go-faceml/models/postprocess"
	"github.com/nvr-ai/go-faceml/profiler"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Pipelines runs the face pipelines. *pipeline.Engine implements it.
type Pipelines interface {
	Detect(ctx context.Context, data []byte) (postprocess.Result, error)
	Embed(ctx context.Context, data []byte) (facerec.Embedding, error)
}

// Readiness reports whether the models are loaded. *models.Registry implements it.
type Readiness interface {
	Ready() bool
}

// Metrics exposes stage timings. *profiler.StageProfiler implements it.
type Metrics interface {
	Snapshot() profiler.Snapshot
}

// Server serves the pipelines over HTTP.
type Server struct {
	pipelines    Pipelines
	readiness    Readiness
	metrics      Metrics
	log          *logrus.Logger
	config       config.ServerConfig
	router       *mux.Router
	shutdownWait time.Duration
}

// New creates a server and registers its routes.
//
// Arguments:
//   - pipelines: The detection and embedding pipelines.
//   - readiness: The model readiness check served at /healthz.
//   - metrics: The stage metrics served at /metrics.
//   - log: The logger. Nil uses the logrus standard logger.
//   - cfg: The listener settings.
//
// Returns:
//   - *Server: The server.
func New(pipelines Pipelines, readiness Readiness, metrics Metrics, log *logrus.Logger, cfg config.ServerConfig) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		pipelines:    pipelines,
		readiness:    readiness,
		metrics:      metrics,
		log:          log,
		config:       cfg,
		router:       mux.NewRouter(),
		shutdownWait: 10 * time.Second,
	}
	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestID)
	s.router.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	s.router.HandleFunc("/embed", s.handleEmbed).Methods(http.MethodPost)
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is done, then shuts down gracefully.
//
// Arguments:
//   - ctx: Cancel to stop the server.
//
// Returns:
//   - error: The listener error, or the shutdown error after ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Handler:      s.router,
		Addr:         s.config.Addr,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", srv.Addr).Info("starting server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownWait)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "error shutting down server")
	}
	return nil
}
