package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models/postprocess"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DetectResponse is the body of a successful /detect call.
type DetectResponse struct {
	RequestID string              `json:"request_id"`
	Found     bool                `json:"found"`
	Face      *postprocess.Result `json:"face,omitempty"`
}

// EmbedResponse is the body of a successful /embed call.
type EmbedResponse struct {
	RequestID string    `json:"request_id"`
	Dimension int       `json:"dimension"`
	Embedding []float32 `json:"embedding"`
}

// HealthResponse is the body of a /healthz call.
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// ErrorResponse is the body of a failed call.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := RequestID(r.Context())

	data, err := readImage(w, r, s.config.MaxBodyBytes)
	if err != nil {
		s.sendRequestError(w, r, err)
		return
	}

	result, err := s.pipelines.Detect(r.Context(), data)
	if errors.Is(err, inference.ErrNoFaceDetected) {
		s.requestLog(r).WithField("elapsed", time.Since(start)).Debug("no face detected")
		s.sendJSON(w, http.StatusOK, DetectResponse{RequestID: id})
		return
	}
	if err != nil {
		s.sendPipelineError(w, r, err)
		return
	}

	s.requestLog(r).WithFields(logrus.Fields{
		"confidence": result.Confidence,
		"index":      result.Index,
		"elapsed":    time.Since(start),
	}).Debug("face detected")

	s.sendJSON(w, http.StatusOK, DetectResponse{
		RequestID: id,
		Found:     true,
		Face:      &result,
	})
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	data, err := readImage(w, r, s.config.MaxBodyBytes)
	if err != nil {
		s.sendRequestError(w, r, err)
		return
	}

	embedding, err := s.pipelines.Embed(r.Context(), data)
	if err != nil {
		s.sendPipelineError(w, r, err)
		return
	}

	s.requestLog(r).WithFields(logrus.Fields{
		"dimension": len(embedding),
		"elapsed":   time.Since(start),
	}).Debug("embedding computed")

	s.sendJSON(w, http.StatusOK, EmbedResponse{
		RequestID: RequestID(r.Context()),
		Dimension: len(embedding),
		Embedding: embedding,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.readiness.Ready() {
		s.sendJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "initializing"})
		return
	}
	s.sendJSON(w, http.StatusOK, HealthResponse{Status: "ok", Ready: true})
}

// statusOf maps a pipeline error to its response status and code.
func statusOf(err error) (int, string) {
	switch inference.KindOf(err) {
	case inference.ErrImageDecode:
		return http.StatusBadRequest, "invalid_image"
	case inference.ErrNotInitialized:
		return http.StatusServiceUnavailable, "not_initialized"
	case inference.ErrInference:
		return http.StatusInternalServerError, "inference_error"
	case inference.ErrModelLoad:
		return http.StatusInternalServerError, "model_error"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "canceled"
	}
	return http.StatusInternalServerError, "internal_error"
}

// requestStatusOf maps a body read error to its response status and code.
func requestStatusOf(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "request_too_large"
	}
	return http.StatusBadRequest, "invalid_request"
}

func (s *Server) sendRequestError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := requestStatusOf(err)
	s.sendError(w, r, code, err, status)
}

func (s *Server) sendPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	s.sendError(w, r, code, err, status)
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, code string, err error, status int) {
	entry := s.requestLog(r).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}

	s.sendJSON(w, status, ErrorResponse{
		RequestID: RequestID(r.Context()),
		Code:      code,
		Message:   err.Error(),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("error writing response")
	}
}
