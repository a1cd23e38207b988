package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nvr-ai/go-faceml/common"
	"github.com/nvr-ai/go-faceml/config"
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models/facerec"
	"github.com/nvr-ai/go-faceml/models/postprocess"
	"github.com/nvr-ai/go-faceml/pipeline"
	"github.com/nvr-ai/go-faceml/profiler"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipelines struct {
	detect    postprocess.Result
	embedding facerec.Embedding
	err       error
	received  []byte
}

func (f *fakePipelines) Detect(_ context.Context, data []byte) (postprocess.Result, error) {
	f.received = data
	return f.detect, f.err
}

func (f *fakePipelines) Embed(_ context.Context, data []byte) (facerec.Embedding, error) {
	f.received = data
	return f.embedding, f.err
}

type readiness bool

func (r readiness) Ready() bool { return bool(r) }

func newTestServer(p Pipelines, ready bool) (*Server, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	cfg := config.Default().Server
	cfg.MaxBodyBytes = 1 << 20
	return New(p, readiness(ready), profiler.NewStageProfiler(), log, cfg), hook
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDetectFound(t *testing.T) {
	p := &fakePipelines{detect: postprocess.Result{
		Box:        common.BoundingBox{Left: 0.1, Top: 0.2, Right: 0.3, Bottom: 0.4},
		Confidence: 0.9,
		Index:      1,
	}}
	s, _ := newTestServer(p, true)

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader("raw-bytes")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("raw-bytes"), p.received)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	var body DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Found)
	require.NotNil(t, body.Face)
	assert.Equal(t, p.detect, *body.Face)
	assert.Equal(t, rec.Header().Get(HeaderRequestID), body.RequestID)
}

func TestDetectNoFace(t *testing.T) {
	p := &fakePipelines{err: inference.NewError(inference.ErrNoFaceDetected, nil, "zero candidates")}
	s, _ := newTestServer(p, true)

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader("img")))
	require.Equal(t, http.StatusOK, rec.Code)

	var body DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Found)
	assert.Nil(t, body.Face)
}

func TestPipelineErrorStatus(t *testing.T) {
	tests := []struct {
		kind   error
		status int
		code   string
	}{
		{kind: inference.ErrImageDecode, status: http.StatusBadRequest, code: "invalid_image"},
		{kind: inference.ErrNotInitialized, status: http.StatusServiceUnavailable, code: "not_initialized"},
		{kind: inference.ErrInference, status: http.StatusInternalServerError, code: "inference_error"},
		{kind: inference.ErrModelLoad, status: http.StatusInternalServerError, code: "model_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			p := &fakePipelines{err: inference.NewError(tt.kind, nil, "failure")}
			s, hook := newTestServer(p, true)

			for _, path := range []string{"/detect", "/embed"} {
				rec := serve(s, httptest.NewRequest(http.MethodPost, path, strings.NewReader("img")))
				assert.Equal(t, tt.status, rec.Code, path)

				var body ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.code, body.Code)
				assert.NotEmpty(t, body.Message)
				assert.NotEmpty(t, body.RequestID)
			}
			assert.NotNil(t, hook.LastEntry())
		})
	}
}

func TestStatusOfContextErrors(t *testing.T) {
	status, code := statusOf(context.Canceled)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "canceled", code)
}

func TestEmbedJSONBody(t *testing.T) {
	p := &fakePipelines{embedding: facerec.Embedding{0.5, -1, 2}}
	s, _ := newTestServer(p, true)

	payload, err := json.Marshal(map[string]string{"image": base64.StdEncoding.EncodeToString([]byte("jpeg"))})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/embed", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set(HeaderRequestID, "req-1")

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("jpeg"), p.received)
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))

	var body EmbedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-1", body.RequestID)
	assert.Equal(t, 3, body.Dimension)
	assert.Equal(t, []float32{0.5, -1, 2}, body.Embedding)
}

func TestMultipartBody(t *testing.T) {
	p := &fakePipelines{}
	s, _ := newTestServer(p, true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "face.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/detect", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("png-bytes"), p.received)
}

func TestInvalidRequests(t *testing.T) {
	s, _ := newTestServer(&fakePipelines{}, true)

	badJSON := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader("{"))
	badJSON.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, serve(s, badJSON).Code)

	badBase64 := httptest.NewRequest(http.MethodPost, "/embed", strings.NewReader(`{"image":"%%%"}`))
	badBase64.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, serve(s, badBase64).Code)

	noFile := httptest.NewRequest(http.MethodPost, "/detect", strings.NewReader(""))
	noFile.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	assert.Equal(t, http.StatusBadRequest, serve(s, noFile).Code)

	wrongMethod := httptest.NewRequest(http.MethodGet, "/detect", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, wrongMethod).Code)
}

func TestOversizedBody(t *testing.T) {
	s, _ := newTestServer(&fakePipelines{}, true)

	raw := httptest.NewRequest(http.MethodPost, "/detect", bytes.NewReader(make([]byte, 2<<20)))
	rec := serve(s, raw)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "request_too_large", body.Code)

	payload := `{"image":"` + strings.Repeat("A", 2<<20) + `"}`
	jsonReq := httptest.NewRequest(http.MethodPost, "/embed", strings.NewReader(payload))
	jsonReq.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(s, jsonReq).Code)
}

func TestRequestStatusOf(t *testing.T) {
	status, code := requestStatusOf(errors.Wrap(&http.MaxBytesError{Limit: 1}, "error reading body"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "request_too_large", code)

	status, code = requestStatusOf(errors.New("image is not valid base64"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", code)
}

func TestHealth(t *testing.T) {
	ready, _ := newTestServer(&fakePipelines{}, true)
	rec := serve(ready, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)

	initializing, _ := newTestServer(&fakePipelines{}, false)
	rec = serve(initializing, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	prof := profiler.NewStageProfiler()
	prof.ObserveStage(pipeline.OperationDetect, pipeline.StageRun, 3*time.Millisecond, nil)

	s := New(&fakePipelines{}, readiness(true), prof, log, config.Default().Server)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(pipeline.StageRun))
}

func TestLogObserver(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	o := LogObserver{Log: log}

	o.ObserveStage(pipeline.OperationDetect, pipeline.StageDecode, time.Millisecond, nil)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)

	o.ObserveStage(pipeline.OperationDetect, pipeline.StagePostprocess, time.Millisecond,
		inference.NewError(inference.ErrNoFaceDetected, nil, "none"))
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)

	o.ObserveStage(pipeline.OperationEmbed, pipeline.StageRun, time.Millisecond,
		inference.NewError(inference.ErrInference, nil, "boom"))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, pipeline.StageRun, hook.LastEntry().Data["stage"])

	assert.NotPanics(t, func() {
		LogObserver{}.ObserveStage(pipeline.OperationEmbed, pipeline.StageRun, 0, nil)
	})
}
