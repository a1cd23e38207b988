package benchmark

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models"
	"github.com/nvr-ai/go-faceml/models/facerec"
	"github.com/nvr-ai/go-faceml/models/model"
	"github.com/nvr-ai/go-faceml/models/postprocess"
	"github.com/nvr-ai/go-faceml/pipeline"
	"github.com/nvr-ai/go-faceml/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockPipelines finds a face in every image whose first byte is 'f' and fails on 'x'.
type MockPipelines struct {
	calls atomic.Int64
}

func (m *MockPipelines) Detect(_ context.Context, data []byte) (postprocess.Result, error) {
	m.calls.Add(1)
	switch data[0] {
	case 'f':
		return postprocess.Result{Confidence: 0.9}, nil
	case 'x':
		return postprocess.Result{}, inference.NewError(inference.ErrImageDecode, nil, "bad image")
	default:
		return postprocess.Result{}, inference.NewError(inference.ErrNoFaceDetected, nil, "no candidates")
	}
}

func (m *MockPipelines) Embed(_ context.Context, data []byte) (facerec.Embedding, error) {
	m.calls.Add(1)
	if data[0] == 'x' {
		return nil, inference.NewError(inference.ErrImageDecode, nil, "bad image")
	}
	return facerec.Embedding{1, 2}, nil
}

func TestNewSuiteEmptyCorpus(t *testing.T) {
	_, err := NewSuite(&MockPipelines{}, nil)
	assert.Error(t, err)
}

func TestRunScenarioDetect(t *testing.T) {
	p := &MockPipelines{}
	suite, err := NewSuite(p, [][]byte{[]byte("face"), []byte("empty"), []byte("xbad"), []byte("face")})
	require.NoError(t, err)

	for _, workers := range []int{1, 3} {
		m, err := suite.RunScenario(context.Background(), Scenario{
			Name:        "detect",
			Operation:   pipeline.OperationDetect,
			Iterations:  8,
			WarmupRuns:  2,
			Concurrency: workers,
		})
		require.NoError(t, err)

		assert.Equal(t, 4, m.FaceCount)
		assert.Equal(t, 2, m.Errors)
		assert.InDelta(t, 0.25, m.ErrorRate, 1e-9)
		assert.Greater(t, m.FramesPerSecond, 0.0)
		assert.LessOrEqual(t, m.MinLatency, m.MaxLatency)
	}

	assert.Equal(t, int64(20), p.calls.Load())
	assert.Len(t, suite.Results(), 2)
}

func TestRunScenarioEmbed(t *testing.T) {
	suite, err := NewSuite(&MockPipelines{}, [][]byte{[]byte("a"), []byte("x")})
	require.NoError(t, err)

	m, err := suite.RunScenario(context.Background(), Scenario{Name: "embed", Operation: pipeline.OperationEmbed, Iterations: 4})
	require.NoError(t, err)
	assert.Equal(t, 0, m.FaceCount)
	assert.Equal(t, 2, m.Errors)
}

func TestRunScenarioInvalid(t *testing.T) {
	suite, err := NewSuite(&MockPipelines{}, [][]byte{[]byte("a")})
	require.NoError(t, err)

	for _, s := range []Scenario{
		{Name: "op", Operation: "classify", Iterations: 1},
		{Name: "iterations", Operation: pipeline.OperationDetect},
		{Name: "workers", Operation: pipeline.OperationDetect, Iterations: 1, Concurrency: -1},
	} {
		_, err := suite.RunScenario(context.Background(), s)
		assert.Error(t, err, s.Name)
	}

	assert.Empty(t, suite.Results())
}

func TestRunScenarioCanceled(t *testing.T) {
	suite, err := NewSuite(&MockPipelines{}, [][]byte{[]byte("face")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = suite.RunAll(ctx, DefaultScenarios(1000))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveResults(t *testing.T) {
	suite, err := NewSuite(&MockPipelines{}, [][]byte{[]byte("face")})
	require.NoError(t, err)
	require.NoError(t, suite.RunAll(context.Background(), DefaultScenarios(3)))
	require.Len(t, suite.Results(), 4)

	paths, err := suite.SaveResults(t.TempDir())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	csv, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], "detect-serial,detect,1,"))
}

// staticGraph returns the same outputs on every run without recording inputs.
type staticGraph []inference.Tensor

func (g staticGraph) Run(inference.Tensor) ([]inference.Tensor, error) { return g, nil }

func (g staticGraph) Close() error { return nil }

func BenchmarkDetect(b *testing.B) {
	loader := inference.LoaderFunc(func(name string, _ []byte) (inference.Graph, error) {
		if name == string(model.ModelNameDetector) {
			return staticGraph(test.DetectorOutputs([]float32{0.2, 0.9}, make([]float32, 8))), nil
		}
		return staticGraph(test.EmbedderOutputs(make([]float32, 128))), nil
	})
	registry := models.NewRegistry(loader)
	require.NoError(b, registry.Initialize(models.Definitions{Detector: []byte("d"), Embedder: []byte("e")}))

	engine, err := pipeline.NewEngine(registry, model.NewModelArgs{})
	require.NoError(b, err)

	img := test.NewMockImageGenerator(640, 480).JPEG()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Detect(context.Background(), img); err != nil {
			b.Fatal(err)
		}
	}
}
