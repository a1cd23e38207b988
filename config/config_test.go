package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/go-faceml/images"
	"github.com/nvr-ai/go-faceml/inference/providers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, BackendONNXRuntime, c.Backend)
	assert.Equal(t, images.ResamplerImaging, c.Resampler)
	assert.Equal(t, logrus.InfoLevel, c.Level())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faceml.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  readTimeout: 5s
logLevel: debug
backend: opencv
models:
  detector: s3://faces/detector.onnx
  embedder: /models/facerec.onnx
  s3Region: eu-west-1
resampler: nfnt
opencv:
  poolSize: 3
  acquireTimeout: 250ms
  backend: cuda
  target: cuda_fp16
  outputs:
    detector: [scores, boxes]
onnxruntime:
  backend: cuda
  optimization:
    graphOptimizationLevel: basic
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, 5*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, c.Server.WriteTimeout)
	assert.Equal(t, logrus.DebugLevel, c.Level())
	assert.Equal(t, BackendOpenCV, c.Backend)
	assert.Equal(t, "s3://faces/detector.onnx", c.Models.Detector)
	assert.Equal(t, "eu-west-1", c.Models.S3Region)
	assert.Equal(t, images.ResamplerNFNT, c.Resampler)
	assert.Equal(t, 3, c.OpenCV.PoolSize)
	assert.Equal(t, 250*time.Millisecond, c.OpenCV.AcquireTimeout)
	assert.Equal(t, []string{"scores", "boxes"}, c.OpenCV.Outputs["detector"])
	assert.Equal(t, providers.CUDAProviderBackend, c.ONNXRuntime.Backend)
	assert.Equal(t, providers.GraphOptimizationBasic, c.ONNXRuntime.Optimization.GraphOptimizationLevel)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unclosed"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("backend: tensorflow\n"), 0o600))
	_, err = Load(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	c.ApplyEnv(env(map[string]string{
		EnvAddr:          "127.0.0.1:7000",
		EnvBackend:       "opencv",
		EnvDetectorModel: "s3://faces/d.onnx",
		EnvEmbedderModel: "",
		EnvORTLibrary:    "/usr/lib/libonnxruntime.so",
		EnvLogLevel:      "warn",
	}))

	assert.Equal(t, "127.0.0.1:7000", c.Server.Addr)
	assert.Equal(t, BackendOpenCV, c.Backend)
	assert.Equal(t, "s3://faces/d.onnx", c.Models.Detector)
	assert.Equal(t, Default().Models.Embedder, c.Models.Embedder)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", c.ONNXRuntime.SharedLibraryPath)
	assert.Equal(t, logrus.WarnLevel, c.Level())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: "server address"},
		{name: "body limit", mutate: func(c *Config) { c.Server.MaxBodyBytes = 0 }, wantErr: "max body bytes"},
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "log level"},
		{name: "no detector", mutate: func(c *Config) { c.Models.Detector = "" }, wantErr: "detector model"},
		{name: "no embedder", mutate: func(c *Config) { c.Models.Embedder = "" }, wantErr: "embedder model"},
		{name: "resampler", mutate: func(c *Config) { c.Resampler = "lanczos" }, wantErr: "resampler"},
		{name: "backend", mutate: func(c *Config) { c.Backend = "tflite" }, wantErr: "unknown backend"},
		{
			name:    "ort provider",
			mutate:  func(c *Config) { c.ONNXRuntime.Backend = "tpu" },
			wantErr: "onnxruntime",
		},
		{
			name: "opencv target",
			mutate: func(c *Config) {
				c.Backend = BackendOpenCV
				c.OpenCV.Target = "gpu"
			},
			wantErr: "opencv",
		},
		{
			name: "opencv ignored for onnxruntime",
			mutate: func(c *Config) {
				c.OpenCV.Target = "gpu"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
