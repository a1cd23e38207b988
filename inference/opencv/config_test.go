package opencv

import (
	"testing"
	"time"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "zero values", mutate: func(c *Config) { *c = Config{} }},
		{name: "cuda", mutate: func(c *Config) { c.Backend, c.Target = "cuda", "cuda_fp16" }},
		{name: "negative pool", mutate: func(c *Config) { c.PoolSize = -1 }, wantErr: "pool size"},
		{name: "negative timeout", mutate: func(c *Config) { c.AcquireTimeout = -time.Second }, wantErr: "acquire timeout"},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "tpu" }, wantErr: "dnn backend"},
		{name: "unknown target", mutate: func(c *Config) { c.Target = "gpu" }, wantErr: "dnn target"},
		{
			name:    "empty outputs",
			mutate:  func(c *Config) { c.Outputs = map[string][]string{"detector": {}} },
			wantErr: "empty output list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
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

func TestDefaultConfigDetectorOutputs(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, []string{"scores", "boxes"}, c.Outputs["detector"])
	assert.NotContains(t, c.Outputs, "embedder")
}

func TestNewLoaderInvalidConfig(t *testing.T) {
	_, err := NewLoader(Config{Backend: "tpu"})
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrModelLoad)
}

func TestLoadEmptyDefinition(t *testing.T) {
	l, err := NewLoader(DefaultConfig())
	require.NoError(t, err)

	_, err = l.Load("detector", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, inference.ErrModelLoad)
}

func TestFloat32Bytes(t *testing.T) {
	assert.Nil(t, float32Bytes(nil))
	assert.Len(t, float32Bytes([]float32{1, 2, 3}), 12)
}
