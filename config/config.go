// Package config - Configuration of the face inference service.
package config

import (
	"os"
	"time"

	"github.com/nvr-ai/go-faceml/images"
	"github.com/nvr-ai/go-faceml/inference/opencv"
	"github.com/nvr-ai/go-faceml/inference/providers"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Backend names the runtime that compiles and runs the model graphs.
type Backend string

const (
	// BackendONNXRuntime runs the graphs with ONNX Runtime.
	BackendONNXRuntime Backend = "onnxruntime"
	// BackendOpenCV runs the graphs with the OpenCV DNN module.
	BackendOpenCV Backend = "opencv"
)

// Environment variables that override file and default values.
const (
	EnvAddr          = "FACEML_ADDR"
	EnvBackend       = "FACEML_BACKEND"
	EnvDetectorModel = "FACEML_DETECTOR_MODEL"
	EnvEmbedderModel = "FACEML_EMBEDDER_MODEL"
	EnvORTLibrary    = "FACEML_ORT_LIB"
	EnvLogLevel      = "FACEML_LOG_LEVEL"
)

// Config is the service configuration.
type Config struct {
	// Server holds the HTTP listener settings.
	Server ServerConfig `json:"server"      yaml:"server"`
	// LogLevel is a logrus level name.
	LogLevel string `json:"logLevel"    yaml:"logLevel"`
	// Backend selects the inference runtime.
	Backend Backend `json:"backend"     yaml:"backend"`
	// Models locates the model definitions.
	Models ModelsConfig `json:"models"      yaml:"models"`
	// Resampler selects the image resize implementation.
	Resampler images.ResamplerName `json:"resampler"   yaml:"resampler"`
	// ONNXRuntime configures the onnxruntime backend.
	ONNXRuntime providers.Config `json:"onnxruntime" yaml:"onnxruntime"`
	// OpenCV configures the opencv backend.
	OpenCV opencv.Config `json:"opencv"      yaml:"opencv"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr         string        `json:"addr"         yaml:"addr"`
	ReadTimeout  time.Duration `json:"readTimeout"  yaml:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout  time.Duration `json:"idleTimeout"  yaml:"idleTimeout"`
	// MaxBodyBytes caps the size of an uploaded image.
	MaxBodyBytes int64 `json:"maxBodyBytes" yaml:"maxBodyBytes"`
}

// ModelsConfig locates the model definitions. Each location is a local path or s3://bucket/key.
type ModelsConfig struct {
	Detector string `json:"detector" yaml:"detector"`
	Embedder string `json:"embedder" yaml:"embedder"`
	// S3Region is the AWS region used for s3:// locations.
	S3Region string `json:"s3Region" yaml:"s3Region"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
			MaxBodyBytes: 32 << 20,
		},
		LogLevel:    logrus.InfoLevel.String(),
		Backend:     BackendONNXRuntime,
		Models:      ModelsConfig{Detector: "assets/version-RFB-320.onnx", Embedder: "assets/facerec.onnx"},
		Resampler:   images.ResamplerImaging,
		ONNXRuntime: providers.DefaultConfig(),
		OpenCV:      opencv.DefaultConfig(),
	}
}

// Load builds the configuration from the defaults, the YAML file at path and the environment.
//
// Arguments:
//   - path: The YAML file. Empty skips the file.
//
// Returns:
//   - Config: The validated configuration.
//   - error: An error if the file cannot be read or the result is invalid.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "error reading config file")
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, errors.Wrapf(err, "error parsing config file %s", path)
		}
	}

	c.ApplyEnv(os.LookupEnv)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ApplyEnv overrides fields with the FACEML_* variables that are set and non-empty.
//
// Arguments:
//   - lookup: The environment lookup, os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(name string, value *string) {
		if v, ok := lookup(name); ok && v != "" {
			*value = v
		}
	}

	backend := string(c.Backend)
	set(EnvAddr, &c.Server.Addr)
	set(EnvBackend, &backend)
	set(EnvDetectorModel, &c.Models.Detector)
	set(EnvEmbedderModel, &c.Models.Embedder)
	set(EnvORTLibrary, &c.ONNXRuntime.SharedLibraryPath)
	set(EnvLogLevel, &c.LogLevel)
	c.Backend = Backend(backend)
}

// Validate checks the configuration.
//
// Returns:
//   - error: An error describing the first invalid field.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server address must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.Errorf("server max body bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log level")
	}
	if c.Models.Detector == "" {
		return errors.New("detector model location must not be empty")
	}
	if c.Models.Embedder == "" {
		return errors.New("embedder model location must not be empty")
	}
	if _, err := images.NewResampler(c.Resampler); err != nil {
		return err
	}

	switch c.Backend {
	case BackendONNXRuntime:
		return errors.Wrap(c.ONNXRuntime.Validate(), "onnxruntime")
	case BackendOpenCV:
		return errors.Wrap(c.OpenCV.Validate(), "opencv")
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
