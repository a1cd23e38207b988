// Command faceml serves and runs the face detection and embedding pipelines.
//
// Usage:
//
//	faceml [-config faceml.yaml] serve
//	faceml [-config faceml.yaml] detect <image file or directory>
//	faceml [-config faceml.yaml] embed <image file or directory>
//	faceml [-config faceml.yaml] [-iterations 100] [-output-dir benchmarks] bench <image file or directory>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-faceml/benchmark"
	"github.com/nvr-ai/go-faceml/config"
	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models/postprocess"
	"github.com/nvr-ai/go-faceml/server"
	"github.com/nvr-ai/go-faceml/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// fileResult is one line of detect or embed output.
type fileResult struct {
	Path      string              `json:"path"`
	Found     *bool               `json:"found,omitempty"`
	Face      *postprocess.Result `json:"face,omitempty"`
	Dimension int                 `json:"dimension,omitempty"`
	Embedding []float32           `json:"embedding,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// benchOptions configures the bench command.
type benchOptions struct {
	iterations int
	outputDir  string
}

func main() {
	var (
		configPath string
		bench      benchOptions
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.IntVar(&bench.iterations, "iterations", 100, "Measured runs per benchmark scenario")
	flag.StringVar(&bench.outputDir, "output-dir", "benchmarks", "Output directory for benchmark results")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] serve|detect <path>|embed <path>|bench <path>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, bench, flag.Args()); err != nil {
		stop()
		log.WithError(err).Fatal("faceml failed")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger, bench benchOptions, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	command := args[0]
	switch command {
	case "serve":
		if len(args) != 1 {
			return errors.New("serve takes no arguments")
		}
	case "detect", "embed", "bench":
		if len(args) != 2 {
			return errors.Errorf("%s takes exactly one path", command)
		}
	default:
		return errors.Errorf("unknown command %q", command)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if command == "serve" {
		return server.New(a.engine, a.registry, a.profiler, log, cfg.Server).Run(ctx)
	}

	files, err := util.LoadImageFiles(args[1])
	if err != nil {
		return errors.Wrap(err, "error reading images")
	}

	if command == "bench" {
		return runBenchmark(ctx, a, log, bench, files)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, file := range files {
		result := fileResult{Path: file.Path}

		if command == "detect" {
			face, err := a.engine.Detect(ctx, file.Data)
			found := err == nil
			switch {
			case err == nil:
				result.Face = &face
				result.Found = &found
			case errors.Is(err, inference.ErrNoFaceDetected):
				result.Found = &found
			default:
				result.Error = err.Error()
			}
		} else {
			embedding, err := a.engine.Embed(ctx, file.Data)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Dimension = len(embedding)
				result.Embedding = embedding
			}
		}

		if err := enc.Encode(result); err != nil {
			return errors.Wrap(err, "error writing result")
		}
	}

	return nil
}

func runBenchmark(ctx context.Context, a *app, log *logrus.Logger, opts benchOptions, files []util.ImageFile) error {
	corpus := make([][]byte, len(files))
	for i, file := range files {
		corpus[i] = file.Data
	}

	suite, err := benchmark.NewSuite(a.engine, corpus)
	if err != nil {
		return err
	}

	for _, scenario := range benchmark.DefaultScenarios(opts.iterations) {
		metrics, err := suite.RunScenario(ctx, scenario)
		if err != nil {
			return errors.Wrapf(err, "scenario %s", scenario.Name)
		}
		log.WithFields(logrus.Fields{
			"scenario":    scenario.Name,
			"fps":         fmt.Sprintf("%.2f", metrics.FramesPerSecond),
			"avg_latency": metrics.AvgLatency,
			"error_rate":  metrics.ErrorRate,
		}).Info("scenario completed")
	}

	paths, err := suite.SaveResults(opts.outputDir)
	if err != nil {
		return err
	}
	log.WithField("files", paths).Info("benchmark results saved")

	return nil
}
