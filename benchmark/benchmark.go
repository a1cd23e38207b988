package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/models/facerec"
	"github.com/nvr-ai/go-faceml/models/postprocess"
	"github.com/nvr-ai/go-faceml/pipeline"
	"github.com/pkg/errors"
)

// Pipelines runs the face pipelines. *pipeline.Engine implements it.
type Pipelines interface {
	Detect(ctx context.Context, data []byte) (postprocess.Result, error)
	Embed(ctx context.Context, data []byte) (facerec.Embedding, error)
}

// Scenario defines one benchmark run.
type Scenario struct {
	Name        string             `json:"name"`
	Operation   pipeline.Operation `json:"operation"`
	Iterations  int                `json:"iterations"`
	WarmupRuns  int                `json:"warmup_runs"`
	Concurrency int                `json:"concurrency"`
}

// Validate checks the scenario.
func (s Scenario) Validate() error {
	if s.Operation != pipeline.OperationDetect && s.Operation != pipeline.OperationEmbed {
		return errors.Errorf("scenario %q: unknown operation %q", s.Name, s.Operation)
	}
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %q: iterations must be positive", s.Name)
	}
	if s.WarmupRuns < 0 || s.Concurrency < 0 {
		return errors.Errorf("scenario %q: warmup runs and concurrency must not be negative", s.Name)
	}
	return nil
}

// DefaultScenarios runs both pipelines serially and with one worker per CPU.
func DefaultScenarios(iterations int) []Scenario {
	workers := runtime.NumCPU()
	return []Scenario{
		{Name: "detect-serial", Operation: pipeline.OperationDetect, Iterations: iterations, WarmupRuns: 5, Concurrency: 1},
		{Name: "detect-parallel", Operation: pipeline.OperationDetect, Iterations: iterations, WarmupRuns: 5, Concurrency: workers},
		{Name: "embed-serial", Operation: pipeline.OperationEmbed, Iterations: iterations, WarmupRuns: 5, Concurrency: 1},
		{Name: "embed-parallel", Operation: pipeline.OperationEmbed, Iterations: iterations, WarmupRuns: 5, Concurrency: workers},
	}
}

// Suite manages and executes benchmark scenarios
type Suite struct {
	pipelines Pipelines
	corpus    [][]byte
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - pipelines: The pipelines under test.
//   - corpus: The encoded images, used round-robin.
//
// Returns:
//   - *Suite: The benchmark suite.
//   - error: An error if the corpus is empty.
func NewSuite(pipelines Pipelines, corpus [][]byte) (*Suite, error) {
	if len(corpus) == 0 {
		return nil, errors.New("benchmark corpus is empty")
	}
	return &Suite{pipelines: pipelines, corpus: corpus}, nil
}

// RunScenario executes a single benchmark scenario.
//
// Warmup runs are not measured. Failed runs count as errors, except detections that found no face.
//
// Arguments:
//   - ctx: Cancel to stop the scenario early.
//   - scenario: The scenario.
//
// Returns:
//   - *PerformanceMetrics: The measured metrics, also kept for Results.
//   - error: An error if the scenario is invalid or ctx is done.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	workers := scenario.Concurrency
	if workers == 0 {
		workers = 1
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		_, _ = s.process(ctx, scenario.Operation, s.corpus[i%len(s.corpus)])
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	var (
		mu      sync.Mutex
		metrics = &PerformanceMetrics{Scenario: scenario, Timestamp: time.Now(), NumCPU: runtime.NumCPU()}
		total   time.Duration
		next    = make(chan int)
		wg      sync.WaitGroup
	)

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				runStart := time.Now()
				found, err := s.process(ctx, scenario.Operation, s.corpus[i%len(s.corpus)])
				elapsed := time.Since(runStart)

				mu.Lock()
				total += elapsed
				if metrics.MinLatency == 0 || elapsed < metrics.MinLatency {
					metrics.MinLatency = elapsed
				}
				if elapsed > metrics.MaxLatency {
					metrics.MaxLatency = elapsed
				}
				if err != nil {
					metrics.Errors++
				} else if found {
					metrics.FaceCount++
				}
				mu.Unlock()
			}
		}()
	}

	var ctxErr error
feed:
	for i := 0; i < scenario.Iterations; i++ {
		select {
		case next <- i:
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		}
	}
	close(next)
	wg.Wait()

	if ctxErr != nil {
		return nil, ctxErr
	}

	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics.AvgLatency = total / time.Duration(scenario.Iterations)
	metrics.FramesPerSecond = float64(scenario.Iterations) / metrics.TotalDuration.Seconds()
	metrics.ErrorRate = float64(metrics.Errors) / float64(scenario.Iterations)
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}

	s.mu.Lock()
	s.results = append(s.results, *metrics)
	s.mu.Unlock()

	return metrics, nil
}

// process runs one pipeline call and reports whether a face was found.
func (s *Suite) process(ctx context.Context, op pipeline.Operation, data []byte) (bool, error) {
	if op == pipeline.OperationEmbed {
		_, err := s.pipelines.Embed(ctx, data)
		return false, err
	}

	_, err := s.pipelines.Detect(ctx, data)
	if errors.Is(err, inference.ErrNoFaceDetected) {
		return false, nil
	}
	return err == nil, err
}

// RunAll executes the scenarios in order and stops at the first failure.
func (s *Suite) RunAll(ctx context.Context, scenarios []Scenario) error {
	for _, scenario := range scenarios {
		if _, err := s.RunScenario(ctx, scenario); err != nil {
			return errors.Wrapf(err, "scenario %s", scenario.Name)
		}
	}
	return nil
}

// Results returns all benchmark results
func (s *Suite) Results() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]PerformanceMetrics, len(s.results))
	copy(results, s.results)
	return results
}

// SaveResults writes the results as JSON and a CSV summary into dir.
//
// Returns:
//   - []string: The paths written.
//   - error: An error if a file cannot be written.
func (s *Suite) SaveResults(dir string) ([]string, error) {
	results := s.Results()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(dir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(dir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return nil, errors.Wrap(err, "failed to save summary CSV")
	}

	return []string{resultsFile, summaryFile}, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	header := "Scenario,Operation,Concurrency,FPS,Total_Duration_ms,Avg_Latency_ms,Faces,Error_Rate\n"
	if _, err := file.WriteString(header); err != nil {
		return err
	}

	for _, result := range results {
		line := fmt.Sprintf("%s,%s,%d,%.2f,%.2f,%.3f,%d,%.4f\n",
			result.Scenario.Name,
			result.Scenario.Operation,
			result.Scenario.Concurrency,
			result.FramesPerSecond,
			float64(result.TotalDuration.Nanoseconds())/1e6,
			float64(result.AvgLatency.Nanoseconds())/1e6,
			result.FaceCount,
			result.ErrorRate,
		)
		if _, err := file.WriteString(line); err != nil {
			return err
		}
	}

	return nil
}
