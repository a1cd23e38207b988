// Package profiler - Per-stage timing statistics for the inference pipelines.
package profiler

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/go-faceml/inference"
	"github.com/nvr-ai/go-faceml/pipeline"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
)

// TimeTracker tracks timing statistics of one pipeline stage.
type TimeTracker struct {
	op        pipeline.Operation
	stage     pipeline.Stage
	mu        sync.Mutex
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
	errors    int64
}

func (t *TimeTracker) record(d time.Duration, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 || d < t.minTime {
		t.minTime = d
	}
	if d > t.maxTime {
		t.maxTime = d
	}
	t.totalTime += d
	t.count++
	if failed {
		t.errors++
	}
}

// StageStats is a snapshot of the statistics of one pipeline stage.
type StageStats struct {
	Operation pipeline.Operation `json:"operation"`
	Stage     pipeline.Stage     `json:"stage"`
	Count     int64              `json:"count"`
	Errors    int64              `json:"errors"`
	Min       time.Duration      `json:"min_ns"`
	Max       time.Duration      `json:"max_ns"`
	Avg       time.Duration      `json:"avg_ns"`
	Total     time.Duration      `json:"total_ns"`
}

// RuntimeStats is a snapshot of process level metrics.
type RuntimeStats struct {
	Uptime     time.Duration `json:"uptime_ns"`
	Goroutines int           `json:"goroutines"`
	HeapAlloc  uint64        `json:"heap_alloc_bytes"`
	NumGC      uint32        `json:"num_gc"`
}

// Snapshot is the report served by the metrics endpoint.
type Snapshot struct {
	Runtime RuntimeStats `json:"runtime"`
	Stages  []StageStats `json:"stages"`
}

// StageProfiler is a pipeline.Observer that aggregates stage timings.
//
// @example
// p := NewStageProfiler()
// engine, err := pipeline.NewEngine(registry, args, pipeline.WithObserver(p))
// fmt.Println(p.Snapshot().Stages)
type StageProfiler struct {
	trackers  cmap.ConcurrentMap[string, *TimeTracker]
	startTime time.Time
}

var _ pipeline.Observer = (*StageProfiler)(nil)

// NewStageProfiler creates a new profiler with no recorded stages.
//
// Returns:
// - A ready StageProfiler.
func NewStageProfiler() *StageProfiler {
	return &StageProfiler{
		trackers:  cmap.New[*TimeTracker](),
		startTime: time.Now(),
	}
}

// ObserveStage implements pipeline.Observer.
func (p *StageProfiler) ObserveStage(op pipeline.Operation, stage pipeline.Stage, d time.Duration, err error) {
	key := string(op) + "/" + string(stage)

	tracker, ok := p.trackers.Get(key)
	if !ok {
		tracker = &TimeTracker{op: op, stage: stage}
		if !p.trackers.SetIfAbsent(key, tracker) {
			if existing, ok := p.trackers.Get(key); ok {
				tracker = existing
			}
		}
	}
	// A detection without a face is an outcome, not a failure.
	tracker.record(d, err != nil && !errors.Is(err, inference.ErrNoFaceDetected))
}

// Snapshot returns the current statistics, ordered by operation and then by pipeline stage order.
//
// Returns:
// - A point-in-time Snapshot.
func (p *StageProfiler) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := Snapshot{
		Runtime: RuntimeStats{
			Uptime:     time.Since(p.startTime),
			Goroutines: runtime.NumGoroutine(),
			HeapAlloc:  mem.HeapAlloc,
			NumGC:      mem.NumGC,
		},
		Stages: make([]StageStats, 0, p.trackers.Count()),
	}

	for _, tracker := range p.trackers.Items() {
		tracker.mu.Lock()
		stats := StageStats{
			Operation: tracker.op,
			Stage:     tracker.stage,
			Count:     tracker.count,
			Errors:    tracker.errors,
			Min:       tracker.minTime,
			Max:       tracker.maxTime,
			Total:     tracker.totalTime,
		}
		if tracker.count > 0 {
			stats.Avg = tracker.totalTime / time.Duration(tracker.count)
		}
		tracker.mu.Unlock()

		snap.Stages = append(snap.Stages, stats)
	}

	sort.Slice(snap.Stages, func(i, j int) bool {
		a, b := snap.Stages[i], snap.Stages[j]
		if a.Operation != b.Operation {
			return a.Operation < b.Operation
		}
		return stageOrder(a.Stage) < stageOrder(b.Stage)
	})

	return snap
}

// Reset drops every recorded statistic.
func (p *StageProfiler) Reset() {
	p.trackers.Clear()
}

func stageOrder(stage pipeline.Stage) int {
	for i, s := range pipeline.Stages {
		if s == stage {
			return i
		}
	}
	return len(pipeline.Stages)
}
