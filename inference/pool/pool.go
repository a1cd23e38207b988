// Package pool - Fixed-size pool of resources that are not safe for concurrent use.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultPoolSize is used when a size of zero or less is requested.
	DefaultPoolSize = 4
	// DefaultAcquireTimeout bounds how long Acquire waits for a free resource.
	DefaultAcquireTimeout = 5 * time.Second
)

var (
	// ErrClosed is returned by Acquire once the pool is closed.
	ErrClosed = errors.New("pool is closed")
	// ErrAcquireTimeout is returned when no resource became free in time.
	ErrAcquireTimeout = errors.New("timeout waiting for available resource")
)

// Pool hands out each of its resources to one caller at a time.
type Pool[T any] struct {
	items   chan T
	size    int
	timeout time.Duration
	destroy func(T)

	mu      sync.RWMutex
	closed  bool
	metrics Metrics
}

// Metrics describes pool usage.
type Metrics struct {
	Size            int           `json:"size"`
	InUse           int           `json:"in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	WaitTime        time.Duration `json:"wait_time_ns"`
}

// New creates a pool of size resources built by create.
//
// Arguments:
//   - size: The number of resources. Zero or less selects DefaultPoolSize.
//   - timeout: The longest Acquire waits. Zero or less selects DefaultAcquireTimeout.
//   - create: Builds resource i.
//   - destroy: Releases a resource when the pool closes.
//
// Returns:
//   - *Pool[T]: The pool.
//   - error: The first creation error. Resources built before it are destroyed.
func New[T any](size int, timeout time.Duration, create func(i int) (T, error), destroy func(T)) (*Pool[T], error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	p := &Pool[T]{
		items:   make(chan T, size),
		size:    size,
		timeout: timeout,
		destroy: destroy,
	}
	p.metrics.Size = size

	for i := 0; i < size; i++ {
		item, err := create(i)
		if err != nil {
			p.Close()
			return nil, errors.Wrapf(err, "failed to initialize resource %d", i)
		}
		p.items <- item
	}

	return p, nil
}

// Acquire takes a resource, waiting until one is free, the timeout passes or ctx is done.
//
// Arguments:
//   - ctx: The context bounding the wait.
//
// Returns:
//   - T: The resource. It must be given back with Release.
//   - error: ErrClosed, ErrAcquireTimeout or the context error.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return zero, ErrClosed
	}

	start := time.Now()
	defer func() {
		p.mu.Lock()
		p.metrics.WaitTime += time.Since(start)
		p.mu.Unlock()
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case item, ok := <-p.items:
		if !ok {
			return zero, ErrClosed
		}
		p.mu.Lock()
		p.metrics.InUse++
		p.metrics.TotalAcquired++
		p.mu.Unlock()
		return item, nil
	case <-timer.C:
		p.mu.Lock()
		p.metrics.AcquireFailures++
		p.mu.Unlock()
		return zero, ErrAcquireTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Release gives a resource back. Resources released after Close are destroyed.
func (p *Pool[T]) Release(item T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.InUse--
	p.metrics.TotalReleased++

	if p.closed {
		p.destroyItem(item)
		return
	}
	p.items <- item
}

// Close destroys the idle resources. Resources still acquired are destroyed on Release.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.items)

	for item := range p.items {
		p.destroyItem(item)
	}
}

// Metrics returns a snapshot of the pool usage.
func (p *Pool[T]) Metrics() Metrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}

func (p *Pool[T]) destroyItem(item T) {
	if p.destroy != nil {
		p.destroy(item)
	}
}
