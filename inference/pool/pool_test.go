package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resource struct {
	id        int
	destroyed bool
}

func newResources(t *testing.T, size int, timeout time.Duration) (*Pool[*resource], *[]*resource) {
	t.Helper()

	var mu sync.Mutex
	created := []*resource{}

	p, err := New(size, timeout, func(i int) (*resource, error) {
		mu.Lock()
		defer mu.Unlock()
		r := &resource{id: i}
		created = append(created, r)
		return r, nil
	}, func(r *resource) {
		r.destroyed = true
	})
	require.NoError(t, err)

	return p, &created
}

func TestAcquireRelease(t *testing.T) {
	p, created := newResources(t, 2, time.Second)
	defer p.Close()

	assert.Len(t, *created, 2)

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.id, b.id)

	m := p.Metrics()
	assert.Equal(t, 2, m.Size)
	assert.Equal(t, 2, m.InUse)
	assert.Equal(t, int64(2), m.TotalAcquired)

	p.Release(a)
	p.Release(b)

	m = p.Metrics()
	assert.Equal(t, 0, m.InUse)
	assert.Equal(t, int64(2), m.TotalReleased)
}

func TestAcquireTimeout(t *testing.T) {
	p, _ := newResources(t, 1, 20*time.Millisecond)
	defer p.Close()

	r, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(r)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrAcquireTimeout)
	assert.Equal(t, int64(1), p.Metrics().AcquireFailures)
}

func TestAcquireContextCanceled(t *testing.T) {
	p, _ := newResources(t, 1, time.Minute)
	defer p.Close()

	r, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseDestroysResources(t *testing.T) {
	p, created := newResources(t, 3, time.Second)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.Close()
	p.Close()

	for _, r := range *created {
		if r == held {
			assert.False(t, r.destroyed)
			continue
		}
		assert.True(t, r.destroyed)
	}

	p.Release(held)
	assert.True(t, held.destroyed)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewCreateFailure(t *testing.T) {
	destroyed := 0
	boom := errors.New("boom")

	_, err := New(3, time.Second, func(i int) (int, error) {
		if i == 2 {
			return 0, boom
		}
		return i, nil
	}, func(int) {
		destroyed++
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, destroyed)
}

func TestNewDefaults(t *testing.T) {
	p, err := New(0, 0, func(i int) (int, error) { return i, nil }, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, DefaultPoolSize, p.Metrics().Size)
	assert.Equal(t, DefaultAcquireTimeout, p.timeout)
}

func TestConcurrentUse(t *testing.T) {
	p, _ := newResources(t, 2, time.Second)
	defer p.Close()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		active = map[int]bool{}
	)

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := p.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			assert.False(t, active[r.id], "resource handed out twice")
			active[r.id] = true
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active[r.id] = false
			mu.Unlock()

			p.Release(r)
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(16), p.Metrics().TotalReleased)
}
