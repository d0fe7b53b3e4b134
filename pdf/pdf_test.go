package pdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := NewCache(ttl)
	c.now = clock.Now
	return c, clock
}

// fakeRenderer returns a distinct document per call.
type fakeRenderer struct {
	calls atomic.Int32
	urls  chan string
	err   error
	gate  chan struct{}
}

func (r *fakeRenderer) Render(_ context.Context, url string) ([]byte, error) {
	n := r.calls.Add(1)
	if r.urls != nil {
		r.urls <- url
	}
	if r.gate != nil {
		<-r.gate
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte(fmt.Sprintf("%%PDF-render-%d", n)), nil
}

type passthrough struct{}

func (passthrough) Compress(data []byte) ([]byte, error) { return data, nil }

type fakeArchiver struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *fakeArchiver) WriteFile(_ context.Context, key string, _ string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return a.err
}

func TestCacheTTL(t *testing.T) {
	c, clock := newTestCache(time.Hour)
	c.Set("abc123", []byte("pdf"))

	data, ok := c.Get("abc123")
	assert.True(t, ok)
	assert.Equal(t, []byte("pdf"), data)

	clock.Advance(time.Hour - time.Second)
	_, ok = c.Get("abc123")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("abc123")
	assert.False(t, ok, "entry at TTL is expired")
	assert.Equal(t, 1, c.Len(), "expired entries stay until swept")
}

func TestCacheSweep(t *testing.T) {
	c, clock := newTestCache(time.Hour)
	c.Set("old", []byte("1"))
	clock.Advance(45 * time.Minute)
	c.Set("new", []byte("2"))
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestRunSweeperStops(t *testing.T) {
	c, clock := newTestCache(time.Millisecond)
	c.Set("x", []byte("1"))
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 10)
	done := make(chan struct{})
	go func() {
		c.RunSweeper(ctx, 5*time.Millisecond, func(n int) { swept <- n })
		close(done)
	}()

	assert.Equal(t, 1, <-swept)
	cancel()
	<-done
	assert.Zero(t, c.Len())
}

func newTestService(r Renderer, a Archiver) (*Service, *fakeClock) {
	cache, clock := newTestCache(time.Hour)
	opts := ServiceOptions{
		Renderer:   r,
		Compressor: passthrough{},
		Cache:      cache,
		BaseURL:    "http://127.0.0.1:3000/",
		Logger:     zerolog.Nop(),
	}
	if a != nil {
		opts.Archiver = a
	}
	return NewService(opts), clock
}

func TestGenerateCachesWithinTTL(t *testing.T) {
	r := &fakeRenderer{}
	s, clock := newTestService(r, nil)

	first, err := s.Generate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	clock.Advance(59 * time.Minute)
	second, err := s.Generate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Data, second.Data)
	assert.EqualValues(t, 1, r.calls.Load())

	clock.Advance(2 * time.Minute)
	third, err := s.Generate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.NotEqual(t, first.Data, third.Data)
	assert.EqualValues(t, 2, r.calls.Load())
}

func TestGenerateDemoAlias(t *testing.T) {
	r := &fakeRenderer{urls: make(chan string, 1)}
	s, _ := newTestService(r, nil)

	_, err := s.Generate(context.Background(), DemoAlias)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:3000/timesheet-demo?print=true", <-r.urls)

	res, err := s.Generate(context.Background(), DemoTarget)
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
}

func TestGenerateSingleFlight(t *testing.T) {
	r := &fakeRenderer{urls: make(chan string, 4), gate: make(chan struct{})}
	s, _ := newTestService(r, nil)

	var wg sync.WaitGroup
	results := make([]*Result, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Generate(context.Background(), "abc123")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	<-r.urls
	time.Sleep(50 * time.Millisecond)
	close(r.gate)
	wg.Wait()

	assert.EqualValues(t, 1, r.calls.Load())
	for _, res := range results {
		assert.Equal(t, results[0].Data, res.Data)
	}
}

func TestGenerateDetachedFromCaller(t *testing.T) {
	r := &fakeRenderer{}
	s, _ := newTestService(r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Generate(ctx, "abc123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Data)
}

func TestGenerateRenderFailure(t *testing.T) {
	r := &fakeRenderer{err: errors.New("net::ERR_CONNECTION_REFUSED")}
	s, _ := newTestService(r, nil)

	_, err := s.Generate(context.Background(), "abc123")
	assert.ErrorContains(t, err, "ERR_CONNECTION_REFUSED")
	assert.Zero(t, s.cache.Len())
}

func TestGenerateArchivesBestEffort(t *testing.T) {
	a := &fakeArchiver{err: errors.New("access denied")}
	s, _ := newTestService(&fakeRenderer{}, a)

	res, err := s.Generate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Data)
	assert.Equal(t, []string{"timesheets/abc123.pdf"}, a.keys)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "timesheet-demo", Normalize("86bczf1oqv"))
	assert.Equal(t, "timesheet-demo", Normalize("/86bczf1oqv"))
	assert.Equal(t, "abc123", Normalize("abc123"))
}
