package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SAM252003/Nehoris/internal/provider"
	"github.com/SAM252003/Nehoris/internal/resilience"
)

// stubProvider scripts responses per prompt.
type stubProvider struct {
	name  string
	calls atomic.Int64
	fn    func(ctx context.Context, prompt string) (string, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Call(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	s.calls.Add(1)
	return s.fn(ctx, prompt)
}

func newTestPool(cfg PoolConfig, provs ...provider.Provider) *Pool {
	reg := provider.NewRegistry()
	for _, p := range provs {
		reg.Register(p)
	}
	if cfg.Retry == (resilience.RetryConfig{}) {
		cfg.Retry = resilience.RetryConfig{MaxRetries: 0, BackoffBase: 1}
	}
	breakers := resilience.NewRegistry(resilience.DefaultBreakerConfig())
	return NewPool(cfg, reg, breakers)
}

func echoProvider(name string) *stubProvider {
	return &stubProvider{name: name, fn: func(ctx context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	}}
}

func TestRunBatchPreservesOrder(t *testing.T) {
	// Later requests finish first; results must still come back by index.
	slow := &stubProvider{name: "slow", fn: func(ctx context.Context, prompt string) (string, error) {
		if prompt == "first" {
			time.Sleep(50 * time.Millisecond)
		}
		return prompt, nil
	}}
	pool := newTestPool(PoolConfig{Workers: 4, BatchTimeout: 5 * time.Second}, slow)

	reqs := []Request{
		{Provider: "slow", Prompt: "first"},
		{Provider: "slow", Prompt: "second"},
		{Provider: "slow", Prompt: "third"},
	}
	batch, err := pool.RunBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if batch.Results[i].Index != i || batch.Results[i].Response != want {
			t.Errorf("result[%d] = %+v, want response %q", i, batch.Results[i], want)
		}
	}
}

func TestRunBatchBoundsConcurrency(t *testing.T) {
	var current, peak atomic.Int64
	p := &stubProvider{name: "p", fn: func(ctx context.Context, prompt string) (string, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return "ok", nil
	}}
	pool := newTestPool(PoolConfig{Workers: 2, BatchTimeout: 5 * time.Second}, p)

	reqs := make([]Request, 8)
	for i := range reqs {
		reqs[i] = Request{Provider: "p", Prompt: fmt.Sprintf("q%d", i)}
	}
	if _, err := pool.RunBatch(context.Background(), reqs); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestRunBatchFailuresAreData(t *testing.T) {
	p := &stubProvider{name: "p", fn: func(ctx context.Context, prompt string) (string, error) {
		if prompt == "bad" {
			return "", errors.New("upstream exploded")
		}
		return "ok", nil
	}}
	pool := newTestPool(PoolConfig{Workers: 2, BatchTimeout: 5 * time.Second}, p)

	batch, err := pool.RunBatch(context.Background(), []Request{
		{Provider: "p", Prompt: "good"},
		{Provider: "p", Prompt: "bad"},
		{Provider: "p", Prompt: "good"},
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if batch.Results[1].Failed == false || !strings.Contains(batch.Results[1].Err, "exploded") {
		t.Errorf("failing request should be captured: %+v", batch.Results[1])
	}
	if batch.Results[0].Failed || batch.Results[2].Failed {
		t.Error("healthy requests must not be affected by a failing one")
	}
	if batch.Stats.Succeeded != 2 || batch.Stats.Failed != 1 {
		t.Errorf("stats = %+v", batch.Stats)
	}
}

func TestRunBatchDeadline(t *testing.T) {
	block := &stubProvider{name: "p", fn: func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	pool := newTestPool(PoolConfig{Workers: 1, BatchTimeout: 60 * time.Millisecond}, block)

	start := time.Now()
	batch, err := pool.RunBatch(context.Background(), []Request{
		{Provider: "p", Prompt: "a"},
		{Provider: "p", Prompt: "b"}, // never gets a worker slot
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("batch did not respect deadline, took %v", elapsed)
	}
	for i, r := range batch.Results {
		if !r.Failed || !r.TimedOut {
			t.Errorf("result[%d] should be a timeout: %+v", i, r)
		}
	}
}

func TestRunBatchUnknownProvider(t *testing.T) {
	pool := newTestPool(PoolConfig{Workers: 1, BatchTimeout: time.Second}, echoProvider("known"))
	batch, err := pool.RunBatch(context.Background(), []Request{{Provider: "nope", Prompt: "x"}})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if !batch.Results[0].Failed || batch.Results[0].TimedOut {
		t.Errorf("unknown provider should fail without timing out: %+v", batch.Results[0])
	}
}

func TestRunBatchCache(t *testing.T) {
	p := echoProvider("p")
	pool := newTestPool(PoolConfig{Workers: 2, BatchTimeout: time.Second, CacheTTL: time.Minute}, p)

	req := Request{Provider: "p", Prompt: "same question", Temperature: 0.7}
	first, err := pool.RunBatch(context.Background(), []Request{req})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if first.Results[0].CacheHit {
		t.Error("first call must not be a cache hit")
	}

	second, err := pool.RunBatch(context.Background(), []Request{req})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if !second.Results[0].CacheHit {
		t.Error("identical request should hit the cache")
	}
	if second.Results[0].Response != first.Results[0].Response {
		t.Error("cached response should match the original")
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}

	// A different temperature is a different cache key.
	other := req
	other.Temperature = 0.2
	third, _ := pool.RunBatch(context.Background(), []Request{other})
	if third.Results[0].CacheHit {
		t.Error("different temperature must miss the cache")
	}
}

func TestRunBatchClosedPool(t *testing.T) {
	pool := newTestPool(PoolConfig{Workers: 1, BatchTimeout: time.Second}, echoProvider("p"))
	pool.Close()
	if _, err := pool.RunBatch(context.Background(), []Request{{Provider: "p", Prompt: "x"}}); err == nil {
		t.Error("closed pool should refuse batches")
	}
}

func TestResponseCacheExpiry(t *testing.T) {
	c := newResponseCache(time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	req := Request{Provider: "p", Prompt: "q"}
	c.set(req, "answer")
	if _, ok := c.get(req); !ok {
		t.Fatal("fresh entry should be served")
	}
	clock = clock.Add(2 * time.Minute)
	if _, ok := c.get(req); ok {
		t.Error("expired entry must not be served")
	}
}
