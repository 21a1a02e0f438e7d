// Package dispatch fans a batch of prompt requests out to providers over a
// bounded worker pool and fans the results back in, preserving input order
// regardless of completion order. Every outbound call is wrapped by the
// resilience layer; the whole batch runs under one wall-clock deadline and
// requests still pending at the deadline are recorded as timeout results
// rather than blocking the batch.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/SAM252003/Nehoris/internal/logging"
	"github.com/SAM252003/Nehoris/internal/provider"
	"github.com/SAM252003/Nehoris/internal/resilience"
)

// ErrDeadline marks a request that was still pending when the batch
// deadline elapsed.
var ErrDeadline = errors.New("batch deadline exceeded")

// Request is one prompt to run against one provider.
type Request struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature"`
	Prompt      string  `json:"prompt"`
}

// Result is the outcome for one request. Failures are captured as data so
// one failing prompt never aborts a batch.
type Result struct {
	Index    int           `json:"index"`
	Response string        `json:"response"`
	Provider string        `json:"provider"`
	Elapsed  time.Duration `json:"elapsed"`
	Failed   bool          `json:"failed"`
	TimedOut bool          `json:"timed_out"`
	CacheHit bool          `json:"cache_hit"`
	Err      string        `json:"error,omitempty"`
}

// BatchStats summarizes one RunBatch call.
type BatchStats struct {
	TotalRequests int           `json:"total_requests"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	CacheHits     int           `json:"cache_hits"`
	TotalTime     time.Duration `json:"total_time"`
	AvgTime       time.Duration `json:"avg_time"`
	Throughput    float64       `json:"throughput"` // requests per second of wall time
}

// BatchResult pairs the ordered results with batch stats.
type BatchResult struct {
	Results []Result   `json:"results"`
	Stats   BatchStats `json:"stats"`
}

// PoolConfig tunes the dispatch pool.
type PoolConfig struct {
	Workers      int           // max concurrent upstream calls
	BatchTimeout time.Duration // wall-clock deadline for one batch
	CacheTTL     time.Duration // 0 disables the response cache
	Retry        resilience.RetryConfig
}

// DefaultPoolConfig keeps concurrency low to respect provider rate limits.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:      3,
		BatchTimeout: 3 * time.Minute,
		CacheTTL:     30 * time.Minute,
		Retry:        resilience.DefaultRetryConfig(),
	}
}

// Pool executes provider call batches. Safe for concurrent use; the worker
// bound applies across all in-flight batches of this pool.
type Pool struct {
	config    PoolConfig
	providers *provider.Registry
	breakers  *resilience.Registry
	sem       *semaphore.Weighted
	cache     *responseCache

	mu     sync.Mutex
	closed bool
}

// NewPool builds a pool over explicit provider and breaker registries.
func NewPool(config PoolConfig, providers *provider.Registry, breakers *resilience.Registry) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultPoolConfig().Workers
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = DefaultPoolConfig().BatchTimeout
	}
	p := &Pool{
		config:    config,
		providers: providers,
		breakers:  breakers,
		sem:       semaphore.NewWeighted(int64(config.Workers)),
	}
	if config.CacheTTL > 0 {
		p.cache = newResponseCache(config.CacheTTL)
	}
	return p
}

// Close refuses new batch submissions. In-flight calls finish normally.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// RunBatch executes all requests and returns results ordered by request
// index. Requests that never got a worker slot before the deadline come
// back as timeout results; completed results are always kept.
func (p *Pool) RunBatch(ctx context.Context, reqs []Request) (BatchResult, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return BatchResult{}, errors.New("dispatch pool is closed")
	}
	p.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.config.BatchTimeout)
	defer cancel()

	results := make([]Result, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			if err := p.sem.Acquire(ctx, 1); err != nil {
				// Deadline hit while queued: record, don't block.
				results[i] = Result{
					Index:    i,
					Provider: req.Provider,
					Elapsed:  time.Since(start),
					Failed:   true,
					TimedOut: true,
					Err:      ErrDeadline.Error(),
				}
				return
			}
			defer p.sem.Release(1)
			results[i] = p.execute(ctx, i, req)
		}(i, req)
	}
	wg.Wait()

	stats := buildStats(results, time.Since(start))
	logging.Dispatch("batch done: total=%d ok=%d failed=%d cache_hits=%d wall=%v",
		stats.TotalRequests, stats.Succeeded, stats.Failed, stats.CacheHits, stats.TotalTime)
	return BatchResult{Results: results, Stats: stats}, nil
}

func (p *Pool) execute(ctx context.Context, index int, req Request) Result {
	start := time.Now()
	res := Result{Index: index, Provider: req.Provider}

	if p.cache != nil {
		if text, ok := p.cache.get(req); ok {
			res.Response = text
			res.CacheHit = true
			res.Elapsed = time.Since(start)
			logging.DispatchDebug("cache hit for %s request %d", req.Provider, index)
			return res
		}
	}

	prov, err := p.providers.Get(req.Provider)
	if err != nil {
		res.Failed = true
		res.Err = err.Error()
		res.Elapsed = time.Since(start)
		return res
	}

	guard := resilience.NewGuard(req.Provider, p.breakers.Get(req.Provider), p.config.Retry)
	text, err := guard.Do(ctx, func(ctx context.Context) (string, error) {
		return prov.Call(ctx, req.Prompt, req.Model, req.Temperature)
	})
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Failed = true
		res.Err = err.Error()
		res.TimedOut = provider.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil
		return res
	}

	res.Response = text
	if p.cache != nil {
		p.cache.set(req, text)
	}
	return res
}

func buildStats(results []Result, wall time.Duration) BatchStats {
	stats := BatchStats{TotalRequests: len(results), TotalTime: wall}
	var elapsedSum time.Duration
	for _, r := range results {
		if r.Failed {
			stats.Failed++
		} else {
			stats.Succeeded++
		}
		if r.CacheHit {
			stats.CacheHits++
		}
		elapsedSum += r.Elapsed
	}
	if len(results) > 0 {
		stats.AvgTime = elapsedSum / time.Duration(len(results))
	}
	if wall > 0 {
		stats.Throughput = float64(len(results)) / wall.Seconds()
	}
	return stats
}
