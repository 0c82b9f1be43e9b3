//go:build loadtest

package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoadConfig configures a paced burst of concurrent calls.
type LoadConfig struct {
	// Rate is the target calls per second across all workers.
	Rate int
	// Requests is the total number of calls.
	Requests int
	// Workers is the number of concurrent goroutines.
	Workers int
}

// LoadResult summarizes a RunLoad run.
type LoadResult struct {
	Successes int
	Failures  int
	P50       time.Duration
	P99       time.Duration
	Errors    map[string]int
}

// RunLoad calls fn cfg.Requests times from cfg.Workers goroutines, paced by a
// token bucket at cfg.Rate.
func RunLoad(ctx context.Context, cfg LoadConfig, fn func(ctx context.Context) error) LoadResult {
	limiter := rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Rate)
	jobs := make(chan struct{}, cfg.Requests)
	for i := 0; i < cfg.Requests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	var (
		mu        sync.Mutex
		latencies []time.Duration
		result    = LoadResult{Errors: make(map[string]int)}
		wg        sync.WaitGroup
	)
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				start := time.Now()
				err := fn(ctx)
				elapsed := time.Since(start)

				mu.Lock()
				if err != nil {
					result.Failures++
					result.Errors[err.Error()]++
				} else {
					result.Successes++
					latencies = append(latencies, elapsed)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	slices.Sort(latencies)
	result.P50 = percentile(latencies, 50)
	result.P99 = percentile(latencies, 99)
	return result
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[(len(sorted)-1)*p/100]
}

// String formats r for test logs.
func (r LoadResult) String() string {
	return fmt.Sprintf("success=%d failure=%d p50=%v p99=%v errors=%v",
		r.Successes, r.Failures, r.P50.Round(time.Microsecond), r.P99.Round(time.Microsecond), r.Errors)
}
