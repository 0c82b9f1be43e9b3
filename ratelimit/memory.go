package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryRateLimiter is a per-key token bucket held in process memory.
// Tokens refill at RequestsPerWindow per Window up to the burst size.
// For Lambda, each warm instance keeps its own buckets.
type MemoryRateLimiter struct {
	config Config
	limit  rate.Limit
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	cleanupInterval time.Duration
	done            chan struct{}
	wg              sync.WaitGroup
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryRateLimiter creates a new in-memory rate limiter.
// Starts a background goroutine that drops idle buckets; call Close to stop it.
func NewMemoryRateLimiter(cfg Config) (*MemoryRateLimiter, error) {
	return NewMemoryRateLimiterWithCleanup(cfg, 10*time.Minute)
}

// NewMemoryRateLimiterWithCleanup creates a rate limiter with a custom
// cleanup interval.
func NewMemoryRateLimiterWithCleanup(cfg Config, cleanupInterval time.Duration) (*MemoryRateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &MemoryRateLimiter{
		config:          cfg,
		limit:           rate.Every(cfg.Window / time.Duration(cfg.RequestsPerWindow)),
		now:             time.Now,
		buckets:         make(map[string]*bucket),
		cleanupInterval: cleanupInterval,
		done:            make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m, nil
}

// Allow takes one token from key's bucket. When none is available it
// reports how long until one will be.
func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.limit, m.config.EffectiveBurstSize())}
		m.buckets[key] = b
	}
	b.lastSeen = now
	m.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, m.config.Window, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

// Close stops the background cleanup goroutine.
// Safe to call multiple times.
func (m *MemoryRateLimiter) Close() error {
	select {
	case <-m.done:
		return nil
	default:
		close(m.done)
	}
	m.wg.Wait()
	return nil
}

func (m *MemoryRateLimiter) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup drops buckets idle for longer than a full window; a fresh bucket
// starts full, so dropping them loses nothing.
func (m *MemoryRateLimiter) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.config.Window)
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

// Stats returns current statistics for monitoring.
type Stats struct {
	// TotalKeys is the number of keys with a live bucket.
	TotalKeys int
}

// Stats returns current rate limiter statistics.
func (m *MemoryRateLimiter) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{TotalKeys: len(m.buckets)}
}

var _ RateLimiter = (*MemoryRateLimiter)(nil)
