// Package ratelimit limits how often a client may request embed URLs.
// Every resolution performs a fresh STS exchange and several QuickSight
// calls, so the HTTP and Lambda surfaces limit per source IP before
// invoking the resolver.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter defines the interface for rate limiting implementations.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	// Allow checks if a request should be allowed for the given key.
	// Returns (allowed, retryAfter, error).
	// retryAfter indicates when to retry if blocked (0 if allowed).
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Config contains rate limit configuration.
type Config struct {
	// RequestsPerWindow is the max requests allowed in Window.
	RequestsPerWindow int

	// Window is the time window for counting requests.
	Window time.Duration

	// BurstSize allows short bursts above the rate (optional).
	// If zero, defaults to RequestsPerWindow.
	BurstSize int
}

// Validate checks if the Config is valid.
func (c *Config) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be positive, got %d", c.RequestsPerWindow)
	}
	if c.Window <= 0 {
		return fmt.Errorf("Window must be positive, got %v", c.Window)
	}
	if c.BurstSize < 0 {
		return fmt.Errorf("BurstSize cannot be negative, got %d", c.BurstSize)
	}
	return nil
}

// EffectiveBurstSize returns BurstSize if set, otherwise RequestsPerWindow.
func (c *Config) EffectiveBurstSize() int {
	if c.BurstSize > 0 {
		return c.BurstSize
	}
	return c.RequestsPerWindow
}

// Unlimited allows every request.
type Unlimited struct{}

// Allow always returns true.
func (Unlimited) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}
