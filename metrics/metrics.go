// Package metrics publishes embed relay metrics to CloudWatch and manages
// the alarms built on them.
package metrics

import (
	"context"
	"time"
)

// DefaultNamespace is the CloudWatch namespace for relay metrics.
const DefaultNamespace = "EmbedRelay"

// Metric names.
const (
	MetricEmbedRequests     = "EmbedRequests"
	MetricEmbedLatency      = "EmbedLatency"
	MetricEmbedErrors       = "EmbedErrors"
	MetricUserRegistrations = "UserRegistrations"
)

// Dimension names.
const (
	DimensionOutcome   = "Outcome"
	DimensionErrorCode = "ErrorCode"
)

// Resolution summarises one embed URL resolution.
type Resolution struct {
	Outcome    string // "issued" or "failed"
	ErrorCode  string // taxonomy code when Outcome is "failed"
	Registered bool   // the fallback registered the user
	Duration   time.Duration
	Timestamp  time.Time
}

// Publisher records resolutions.
type Publisher interface {
	Publish(ctx context.Context, r Resolution) error
}

// NopPublisher discards resolutions.
type NopPublisher struct{}

// Publish does nothing and returns nil.
func (NopPublisher) Publish(context.Context, Resolution) error {
	return nil
}
