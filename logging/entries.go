package logging

import (
	"time"
)

// Outcome values for EmbedLogEntry.
const (
	OutcomeIssued = "issued"
	OutcomeFailed = "failed"
)

// EmbedLogEntry records one embed URL resolution. Tokens, credentials and
// the embed URL itself are never part of the entry.
type EmbedLogEntry struct {
	Timestamp      string `json:"timestamp"`
	RequestID      string `json:"request_id"`
	User           string `json:"user,omitempty"`
	AccountID      string `json:"account_id"`
	Dashboard      string `json:"dashboard"`
	DashboardID    string `json:"dashboard_id,omitempty"`
	Region         string `json:"region"`
	IdentityRegion string `json:"identity_region,omitempty"`
	Outcome        string `json:"outcome"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	Registered     bool   `json:"registered"`
	DurationMS     int64  `json:"duration_ms"`
}

// RegistrationLogEntry records a QuickSight user registration performed by
// the fallback path.
type RegistrationLogEntry struct {
	Timestamp      string `json:"timestamp"`
	RequestID      string `json:"request_id"`
	User           string `json:"user"`
	Namespace      string `json:"namespace"`
	UserRole       string `json:"user_role"`
	IdentityRegion string `json:"identity_region"`
	UserARN        string `json:"user_arn,omitempty"`
	AlreadyExisted bool   `json:"already_existed"`
}

// FormatTimestamp renders t the way every entry timestamp is rendered.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
