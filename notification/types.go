// Package notification delivers events about QuickSight user provisioning.
// The relay registers users on first use; administrators subscribe to these
// events to track who was provisioned and with which role.
//
// # Event Types
//
//   - user.registered: the fallback path registered a new QuickSight user
//   - user.registration_failed: registration was attempted and failed
package notification

import (
	"time"
)

// EventType represents the type of notification event.
type EventType string

const (
	// EventUserRegistered is emitted after a QuickSight user is registered.
	EventUserRegistered EventType = "user.registered"
	// EventUserRegistrationFailed is emitted when registration fails.
	EventUserRegistrationFailed EventType = "user.registration_failed"
)

// IsValid returns true if the EventType is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EventUserRegistered, EventUserRegistrationFailed:
		return true
	}
	return false
}

// String returns the string representation of the EventType.
func (t EventType) String() string {
	return string(t)
}

// Event describes a provisioning event for one user.
type Event struct {
	Type           EventType `json:"type"`
	RequestID      string    `json:"request_id"`
	User           string    `json:"user"`
	Email          string    `json:"email,omitempty"`
	AccountID      string    `json:"account_id"`
	Namespace      string    `json:"namespace"`
	UserRole       string    `json:"user_role"`
	IdentityRegion string    `json:"identity_region"`
	UserARN        string    `json:"user_arn,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, user string) *Event {
	return &Event{
		Type:      eventType,
		User:      user,
		Timestamp: time.Now().UTC(),
	}
}
