package testutil

import (
	"context"
	"sync"

	"github.com/byteness/embedrelay/logging"
	"github.com/byteness/embedrelay/metrics"
	"github.com/byteness/embedrelay/notification"
)

// ============================================================================
// MockNotifier - notification.Notifier interface
// ============================================================================

// MockNotifier implements notification.Notifier for testing.
// Tracks all notification calls for assertions.
type MockNotifier struct {
	mu sync.Mutex

	// Error injection
	NotifyErr error

	// Call tracking
	NotifyCalls []*notification.Event
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Notify records the event and returns NotifyErr.
func (m *MockNotifier) Notify(_ context.Context, event *notification.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyCalls = append(m.NotifyCalls, event)
	return m.NotifyErr
}

// Types returns the event types received, in order.
func (m *MockNotifier) Types() []notification.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]notification.EventType, len(m.NotifyCalls))
	for i, e := range m.NotifyCalls {
		types[i] = e.Type
	}
	return types
}

// ============================================================================
// MockLogger - logging.Logger interface
// ============================================================================

// MockLogger implements logging.Logger for testing.
// Captures all log entries for assertions.
type MockLogger struct {
	mu sync.Mutex

	EmbedEntries        []logging.EmbedLogEntry
	RegistrationEntries []logging.RegistrationLogEntry
}

// NewMockLogger creates a new MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// LogEmbed captures an embed entry.
func (m *MockLogger) LogEmbed(entry logging.EmbedLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedEntries = append(m.EmbedEntries, entry)
}

// LogRegistration captures a registration entry.
func (m *MockLogger) LogRegistration(entry logging.RegistrationLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RegistrationEntries = append(m.RegistrationEntries, entry)
}

// LastEmbed returns the last embed entry, or the zero value if none.
func (m *MockLogger) LastEmbed() logging.EmbedLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.EmbedEntries) == 0 {
		return logging.EmbedLogEntry{}
	}
	return m.EmbedEntries[len(m.EmbedEntries)-1]
}

// ============================================================================
// MockPublisher - metrics.Publisher interface
// ============================================================================

// MockPublisher implements metrics.Publisher for testing.
type MockPublisher struct {
	mu sync.Mutex

	PublishErr  error
	Resolutions []metrics.Resolution
}

// Publish records the resolution and returns PublishErr.
func (m *MockPublisher) Publish(_ context.Context, r metrics.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resolutions = append(m.Resolutions, r)
	return m.PublishErr
}
