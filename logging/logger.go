// Package logging provides structured audit logging for embed URL
// resolutions and QuickSight user registrations. It defines a Logger
// interface and implementations for JSON Lines, signed JSON Lines,
// CloudWatch Logs and no-op output.
package logging

import (
	"encoding/json"
	"io"
	"sync"
)

// Logger defines the interface for audit logging.
type Logger interface {
	// LogEmbed logs the outcome of an embed URL resolution.
	LogEmbed(entry EmbedLogEntry)

	// LogRegistration logs a QuickSight user registration.
	LogRegistration(entry RegistrationLogEntry)
}

// JSONLogger implements Logger with JSON Lines output.
// Each entry is written as a single line of JSON suitable for log aggregation.
// It is safe for concurrent use.
type JSONLogger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewJSONLogger creates a new JSONLogger that writes to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{writer: w}
}

// LogEmbed writes the entry as a single line of JSON.
func (l *JSONLogger) LogEmbed(entry EmbedLogEntry) {
	l.write(entry)
}

// LogRegistration writes the entry as a single line of JSON.
func (l *JSONLogger) LogRegistration(entry RegistrationLogEntry) {
	l.write(entry)
}

func (l *JSONLogger) write(entry any) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	writeLine(l.writer, data)
}

// writeLine writes data followed by a newline in a single Write call so
// concurrent writers sharing an fd do not interleave.
func writeLine(w io.Writer, data []byte) {
	line := make([]byte, 0, len(data)+1)
	line = append(line, data...)
	line = append(line, '\n')
	w.Write(line)
}

// NopLogger implements Logger but discards all entries.
type NopLogger struct{}

// NewNopLogger creates a new NopLogger that discards all entries.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

// LogEmbed discards the entry.
func (l *NopLogger) LogEmbed(entry EmbedLogEntry) {}

// LogRegistration discards the entry.
func (l *NopLogger) LogRegistration(entry RegistrationLogEntry) {}

// MultiLogger fans each entry out to several loggers.
type MultiLogger []Logger

// LogEmbed forwards the entry to every logger.
func (m MultiLogger) LogEmbed(entry EmbedLogEntry) {
	for _, l := range m {
		l.LogEmbed(entry)
	}
}

// LogRegistration forwards the entry to every logger.
func (m MultiLogger) LogRegistration(entry RegistrationLogEntry) {
	for _, l := range m {
		l.LogRegistration(entry)
	}
}
