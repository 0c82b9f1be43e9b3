package logging

import (
	"encoding/json"
	"io"
	"log"
	"sync"
)

// SignedLogger implements Logger by writing each entry as a SignedEntry
// JSON line.
type SignedLogger struct {
	mu     sync.Mutex
	writer io.Writer
	config *SignatureConfig
}

// NewSignedLogger creates a SignedLogger with the given writer and config.
// The config must have a secret key of at least MinKeyLength bytes.
func NewSignedLogger(w io.Writer, config *SignatureConfig) *SignedLogger {
	return &SignedLogger{
		writer: w,
		config: config,
	}
}

// LogEmbed signs and writes an embed entry.
func (l *SignedLogger) LogEmbed(entry EmbedLogEntry) {
	l.writeSigned(entry)
}

// LogRegistration signs and writes a registration entry.
func (l *SignedLogger) LogRegistration(entry RegistrationLogEntry) {
	l.writeSigned(entry)
}

// writeSigned fails open: when signing is misconfigured the unsigned entry
// is still written so the audit record is not lost.
func (l *SignedLogger) writeSigned(entry any) {
	var payload any = entry
	signed, err := NewSignedEntry(entry, l.config)
	if err != nil {
		log.Printf("WARNING: audit log signing failed, writing unsigned entry: %v", err)
	} else {
		payload = signed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: audit log marshal failed: %v", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	writeLine(l.writer, data)
}
