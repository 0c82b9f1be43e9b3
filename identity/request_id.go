package identity

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRequestID returns an 8-character lowercase hex id used to correlate
// the log lines, audit entries and notifications of one resolution.
func NewRequestID() string {
	b := make([]byte, RequestIDLength/2)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}

// ValidateRequestID reports whether id is exactly 8 lowercase hex characters.
func ValidateRequestID(id string) bool {
	return requestIDRegex.MatchString(id)
}
