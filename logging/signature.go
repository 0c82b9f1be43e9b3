package logging

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// MinKeyLength is the minimum required length for HMAC-SHA256 secret keys.
const MinKeyLength = 32

// ErrKeyTooShort is returned when the secret key is shorter than MinKeyLength.
var ErrKeyTooShort = errors.New("secret key must be at least 32 bytes")

// SignatureConfig holds configuration for log signing.
type SignatureConfig struct {
	KeyID     string // Identifier for the signing key (for key rotation)
	SecretKey []byte // HMAC-SHA256 secret key
}

// Validate checks that the configuration is valid.
func (c *SignatureConfig) Validate() error {
	if c == nil || len(c.SecretKey) < MinKeyLength {
		return ErrKeyTooShort
	}
	return nil
}

// SignedEntry wraps a log entry with its signature.
type SignedEntry struct {
	Entry     any    `json:"entry"`
	Signature string `json:"signature"` // Hex-encoded HMAC-SHA256
	KeyID     string `json:"key_id"`
	Timestamp string `json:"timestamp"` // When the entry was signed
}

// signedPayload is the exact structure the HMAC covers. The timestamp and
// key id are bound into the signature so entries cannot be replayed under
// another key or time.
type signedPayload struct {
	Entry     any    `json:"entry"`
	Timestamp string `json:"timestamp"`
	KeyID     string `json:"key_id"`
}

// signingClock is replaced in tests.
var signingClock = time.Now

// ComputeSignature returns the hex HMAC-SHA256 of entry's JSON encoding.
func ComputeSignature(entry any, secretKey []byte) (string, error) {
	if len(secretKey) < MinKeyLength {
		return "", ErrKeyTooShort
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature reports whether signature is the HMAC of entry under
// secretKey. Malformed hex is an invalid signature, not an error.
func VerifySignature(entry any, signature string, secretKey []byte) (bool, error) {
	expected, err := ComputeSignature(entry, secretKey)
	if err != nil {
		return false, err
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false, nil
	}
	want, _ := hex.DecodeString(expected)

	return subtle.ConstantTimeCompare(provided, want) == 1, nil
}

// NewSignedEntry signs entry with the current time.
func NewSignedEntry(entry any, config *SignatureConfig) (*SignedEntry, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	payload := signedPayload{
		Entry:     entry,
		Timestamp: FormatTimestamp(signingClock()),
		KeyID:     config.KeyID,
	}
	signature, err := ComputeSignature(payload, config.SecretKey)
	if err != nil {
		return nil, err
	}

	return &SignedEntry{
		Entry:     entry,
		Signature: signature,
		KeyID:     payload.KeyID,
		Timestamp: payload.Timestamp,
	}, nil
}

// Verify checks the signature of a SignedEntry.
func (s *SignedEntry) Verify(secretKey []byte) (bool, error) {
	payload := signedPayload{
		Entry:     s.Entry,
		Timestamp: s.Timestamp,
		KeyID:     s.KeyID,
	}
	return VerifySignature(payload, s.Signature, secretKey)
}

// VerifyLine parses one line written by SignedLogger or a signing
// CloudWatchLogger and verifies it over the entry's raw JSON bytes.
func VerifyLine(line []byte, secretKey []byte) (bool, error) {
	var raw struct {
		Entry     json.RawMessage `json:"entry"`
		Signature string          `json:"signature"`
		KeyID     string          `json:"key_id"`
		Timestamp string          `json:"timestamp"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return false, err
	}
	s := &SignedEntry{
		Entry:     raw.Entry,
		Signature: raw.Signature,
		KeyID:     raw.KeyID,
		Timestamp: raw.Timestamp,
	}
	return s.Verify(secretKey)
}
