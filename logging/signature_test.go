package logging

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// testSecretKey is a 32-byte key for testing.
var testSecretKey = []byte("0123456789abcdef0123456789abcdef")

// testShortKey is too short to be valid.
var testShortKey = []byte("short")

func fixSigningClock(t *testing.T, ts time.Time) {
	t.Helper()
	orig := signingClock
	signingClock = func() time.Time { return ts }
	t.Cleanup(func() { signingClock = orig })
}

func TestComputeSignature(t *testing.T) {
	entry := map[string]string{"dashboard": "Ops", "user": "alice"}

	sig, err := ComputeSignature(entry, testSecretKey)
	if err != nil {
		t.Fatalf("ComputeSignature failed: %v", err)
	}
	if len(sig) != 64 {
		t.Errorf("expected signature length 64, got %d", len(sig))
	}
	if _, err := hex.DecodeString(sig); err != nil {
		t.Errorf("signature is not valid hex: %v", err)
	}

	again, _ := ComputeSignature(entry, testSecretKey)
	if sig != again {
		t.Errorf("signatures should be deterministic: %s != %s", sig, again)
	}

	other, _ := ComputeSignature(map[string]string{"dashboard": "Ops", "user": "bob"}, testSecretKey)
	if sig == other {
		t.Error("different entries produced the same signature")
	}
}

func TestComputeSignature_ShortKey(t *testing.T) {
	if _, err := ComputeSignature("x", testShortKey); !errors.Is(err, ErrKeyTooShort) {
		t.Errorf("expected ErrKeyTooShort, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	entry := sampleEmbedEntry()
	sig, err := ComputeSignature(entry, testSecretKey)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		signature string
		key       []byte
		want      bool
	}{
		{"valid", sig, testSecretKey, true},
		{"wrong key", sig, []byte("fedcba9876543210fedcba9876543210"), false},
		{"not hex", "zzzz", testSecretKey, false},
		{"truncated", sig[:10], testSecretKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifySignature(entry, tt.signature, tt.key)
			if err != nil {
				t.Fatalf("VerifySignature error: %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewSignedEntry(t *testing.T) {
	fixSigningClock(t, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	config := &SignatureConfig{KeyID: "key-1", SecretKey: testSecretKey}

	signed, err := NewSignedEntry(sampleEmbedEntry(), config)
	if err != nil {
		t.Fatalf("NewSignedEntry failed: %v", err)
	}
	if signed.KeyID != "key-1" {
		t.Errorf("KeyID = %q", signed.KeyID)
	}
	if signed.Timestamp != "2026-10-19T10:00:00Z" {
		t.Errorf("Timestamp = %q", signed.Timestamp)
	}

	ok, err := signed.Verify(testSecretKey)
	if err != nil || !ok {
		t.Errorf("Verify() = %v, %v; want true, nil", ok, err)
	}

	signed.Timestamp = "2026-10-19T10:00:01Z"
	if ok, _ := signed.Verify(testSecretKey); ok {
		t.Error("Verify() accepted a modified timestamp")
	}
}

func TestNewSignedEntry_InvalidConfig(t *testing.T) {
	if _, err := NewSignedEntry("x", &SignatureConfig{SecretKey: testShortKey}); !errors.Is(err, ErrKeyTooShort) {
		t.Errorf("expected ErrKeyTooShort, got %v", err)
	}
	if _, err := NewSignedEntry("x", nil); !errors.Is(err, ErrKeyTooShort) {
		t.Errorf("nil config: expected ErrKeyTooShort, got %v", err)
	}
}

func TestVerifyLine(t *testing.T) {
	config := &SignatureConfig{KeyID: "key-1", SecretKey: testSecretKey}
	entry := sampleEmbedEntry()
	entry.ErrorMessage = "a <b> & c"

	signed, err := NewSignedEntry(entry, config)
	if err != nil {
		t.Fatal(err)
	}
	line, err := json.Marshal(signed)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := VerifyLine(line, testSecretKey)
	if err != nil || !ok {
		t.Fatalf("VerifyLine() = %v, %v; want true, nil", ok, err)
	}

	var tampered map[string]any
	json.Unmarshal(line, &tampered)
	tampered["entry"].(map[string]any)["user"] = "mallory"
	tamperedLine, _ := json.Marshal(tampered)
	if ok, _ := VerifyLine(tamperedLine, testSecretKey); ok {
		t.Error("VerifyLine() accepted a tampered entry")
	}

	if _, err := VerifyLine([]byte("not json"), testSecretKey); err == nil {
		t.Error("VerifyLine() expected error for invalid JSON")
	}
}
