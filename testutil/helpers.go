// Package testutil provides reusable test utilities, mock implementations,
// and helper functions for testing embedrelay components.
package testutil

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/golang-jwt/jwt/v5"
)

// Fixture values shared across package tests.
const (
	TestAccountID = "123456789012"
	TestRoleARN   = "arn:aws:iam::123456789012:role/EmbedRole"
	TestRegion    = "ap-northeast-2"
)

// ============================================================================
// Time helpers
// ============================================================================

// MustParseTime parses a time string using the given layout and panics on error.
//
// Example:
//
//	t := MustParseTime(time.RFC3339, "2024-01-15T10:00:00Z")
func MustParseTime(layout, value string) time.Time {
	t, err := time.Parse(layout, value)
	if err != nil {
		panic("testutil.MustParseTime: " + err.Error())
	}
	return t
}

// FixedClock returns a function that always returns the given time.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time {
		return t
	}
}

// ============================================================================
// Token and error helpers
// ============================================================================

// MakeIDToken returns a compact JWT carrying claims. The signature uses a
// throwaway HMAC key; claims are decoded without verification.
//
// Example:
//
//	token := MakeIDToken(map[string]any{"cognito:username": "alice"})
func MakeIDToken(claims map[string]any) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	signed, err := token.SignedString([]byte("test-signing-key"))
	if err != nil {
		panic("testutil.MakeIDToken: " + err.Error())
	}
	return signed
}

// APIError returns a smithy API error with the given code and message, the
// shape the AWS SDK surfaces for service exceptions.
func APIError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

// ============================================================================
// Assertion helpers
// ============================================================================

// AssertErrorIs checks if got error matches want error using errors.Is.
func AssertErrorIs(t *testing.T, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("error mismatch:\n  got:  %v\n  want: %v", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertContains checks if got string contains substr.
//
// Example:
//
//	AssertContains(t, err.Error(), "not found")
func AssertContains(t *testing.T, got, substr string) {
	t.Helper()
	if !strings.Contains(got, substr) {
		t.Errorf("string does not contain expected substring:\n  got:    %q\n  substr: %q", got, substr)
	}
}

// AssertNotContains checks if got string does not contain substr.
func AssertNotContains(t *testing.T, got, substr string) {
	t.Helper()
	if strings.Contains(got, substr) {
		t.Errorf("string contains unexpected substring:\n  got:    %q\n  substr: %q", got, substr)
	}
}

// AssertEqual checks if got equals want.
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("value mismatch:\n  got:  %v\n  want: %v", got, want)
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
