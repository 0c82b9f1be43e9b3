// Package identity extracts the caller's identity from a Cognito ID token and
// derives the names the relay stamps on AWS calls.
//
// # Claims
//
// The ID token is a three-part JWT. Only the payload is decoded; the signature
// is not verified locally because STS verifies it during
// AssumeRoleWithWebIdentity, before any credentials exist.
//
// The username is read from the first non-empty claim among:
//   - "cognito:username" - Cognito user pools
//   - "username"
//   - "preferred_username"
//
// # Session Names
//
// The username becomes the STS RoleSessionName and, with the role name, the
// QuickSight user name (<role-name>/<session-name>). STS constrains session
// names to 2-64 characters from [\w+=,.@-]. SessionName passes a username
// through unchanged or rejects it; it never rewrites one, so distinct
// usernames always map to distinct QuickSight users.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// MinSessionNameLength is STS's minimum RoleSessionName length.
	MinSessionNameLength = 2

	// MaxSessionNameLength is STS's maximum RoleSessionName length.
	MaxSessionNameLength = 64

	// RequestIDLength is the exact length for request-id (8 hex chars).
	RequestIDLength = 8
)

var (
	// ErrMissingToken indicates no identity token was supplied.
	ErrMissingToken = errors.New("identity token is required")

	// ErrInvalidToken indicates the token is not a decodable three-part JWT.
	ErrInvalidToken = errors.New("identity token is malformed")

	// ErrMissingUsername indicates the payload carries no username claim.
	ErrMissingUsername = errors.New("identity token has no username claim")

	// ErrInvalidSessionName indicates a username cannot form a valid session name.
	ErrInvalidSessionName = errors.New("username cannot form a valid role session name")
)

// sessionNameRegex matches STS RoleSessionName values.
var sessionNameRegex = regexp.MustCompile(`^[\w+=,.@-]{2,64}$`)

// requestIDRegex matches valid request-ids (8 lowercase hex chars).
var requestIDRegex = regexp.MustCompile(`^[0-9a-f]{8}$`)

// SessionName returns the STS RoleSessionName for username. Surrounding
// whitespace is trimmed; a username with characters STS rejects, or outside
// 2-64 characters, returns ErrInvalidSessionName.
func SessionName(username string) (string, error) {
	name := strings.TrimSpace(username)
	if !ValidateSessionName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionName, name)
	}
	return name, nil
}

// ValidateSessionName reports whether name is acceptable to STS as-is.
func ValidateSessionName(name string) bool {
	return sessionNameRegex.MatchString(name)
}
