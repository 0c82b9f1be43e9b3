package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the ID token payload the relay uses.
type Claims struct {
	// Username is the first non-empty username claim.
	Username string

	// Email may be empty; it is forwarded to QuickSight on registration.
	Email string

	Subject   string
	Issuer    string
	ExpiresAt time.Time
}

type tokenClaims struct {
	CognitoUsername   string `json:"cognito:username"`
	Username          string `json:"username"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	jwt.RegisteredClaims
}

func (c *tokenClaims) username() string {
	for _, v := range []string{c.CognitoUsername, c.Username, c.PreferredUsername} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// tokenParser decodes segments with padding allowed, so both padded and
// unpadded base64url payloads are accepted.
var tokenParser = jwt.NewParser(jwt.WithPaddingAllowed())

// decodeStandardPayload decodes the middle segment with the standard base64
// alphabet, for issuers that do not use base64url.
func decodeStandardPayload(token string, tc *tokenClaims) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return jwt.ErrTokenMalformed
	}
	seg := strings.TrimRight(parts[1], "=")
	if n := len(seg) % 4; n != 0 {
		seg += strings.Repeat("=", 4-n)
	}
	data, err := base64.StdEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, tc)
}

// DecodeClaims extracts Claims from the payload of an ID token without
// verifying its signature. It performs no network I/O.
func DecodeClaims(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	if _, _, err := tokenParser.ParseUnverified(token, &tc); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenUnverifiable):
			// An unknown or absent alg is STS's concern; the payload decoded fine.
		case errors.Is(err, jwt.ErrTokenMalformed):
			tc = tokenClaims{}
			if decodeStandardPayload(token, &tc) != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
			}
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	username := tc.username()
	if username == "" {
		return nil, ErrMissingUsername
	}

	claims := &Claims{
		Username: username,
		Email:    strings.TrimSpace(tc.Email),
		Subject:  tc.Subject,
		Issuer:   tc.Issuer,
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}
