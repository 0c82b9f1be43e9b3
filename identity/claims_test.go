package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// makeToken assembles an unsigned three-part token around payload.
func makeToken(t *testing.T, header, payload map[string]any) string {
	t.Helper()
	h, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	p, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(h) + "." +
		base64.RawURLEncoding.EncodeToString(p) + ".c2lnbmF0dXJl"
}

var rs256 = map[string]any{"alg": "RS256", "kid": "test-key"}

func TestDecodeClaims_CognitoToken(t *testing.T) {
	exp := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	token := makeToken(t, rs256, map[string]any{
		"cognito:username": "alice",
		"email":            "a@x.com",
		"sub":              "7d3c-uuid",
		"iss":              "https://cognito-idp.ap-northeast-2.amazonaws.com/pool",
		"exp":              exp.Unix(),
		"token_use":        "id",
	})

	claims, err := DecodeClaims(token)
	if err != nil {
		t.Fatalf("DecodeClaims() error = %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %q, want alice", claims.Username)
	}
	if claims.Email != "a@x.com" {
		t.Errorf("Email = %q, want a@x.com", claims.Email)
	}
	if claims.Subject != "7d3c-uuid" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, exp)
	}
}

func TestDecodeClaims_UsernameFallback(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"cognito wins", map[string]any{"cognito:username": "alice", "username": "bob"}, "alice"},
		{"username", map[string]any{"username": "bob", "preferred_username": "robert"}, "bob"},
		{"preferred_username", map[string]any{"preferred_username": "robert"}, "robert"},
		{"blank cognito skipped", map[string]any{"cognito:username": "  ", "username": "bob"}, "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := DecodeClaims(makeToken(t, rs256, tt.payload))
			if err != nil {
				t.Fatalf("DecodeClaims() error = %v", err)
			}
			if claims.Username != tt.want {
				t.Errorf("Username = %q, want %q", claims.Username, tt.want)
			}
		})
	}
}

func TestDecodeClaims_PaddedPayload(t *testing.T) {
	h, _ := json.Marshal(rs256)
	// {"cognito:username":"al"} encodes to a length that needs padding.
	p, _ := json.Marshal(map[string]any{"cognito:username": "al"})
	padded := base64.URLEncoding.EncodeToString(p)
	if !strings.HasSuffix(padded, "=") {
		t.Fatalf("test payload %q does not exercise padding", padded)
	}
	token := base64.RawURLEncoding.EncodeToString(h) + "." + padded + ".sig"

	claims, err := DecodeClaims(token)
	if err != nil {
		t.Fatalf("DecodeClaims() error = %v", err)
	}
	if claims.Username != "al" {
		t.Errorf("Username = %q, want al", claims.Username)
	}
}

func TestDecodeClaims_StandardAlphabetPayload(t *testing.T) {
	h, _ := json.Marshal(rs256)
	p := []byte(`{"cognito:username":"alice","email":"a@x.com","n":"??>>"}`)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		payload := enc.EncodeToString(p)
		if !strings.ContainsAny(payload, "+/") {
			t.Fatalf("test payload %q does not exercise the standard alphabet", payload)
		}
		token := base64.RawURLEncoding.EncodeToString(h) + "." + payload + ".sig"

		claims, err := DecodeClaims(token)
		if err != nil {
			t.Fatalf("DecodeClaims(%q) error = %v", payload, err)
		}
		if claims.Username != "alice" || claims.Email != "a@x.com" {
			t.Errorf("claims = %+v", claims)
		}
	}
}

func TestDecodeClaims_UnknownAlgorithmTolerated(t *testing.T) {
	token := makeToken(t, map[string]any{"typ": "JWT"}, map[string]any{"cognito:username": "alice"})

	claims, err := DecodeClaims(token)
	if err != nil {
		t.Fatalf("DecodeClaims() error = %v", err)
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %q", claims.Username)
	}
}

func TestDecodeClaims_Errors(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"whitespace", "   ", ErrMissingToken},
		{"one segment", "abc", ErrInvalidToken},
		{"two segments", "abc.def", ErrInvalidToken},
		{"bad base64 payload", "eyJhbGciOiJSUzI1NiJ9.!!!.sig", ErrInvalidToken},
		{"payload not json", "eyJhbGciOiJSUzI1NiJ9." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".sig", ErrInvalidToken},
		{"no username", makeToken(t, rs256, map[string]any{"email": "a@x.com"}), ErrMissingUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := DecodeClaims(tt.token)
			if !errors.Is(err, tt.want) {
				t.Fatalf("DecodeClaims() error = %v, want %v", err, tt.want)
			}
			if claims != nil {
				t.Errorf("DecodeClaims() claims = %+v, want nil", claims)
			}
		})
	}
}
