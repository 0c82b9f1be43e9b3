package identity

import (
	"errors"
	"strings"
	"testing"
)

func TestSessionName(t *testing.T) {
	var testCases = []struct {
		name     string
		username string
		want     string
	}{
		{
			name:     "plain username",
			username: "alice",
			want:     "alice",
		},
		{
			name:     "email address kept",
			username: "alice@example.com",
			want:     "alice@example.com",
		},
		{
			name:     "allowed punctuation kept",
			username: "a_b+c=d,e.f@g-h",
			want:     "a_b+c=d,e.f@g-h",
		},
		{
			name:     "surrounding whitespace trimmed",
			username: "  bob  ",
			want:     "bob",
		},
		{
			name:     "64 characters kept",
			username: strings.Repeat("x", 64),
			want:     strings.Repeat("x", 64),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SessionName(tc.username)
			if err != nil {
				t.Fatalf("SessionName(%q) error = %v", tc.username, err)
			}
			if got != tc.want {
				t.Errorf("SessionName(%q) = %q, want %q", tc.username, got, tc.want)
			}
			if !ValidateSessionName(got) {
				t.Errorf("SessionName(%q) = %q is not a valid session name", tc.username, got)
			}
		})
	}
}

func TestSessionName_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		username string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"too short", "a"},
		{"space", "alice smith"},
		{"slash", "team/alice"},
		{"non-ascii", "jösé"},
		{"hangul", "김철수"},
		{"too long", strings.Repeat("x", 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SessionName(tt.username)
			if !errors.Is(err, ErrInvalidSessionName) {
				t.Errorf("SessionName(%q) = %q, %v, want ErrInvalidSessionName", tt.username, got, err)
			}
		})
	}
}

// Distinct usernames must never share a session name, or they would share
// one QuickSight user.
func TestSessionName_Distinct(t *testing.T) {
	pairs := [][2]string{
		{"김철수", "이영희"},
		{"jösé", "jäsé"},
		{strings.Repeat("a", 64) + "@one.example.com", strings.Repeat("a", 64) + "@two.example.com"},
		{"alice smith", "alice-smith"},
		{"alice", "bob"},
	}

	for _, pair := range pairs {
		first, err1 := SessionName(pair[0])
		second, err2 := SessionName(pair[1])
		if err1 == nil && err2 == nil && first == second {
			t.Errorf("SessionName(%q) and SessionName(%q) both = %q", pair[0], pair[1], first)
		}
	}
}

func TestSessionName_Stable(t *testing.T) {
	first, err := SessionName("alice.smith")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := SessionName("alice.smith")
	if first != second {
		t.Errorf("SessionName not stable: %q != %q", first, second)
	}
}
