package access

import (
	"testing"
)

func TestNewInviteToken(t *testing.T) {
	t.Parallel()

	token, err := NewInviteToken()
	if err != nil {
		t.Fatalf("NewInviteToken() error = %v", err)
	}
	if len(token) != InviteTokenLength {
		t.Errorf("token length = %d, want %d", len(token), InviteTokenLength)
	}
	assertHex(t, token)
}

func TestNewShareToken(t *testing.T) {
	t.Parallel()

	token, err := NewShareToken()
	if err != nil {
		t.Fatalf("NewShareToken() error = %v", err)
	}
	if len(token) != ShareTokenLength {
		t.Errorf("token length = %d, want %d", len(token), ShareTokenLength)
	}
	assertHex(t, token)
}

func TestTokensAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token, err := NewShareToken()
		if err != nil {
			t.Fatalf("NewShareToken() error = %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}

func assertHex(t *testing.T, s string) {
	t.Helper()
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("token contains non-hex character %q in %s", c, s)
		}
	}
}
