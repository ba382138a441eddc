package store

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestIdentityMintVerifyRoundTrip(t *testing.T) {
	id := NewHMACIdentity([]byte("test-key"))
	tok := id.Mint("player-1", time.Hour)

	got, err := id.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if got != "player-1" {
		t.Errorf("subject = %q, want player-1", got)
	}
}

func TestIdentityRejectsTamperedToken(t *testing.T) {
	id := NewHMACIdentity([]byte("test-key"))
	tok := id.Mint("player-1", time.Hour)

	raw, _ := base64.RawURLEncoding.DecodeString(tok)
	// Impersonate another player while keeping the original signature.
	forged := base64.RawURLEncoding.EncodeToString(
		append([]byte("player-2"), raw[len("player-1"):]...))

	if _, err := id.Verify(forged); !errors.Is(err, ErrTokenSignature) {
		t.Errorf("error = %v, want ErrTokenSignature", err)
	}
}

func TestIdentityRejectsWrongKey(t *testing.T) {
	minter := NewHMACIdentity([]byte("key-one"))
	verifier := NewHMACIdentity([]byte("key-two"))

	if _, err := verifier.Verify(minter.Mint("player-1", time.Hour)); !errors.Is(err, ErrTokenSignature) {
		t.Errorf("error = %v, want ErrTokenSignature", err)
	}
}

func TestIdentityRejectsExpiredToken(t *testing.T) {
	id := NewHMACIdentity([]byte("test-key"))
	tok := id.Mint("player-1", time.Hour)

	id.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := id.Verify(tok); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("error = %v, want ErrTokenExpired", err)
	}
}

func TestIdentityRejectsMalformedTokens(t *testing.T) {
	id := NewHMACIdentity([]byte("test-key"))

	for _, tok := range []string{
		"",
		"not base64 at all!!!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separators")),
		base64.RawURLEncoding.EncodeToString([]byte("|12345|sig")), // empty subject
	} {
		if _, err := id.Verify(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("Verify(%q) error = %v, want ErrTokenMalformed", tok, err)
		}
	}
}
