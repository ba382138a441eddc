package store

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/keyduel/keyduel/internal/model"
)

// Token verification errors. All of them close the session with a
// policy-violation code upstream.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
)

// HMACIdentity verifies session tokens of the form
// base64(playerID|expiresUnix|hmac-sha256(playerID|expiresUnix)).
// Tokens are minted by the account service with the same shared key.
type HMACIdentity struct {
	key []byte
	now func() time.Time
}

// NewHMACIdentity builds a verifier over the shared signing key.
func NewHMACIdentity(key []byte) *HMACIdentity {
	return &HMACIdentity{key: key, now: time.Now}
}

// Mint issues a token for id valid for ttl. Used by tests and the
// local dev login endpoint.
func (h *HMACIdentity) Mint(id model.PlayerID, ttl time.Duration) string {
	exp := h.now().Add(ttl).Unix()
	payload := fmt.Sprintf("%s|%d", id, exp)
	sig := h.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(payload + "|" + sig))
}

func (h *HMACIdentity) Verify(token string) (model.PlayerID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrTokenMalformed
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return "", ErrTokenMalformed
	}
	id, expStr, sig := parts[0], parts[1], parts[2]
	if id == "" {
		return "", ErrTokenMalformed
	}

	payload := id + "|" + expStr
	if !hmac.Equal([]byte(sig), []byte(h.sign(payload))) {
		return "", ErrTokenSignature
	}

	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", ErrTokenMalformed
	}
	if h.now().Unix() > exp {
		return "", ErrTokenExpired
	}

	return model.PlayerID(id), nil
}

func (h *HMACIdentity) sign(payload string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

var _ IdentityProvider = (*HMACIdentity)(nil)
