// Package token implements the credential primitives of the session-sharing
// protocol: opaque per-broker tokens and the keyed checksum that authenticates
// a single (broker, token) presentation.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of a broker token. 128 bits keeps the token space
// large enough that uniqueness never needs coordination.
const tokenBytes = 16

// NewBrokerToken mints an opaque token for one (broker, session) pair. The
// value is drawn from the system CSPRNG and is unrelated to the broker id or
// its secret.
func NewBrokerToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate broker token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Sign computes the hex checksum binding a broker id, its shared secret, and a
// token: HMAC-SHA-256 keyed by the secret over brokerID||token. The broker id
// and token are length-prefixed inside the MAC input so no pair of distinct
// (brokerID, token) values can collide on the same byte stream.
func Sign(brokerID string, secret []byte, tok string) string {
	mac := hmac.New(sha256.New, secret)
	writeField(mac, brokerID)
	writeField(mac, tok)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented checksum in constant time. Mismatches and
// malformed checksums both fail closed.
func Verify(brokerID string, secret []byte, tok, checksum string) bool {
	want, err := hex.DecodeString(checksum)
	if err != nil {
		return false
	}
	got := hmac.New(sha256.New, secret)
	writeField(got, brokerID)
	writeField(got, tok)
	return hmac.Equal(got.Sum(nil), want)
}

// CookieName returns the name of the broker-side access cookie.
func CookieName(brokerID string) string {
	return "sso_user_" + brokerID
}

func writeField(mac interface{ Write([]byte) (int, error) }, field string) {
	var lenBuf [4]byte
	n := len(field)
	lenBuf[0] = byte(n >> 24)
	lenBuf[1] = byte(n >> 16)
	lenBuf[2] = byte(n >> 8)
	lenBuf[3] = byte(n)
	mac.Write(lenBuf[:])
	mac.Write([]byte(field))
}
