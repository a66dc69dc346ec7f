package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// ErrNotAuthentic indicates a webhook request that matched neither the HMAC
// signature nor the static shared key. No business logic may run for such a
// request.
var ErrNotAuthentic = errors.New("webhook authentication failed")

// Verifier checks inbound webhook authenticity. Two independent mechanisms
// are accepted: an HMAC-SHA-256 signature over the raw, unparsed body, or a
// static shared key header.
type Verifier struct {
	secret    []byte
	sharedKey []byte
}

// NewVerifier constructs a verifier from the configured webhook secret and
// shared key.
func NewVerifier(secret, sharedKey string) *Verifier {
	return &Verifier{secret: []byte(secret), sharedKey: []byte(sharedKey)}
}

// Verify accepts the request if either credential matches. Comparisons are
// constant time.
func (v *Verifier) Verify(rawBody []byte, signature, sharedKey string) error {
	if signature != "" && len(v.secret) > 0 {
		mac := hmac.New(sha256.New, v.secret)
		mac.Write(rawBody)
		want := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(signature), []byte(want)) {
			return nil
		}
	}
	if sharedKey != "" && len(v.sharedKey) > 0 {
		if subtle.ConstantTimeCompare([]byte(sharedKey), v.sharedKey) == 1 {
			return nil
		}
	}
	return ErrNotAuthentic
}
