package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func signBody(t *testing.T, secret string, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	v := NewVerifier("hook-secret", "shared-key")
	body := []byte(`{"event":"payout","data":{"reference":"r1","status":"completed"}}`)

	if err := v.Verify(body, signBody(t, "hook-secret", body), ""); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifyAcceptsSharedKey(t *testing.T) {
	v := NewVerifier("hook-secret", "shared-key")
	body := []byte(`{}`)

	if err := v.Verify(body, "", "shared-key"); err != nil {
		t.Fatalf("valid shared key rejected: %v", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	v := NewVerifier("hook-secret", "shared-key")
	body := []byte(`{"event":"payin_bank_transfer","data":{"amount":1000}}`)
	sig := signBody(t, "hook-secret", body)

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = '9'
	if err := v.Verify(tampered, sig, ""); !errors.Is(err, ErrNotAuthentic) {
		t.Fatalf("expected rejection of tampered body, got %v", err)
	}

	if err := v.Verify(body, signBody(t, "wrong-secret", body), ""); !errors.Is(err, ErrNotAuthentic) {
		t.Fatalf("expected rejection of wrong-key signature, got %v", err)
	}
}

func TestVerifyRejectsWrongSharedKey(t *testing.T) {
	v := NewVerifier("hook-secret", "shared-key")
	if err := v.Verify([]byte(`{}`), "", "not-the-key"); !errors.Is(err, ErrNotAuthentic) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestVerifyRejectsAbsentCredentials(t *testing.T) {
	v := NewVerifier("hook-secret", "shared-key")
	if err := v.Verify([]byte(`{}`), "", ""); !errors.Is(err, ErrNotAuthentic) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestVerifyEmptyConfiguredSharedKeyNeverMatches(t *testing.T) {
	v := NewVerifier("hook-secret", "")
	if err := v.Verify([]byte(`{}`), "", ""); !errors.Is(err, ErrNotAuthentic) {
		t.Fatalf("empty configured key must not match empty header: %v", err)
	}
}
