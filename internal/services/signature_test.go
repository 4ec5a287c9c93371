package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signBody(secret string, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func newTestVerifier(t *testing.T, secret string, now time.Time) *SignatureVerifier {
	t.Helper()
	v, err := NewSignatureVerifier(secret, 5*time.Minute)
	require.NoError(t, err)
	v.now = func() time.Time { return now }
	return v
}

func TestNewSignatureVerifier_MissingSecret(t *testing.T) {
	_, err := NewSignatureVerifier("", 5*time.Minute)
	assert.ErrorIs(t, err, ErrSigningSecretMissing)
}

func TestSignatureVerifier_Verify_RoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, "8f742231b10e8888abcd99yyyzzz85a5", now)

	bodies := [][]byte{
		[]byte(""),
		[]byte("token=xyz&command=%2Fstandup&user_id=U123"),
		[]byte(`{"type":"block_actions","user":{"id":"U123"}}`),
	}

	for _, body := range bodies {
		ts := strconv.FormatInt(now.Unix(), 10)
		sig := signBody("8f742231b10e8888abcd99yyyzzz85a5", ts, body)
		assert.True(t, v.Verify(body, ts, sig), "body %q", body)
	}
}

func TestSignatureVerifier_Verify_ReplayWindow(t *testing.T) {
	const secret = "secret"
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, secret, now)
	body := []byte("command=%2Fstandup")

	tests := []struct {
		name     string
		ts       time.Time
		accepted bool
	}{
		{name: "current", ts: now, accepted: true},
		{name: "4m59s old", ts: now.Add(-(5*time.Minute - time.Second)), accepted: true},
		{name: "4m59s ahead", ts: now.Add(5*time.Minute - time.Second), accepted: true},
		{name: "just over 5m old", ts: now.Add(-(5*time.Minute + time.Second)), accepted: false},
		{name: "just over 5m ahead", ts: now.Add(5*time.Minute + time.Second), accepted: false},
		{name: "hours old", ts: now.Add(-3 * time.Hour), accepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := strconv.FormatInt(tt.ts.Unix(), 10)
			sig := signBody(secret, ts, body)
			assert.Equal(t, tt.accepted, v.Verify(body, ts, sig))
		})
	}
}

func TestSignatureVerifier_Verify_TamperedBody(t *testing.T) {
	const secret = "secret"
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, secret, now)

	body := []byte("command=%2Fstandup&user_id=U123")
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := signBody(secret, ts, body)

	for i := range body {
		tampered := make([]byte, len(body))
		copy(tampered, body)
		tampered[i] ^= 0x01
		assert.False(t, v.Verify(tampered, ts, sig), "flip at offset %d", i)
	}
}

func TestSignatureVerifier_Verify_MalformedInput(t *testing.T) {
	const secret = "secret"
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, secret, now)
	body := []byte("command=%2Fstandup")
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := signBody(secret, ts, body)

	assert.False(t, v.Verify(body, "", sig), "missing timestamp")
	assert.False(t, v.Verify(body, ts, ""), "missing signature")
	assert.False(t, v.Verify(body, "not-a-number", sig), "non-numeric timestamp")
	assert.False(t, v.Verify(body, ts, "v0=deadbeef"), "wrong signature")
	assert.False(t, v.Verify(body, ts, signBody("other-secret", ts, body)), "wrong secret")
}
