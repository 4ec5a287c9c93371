package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrSigningSecretMissing indicates the verifier was constructed without a
// signing secret. This is a startup configuration problem, not a request
// verification failure.
var ErrSigningSecretMissing = errors.New("slack signing secret is not configured")

const signatureVersion = "v0"

// SignatureVerifier checks that inbound requests genuinely originate from
// Slack, per https://api.slack.com/docs/verifying-requests-from-slack.
type SignatureVerifier struct {
	signingSecret string
	maxAge        time.Duration
	now           func() time.Time
}

// NewSignatureVerifier creates a verifier for the given signing secret.
// maxAge bounds the replay window around the request timestamp.
func NewSignatureVerifier(signingSecret string, maxAge time.Duration) (*SignatureVerifier, error) {
	if signingSecret == "" {
		return nil, ErrSigningSecretMissing
	}
	return &SignatureVerifier{
		signingSecret: signingSecret,
		maxAge:        maxAge,
		now:           time.Now,
	}, nil
}

// Verify reports whether the signature header matches the request body and
// timestamp. Any malformed or stale input yields false, never an error, so
// callers can map every failure to one generic bad-request response.
func (v *SignatureVerifier) Verify(body []byte, timestamp, signature string) bool {
	if timestamp == "" || signature == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.maxAge || age < -v.maxAge {
		// Too far from local time either way; could be a replay.
		return false
	}

	expected := v.computeSignature(body, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (v *SignatureVerifier) computeSignature(body []byte, timestamp string) string {
	base := fmt.Sprintf("%s:%s:%s", signatureVersion, timestamp, body)
	mac := hmac.New(sha256.New, []byte(v.signingSecret))
	mac.Write([]byte(base))
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
