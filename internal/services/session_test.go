package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionService(t *testing.T, maxAge time.Duration) *SessionService {
	t.Helper()
	svc, err := NewSessionService("test-session-secret", maxAge)
	require.NoError(t, err)
	return svc
}

func TestNewSessionServiceRequiresSecret(t *testing.T) {
	_, err := NewSessionService("", time.Hour)
	require.ErrorIs(t, err, ErrSessionSecretMissing)
}

func TestSessionRoundTrip(t *testing.T) {
	svc := newTestSessionService(t, time.Hour)

	token, expires := svc.Issue("user-123")
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	userID, ok := svc.Verify(token)
	require.True(t, ok)
	assert.Equal(t, "user-123", userID)
}

func TestSessionExpiry(t *testing.T) {
	svc := newTestSessionService(t, time.Hour)

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	token, _ := svc.Issue("user-123")

	svc.now = func() time.Time { return issued.Add(time.Hour + time.Second) }
	_, ok := svc.Verify(token)
	assert.False(t, ok)
}

func TestSessionRejectsTampering(t *testing.T) {
	svc := newTestSessionService(t, time.Hour)
	token, _ := svc.Issue("user-123")

	cases := map[string]string{
		"swapped user":    strings.Replace(token, "user-123", "user-456", 1),
		"truncated sig":   token[:len(token)-2],
		"empty":           "",
		"no separator":    "user-123",
		"garbage":         "user-123.not-a-timestamp.deadbeef",
		"missing payload": "." + strings.SplitN(token, ".", 2)[1],
	}
	for name, tampered := range cases {
		_, ok := svc.Verify(tampered)
		assert.False(t, ok, name)
	}
}

func TestSessionRejectsForeignSecret(t *testing.T) {
	svc := newTestSessionService(t, time.Hour)
	other, err := NewSessionService("another-secret", time.Hour)
	require.NoError(t, err)

	token, _ := other.Issue("user-123")
	_, ok := svc.Verify(token)
	assert.False(t, ok)
}
