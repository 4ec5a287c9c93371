package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionCookieName is the cookie the session token travels in.
const SessionCookieName = "app_session"

var ErrSessionSecretMissing = errors.New("session secret is not configured")

// SessionService issues and verifies stateless session tokens of the form
// `userID.expiryUnix.hexsig`, signed with HMAC-SHA256 over the secret. No
// server-side session state is kept; expiry is part of the signed payload.
type SessionService struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSessionService creates a SessionService. An empty secret is a
// configuration error.
func NewSessionService(secret string, maxAge time.Duration) (*SessionService, error) {
	if secret == "" {
		return nil, ErrSessionSecretMissing
	}
	return &SessionService{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// Issue returns a signed session token for an app user and its expiry time.
func (s *SessionService) Issue(appUserID string) (string, time.Time) {
	expires := s.now().Add(s.maxAge)
	payload := fmt.Sprintf("%s.%d", appUserID, expires.Unix())
	return payload + "." + s.sign(payload), expires
}

// Verify checks a session token and returns the app user ID it carries.
// Expired, malformed or tampered tokens return false.
func (s *SessionService) Verify(token string) (string, bool) {
	idx := strings.LastIndex(token, ".")
	if idx <= 0 || idx == len(token)-1 {
		return "", false
	}
	payload, sig := token[:idx], token[idx+1:]

	if !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		return "", false
	}

	dot := strings.LastIndex(payload, ".")
	if dot <= 0 {
		return "", false
	}
	appUserID, expiryField := payload[:dot], payload[dot+1:]

	expiry, err := strconv.ParseInt(expiryField, 10, 64)
	if err != nil {
		return "", false
	}
	if s.now().Unix() >= expiry {
		return "", false
	}

	return appUserID, true
}

func (s *SessionService) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
