package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slack-app-connect/internal/middleware"
	"slack-app-connect/internal/models"
	"slack-app-connect/internal/services"
)

type fakeConnectStore struct {
	byNonce map[string]*models.UserMapping
	saved   []*models.UserMapping
}

func (f *fakeConnectStore) GetUserMappingByNonce(_ context.Context, nonce string) (*models.UserMapping, error) {
	mapping, ok := f.byNonce[nonce]
	if !ok {
		return nil, services.ErrMappingNotFound
	}
	return mapping, nil
}

func (f *fakeConnectStore) SaveUserMapping(_ context.Context, mapping *models.UserMapping) error {
	if err := mapping.Validate(); err != nil {
		return err
	}
	f.saved = append(f.saved, mapping)
	return nil
}

type fakeAppUserStore struct {
	users map[string]*models.AppUser
}

func (f *fakeAppUserStore) GetAppUser(_ context.Context, appUserID string) (*models.AppUser, error) {
	user, ok := f.users[appUserID]
	if !ok {
		return nil, services.ErrAppUserNotFound
	}
	return user, nil
}

func newConnectRouter(t *testing.T, store *fakeConnectStore) (*gin.Engine, *services.SessionService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions, err := services.NewSessionService("test-session-secret", time.Hour)
	require.NoError(t, err)

	users := &fakeAppUserStore{users: map[string]*models.AppUser{
		"app-user-1": {ID: "app-user-1", Username: "alice"},
	}}

	router := gin.New()
	router.GET("/slack/connect/:nonce/", middleware.SessionAuth(sessions, users), NewConnectHandler(store).HandleConnect)
	return router, sessions
}

func sessionCookie(sessions *services.SessionService, appUserID string) *http.Cookie {
	token, _ := sessions.Issue(appUserID)
	return &http.Cookie{Name: services.SessionCookieName, Value: token}
}

func TestConnectRequiresSession(t *testing.T) {
	router, _ := newConnectRouter(t, &fakeConnectStore{byNonce: map[string]*models.UserMapping{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slack/connect/some-nonce/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConnectUnknownNonce(t *testing.T) {
	router, sessions := newConnectRouter(t, &fakeConnectStore{byNonce: map[string]*models.UserMapping{}})

	req := httptest.NewRequest(http.MethodGet, "/slack/connect/some-nonce/", nil)
	req.AddCookie(sessionCookie(sessions, "app-user-1"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectLinksSessionUser(t *testing.T) {
	store := &fakeConnectStore{byNonce: map[string]*models.UserMapping{
		"nonce-123": {
			SlackUserID: "U0ALICE",
			SlackTeamID: "T0TEAM",
			Nonce:       "nonce-123",
		},
	}}
	router, sessions := newConnectRouter(t, store)

	req := httptest.NewRequest(http.MethodGet, "/slack/connect/nonce-123/", nil)
	req.AddCookie(sessionCookie(sessions, "app-user-1"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Slack account linked")
	assert.Contains(t, w.Body.String(), "alice")

	require.Len(t, store.saved, 1)
	assert.Equal(t, "app-user-1", store.saved[0].AppUserID)
	assert.Equal(t, "U0ALICE", store.saved[0].SlackUserID)
}

func TestConnectRejectsExpiredSession(t *testing.T) {
	router, _ := newConnectRouter(t, &fakeConnectStore{byNonce: map[string]*models.UserMapping{}})

	req := httptest.NewRequest(http.MethodGet, "/slack/connect/some-nonce/", nil)
	req.AddCookie(&http.Cookie{Name: services.SessionCookieName, Value: "app-user-1.12345.deadbeef"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
