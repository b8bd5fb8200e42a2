package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-api/cache"
	"messenger-api/models"
	"messenger-api/repositories"
	"messenger-api/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authFixture struct {
	store    *repositories.MemoryStore
	tokens   *services.TokenService
	registry *services.SessionRegistry
	presence *services.PresenceService
	router   *gin.Engine
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	c := cache.NewMemoryCache()
	presence := services.NewPresenceService(c, store, time.Hour)
	f := &authFixture{
		store:    store,
		tokens:   services.NewTokenService("test-secret", time.Hour, c),
		presence: presence,
	}
	f.registry = services.NewSessionRegistry(&services.Dependencies{Store: store, Presence: presence, Log: zap.NewNop()})

	for _, p := range []models.Profile{
		{ID: "ann", Name: "Ann", Email: "ann@example.com"},
		{ID: "root", Name: "Root", Email: "root@example.com", Role: models.RoleAdmin},
	} {
		p := p
		require.NoError(t, store.CreateProfile(context.Background(), &p))
	}

	r := gin.New()
	auth := r.Group("/", AuthMiddleware(f.tokens, f.registry, presence, zap.NewNop()))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": SessionFrom(c).Identity.Principal().ID, "sid": ClaimsFrom(c).SessionID})
	})
	auth.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	f.router = r
	return f
}

func (f *authFixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareRejectsMissingAndInvalidTokens(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized","message":"Authorization header required","kind":"authentication","code":401}`, w.Body.String())

	w = f.do(http.MethodGet, "/me", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid authorization header format")
}

func TestAuthMiddlewareResumesSession(t *testing.T) {
	f := newAuthFixture(t)
	token, _, err := f.tokens.Issue("ann", "session-1")
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"ann","sid":"session-1"}`, w.Body.String())
	assert.Equal(t, 1, f.registry.Len())
	assert.True(t, f.presence.IsOnline(context.Background(), "ann"))

	w = f.do(http.MethodGet, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.registry.Len(), "the same token reuses its session")
}

func TestAuthMiddlewareRestoresPresenceOfLiveSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	laptop, _, err := f.tokens.Issue("ann", "session-1")
	require.NoError(t, err)
	phone, _, err := f.tokens.Issue("ann", "session-2")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/me", laptop).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/me", phone).Code)

	require.NoError(t, f.registry.Close(ctx, "session-1"))
	assert.True(t, f.presence.IsOnline(ctx, "ann"))

	// heartbeat lost, e.g. expired while the phone sat idle
	require.NoError(t, f.presence.Set(ctx, "ann", models.PresenceOffline))
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/me", phone).Code)
	assert.True(t, f.presence.IsOnline(ctx, "ann"))
}

func TestAuthMiddlewareRejectsRevokedToken(t *testing.T) {
	f := newAuthFixture(t)
	token, claims, err := f.tokens.Issue("ann", "session-1")
	require.NoError(t, err)
	require.NoError(t, f.tokens.Revoke(context.Background(), claims))

	w := f.do(http.MethodGet, "/me", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	token, _, err := f.tokens.Issue("ghost", "session-1")
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/me", token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "profile_lookup")
}

func TestRequireAdmin(t *testing.T) {
	f := newAuthFixture(t)
	userToken, _, err := f.tokens.Issue("ann", "session-ann")
	require.NoError(t, err)
	adminToken, _, err := f.tokens.Issue("root", "session-root")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/admin", userToken).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodGet, "/admin", adminToken).Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(60, 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCleanupLimiters(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	rl.GetLimiter("10.0.0.1")
	rl.CleanupLimiters(time.Hour)
	assert.Len(t, rl.limiters, 1)
	rl.CleanupLimiters(0)
	assert.Empty(t, rl.limiters)
}

func TestValidateJSON(t *testing.T) {
	r := gin.New()
	r.Use(ValidateJSON())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/chats", ok)
	r.POST("/api/v1/chats/selected/media", ok)

	req := httptest.NewRequest(http.MethodPost, "/chats", strings.NewReader("recipient=bob"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/chats", strings.NewReader(`{"recipient_id":"bob"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chats/selected/media", strings.NewReader("--boundary"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=boundary")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandlerAnswersUnwrittenErrors(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { _ = c.Error(assert.AnError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "An unexpected error occurred")
}
