package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-api/cache"
	"messenger-api/config"
	"messenger-api/models"
	"messenger-api/repositories"
	"messenger-api/services"
	"messenger-api/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	t        *testing.T
	router   *gin.Engine
	store    *repositories.MemoryStore
	registry *services.SessionRegistry
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	c := cache.NewMemoryCache()
	presence := services.NewPresenceService(c, store, time.Hour)
	media := storage.NewMemoryStore("https://media.test")
	registry := services.NewSessionRegistry(&services.Dependencies{
		Store:    store,
		Blobs:    media,
		Presence: presence,
		Log:      zap.NewNop(),
	})

	r := gin.New()
	r.Use(SetupCORS())
	SetupRoutes(r, Deps{
		Config:   &config.Config{DevRoutes: true},
		Store:    store,
		Registry: registry,
		Tokens:   services.NewTokenService("test-secret", time.Hour, c),
		Presence: presence,
		Log:      zap.NewNop(),
		Media:    media,
	})
	return &apiFixture{t: t, router: r, store: store, registry: registry}
}

func (f *apiFixture) call(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (f *apiFixture) register(name, email string) (token, userID string) {
	f.t.Helper()
	w, body := f.call(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": name, "email": email, "password": "Secret-pass1",
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	user := body["user"].(map[string]interface{})
	return body["token"].(string), user["id"].(string)
}

func data(body map[string]interface{}) map[string]interface{} {
	d, _ := body["data"].(map[string]interface{})
	return d
}

func TestPing(t *testing.T) {
	f := newAPIFixture(t)
	w, body := f.call(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", body["message"])
	assert.Equal(t, "ok", body["store"])
}

func TestAuthFlow(t *testing.T) {
	f := newAPIFixture(t)
	token, userID := f.register("Ann Lee", "ann@example.com")

	w, body := f.call(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, body["user"].(map[string]interface{})["id"])

	w, _ = f.call(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ann@example.com", "password": "nope-Nope1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = f.call(http.MethodPost, "/api/v1/auth/register", "", gin.H{"name": "Ann", "email": "ann@example.com", "password": "Secret-pass1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "registration", body["kind"])

	w, body = f.call(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ann@example.com", "password": "Secret-pass1"})
	require.Equal(t, http.StatusOK, w.Code)
	second := body["token"].(string)
	assert.Equal(t, 2, f.registry.Len())

	w, _ = f.call(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.call(http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a logged out token is revoked")

	w, _ = f.call(http.MethodGet, "/api/v1/session", second, nil)
	assert.Equal(t, http.StatusOK, w.Code, "other sessions stay signed in")
}

func TestFriendAndChatFlow(t *testing.T) {
	f := newAPIFixture(t)
	annToken, _ := f.register("Ann", "ann@example.com")
	bobToken, bobID := f.register("Bob", "bob@example.com")

	w, body := f.call(http.MethodGet, "/api/v1/users/search?q=bo", annToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["users"], 1)

	w, body = f.call(http.MethodPost, "/api/v1/friends/requests/"+bobID, annToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	requestID := data(body)["id"].(string)

	w, _ = f.call(http.MethodPost, "/api/v1/friends/requests/"+bobID, annToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = f.call(http.MethodGet, "/api/v1/friends/requests", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["incoming"], 1)

	w, _ = f.call(http.MethodPost, "/api/v1/friends/requests/"+requestID+"/accept", annToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = f.call(http.MethodPost, "/api/v1/friends/requests/"+requestID+"/accept", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = f.call(http.MethodGet, "/api/v1/friends", annToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["friends"], 1)

	w, body = f.call(http.MethodPost, "/api/v1/chats", annToken, gin.H{"recipient_id": bobID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	chatID := data(body)["id"].(string)

	w, _ = f.call(http.MethodPost, "/api/v1/chats/selected/messages", annToken, gin.H{"content": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no chat selected yet")

	w, _ = f.call(http.MethodPut, "/api/v1/chats/selected", annToken, gin.H{"chat_id": chatID})
	require.Equal(t, http.StatusOK, w.Code)
	w, body = f.call(http.MethodPost, "/api/v1/chats/selected/messages", annToken, gin.H{"content": "hello"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "sent", data(body)["status"])

	w, body = f.call(http.MethodGet, "/api/v1/chats", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	chats := body["chats"].([]interface{})
	require.Len(t, chats, 1)
	chat := chats[0].(map[string]interface{})
	assert.Equal(t, float64(1), chat["unread_count"])
	assert.Equal(t, "delivered", chat["last_message"].(map[string]interface{})["status"])

	w, body = f.call(http.MethodGet, "/api/v1/chats/"+chatID, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages := body["conversation"].(map[string]interface{})["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "read", messages[0].(map[string]interface{})["status"])

	w, body = f.call(http.MethodGet, "/api/v1/session", annToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, chatID, body["selected_chat"])

	w, body = f.call(http.MethodGet, "/api/v1/debug/sessions", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
}

func TestAttachMediaUpload(t *testing.T) {
	f := newAPIFixture(t)
	annToken, _ := f.register("Ann", "ann@example.com")
	_, bobID := f.register("Bob", "bob@example.com")

	_, body := f.call(http.MethodPost, "/api/v1/chats", annToken, gin.H{"recipient_id": bobID})
	chatID := data(body)["id"].(string)
	w, _ := f.call(http.MethodPut, "/api/v1/chats/selected", annToken, gin.H{"chat_id": chatID})
	require.Equal(t, http.StatusOK, w.Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/selected/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+annToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	media := data(resp)["media"].([]interface{})
	require.Len(t, media, 1)
	assert.Equal(t, "file", media[0].(map[string]interface{})["type"], "multipart parts default to octet-stream")

	link, err := url.Parse(media[0].(map[string]interface{})["url"].(string))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.Path, "/media/"+chatID+"/"), link.Path)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, link.Path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/"+chatID+"/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	f := newAPIFixture(t)
	token, userID := f.register("Root", "root@example.com")
	require.NoError(t, f.store.PutFeature(context.Background(), models.FeatureToggle{
		ID: "f-media", Name: models.FeatureMediaAttachments, Category: models.FeatureCategoryMessaging, Enabled: true,
	}))

	w, _ := f.call(http.MethodGet, "/api/v1/admin/features", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, f.store.SetRole(context.Background(), userID, models.RoleAdmin))
	// /auth/me reloads the principal, picking up the new role.
	w, _ = f.call(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := f.call(http.MethodGet, "/api/v1/admin/features", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["features"], 1)

	w, _ = f.call(http.MethodPut, "/api/v1/admin/features/f-media", token, gin.H{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code)
	feature, err := f.store.GetFeatureByName(context.Background(), models.FeatureMediaAttachments)
	require.NoError(t, err)
	assert.False(t, feature.Enabled)

	w, body = f.call(http.MethodGet, "/api/v1/admin/metrics?window=30d", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30d", body["window"])
	assert.Equal(t, float64(1), body["total_users"])

	w, _ = f.call(http.MethodGet, "/api/v1/admin/metrics?window=soon", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chats", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	r := gin.New()
	r.Use(SetupCORS("https://app.example.com"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
