package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mfortier/go-groupchat/internal/database"
	"github.com/mfortier/go-groupchat/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestAuthMiddleware(t *testing.T) {
	app, _ := newTestApp(t, &database.MockChatRepository{})

	handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		userId, ok := UserId(r.Context())
		assert.True(t, ok, "expected user id on the request context")
		assert.Equal(t, 7, userId)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects a request without a session cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "not.a.token"})
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("passes a verified identity to the handler", func(t *testing.T) {
		token, err := app.createSessionToken(types.User{Id: 7, Username: "alice"}, sessionTokenLifetime)
		assert.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: token})
		rec := httptest.NewRecorder()
		handler(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store",
			"expected authenticated responses to be uncacheable")
	})
}

func TestErrorHandler(t *testing.T) {
	app, _ := newTestApp(t, &database.MockChatRepository{})

	panicky := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	rec := httptest.NewRecorder()
	panicky.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code, "expected panic to become a 500")
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}
