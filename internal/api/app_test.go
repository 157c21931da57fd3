package api

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mfortier/go-groupchat/internal/config"
	"github.com/mfortier/go-groupchat/internal/database"
	"github.com/mfortier/go-groupchat/internal/server"
	"github.com/mfortier/go-groupchat/internal/stats"
	"github.com/mfortier/go-groupchat/internal/testutil"
	"github.com/mfortier/go-groupchat/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestApp(t *testing.T, db database.ChatRepository) (*ChatApp, *http.ServeMux) {
	cfg, err := config.NewConfig(":8080", "host=localhost dbname=groupchat",
		base64.StdEncoding.EncodeToString([]byte("test-signing-secret")),
		t.TempDir(), []string{"http://localhost:3000"})
	if err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	logger := testutil.TestLogger(t)

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return().Times(5)
	cs, err := server.NewChatServer(logger, db, su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}

	gw, err := upload.NewGateway(cfg.MediaDir, "/media", logger)
	if err != nil {
		t.Fatalf("failed to create test gateway: %v", err)
	}

	mux := http.NewServeMux()
	app := NewChatApp(mux, logger, cs, db, gw, cfg)
	return app, mux
}

func TestNewChatApp(t *testing.T) {
	db := &database.MockChatRepository{}
	app, _ := newTestApp(t, db)

	assert.NotNil(t, app.db, "expected a repository")
	assert.NotNil(t, app.cs, "expected a chat server")
	assert.NotNil(t, app.gateway, "expected an upload gateway")
	assert.NotNil(t, app.mux, "expected an HTTP server")
	assert.Equal(t, ":8080", app.mux.Addr, "expected the configured address")
	assert.Equal(t, []byte("test-signing-secret"), app.signingKey, "expected the decoded signing key")
}

func TestRouting(t *testing.T) {
	db := &database.MockChatRepository{}
	_, mux := newTestApp(t, db)

	t.Run("protected routes require a session", func(t *testing.T) {
		for _, route := range []struct {
			method string
			path   string
		}{
			{http.MethodGet, "/api/auth/session"},
			{http.MethodGet, "/api/auth/logout"},
			{http.MethodPost, "/api/chats"},
			{http.MethodGet, "/api/chats"},
			{http.MethodGet, "/api/messages"},
			{http.MethodPost, "/api/uploads"},
			{http.MethodGet, "/ws"},
		} {
			req := httptest.NewRequest(route.method, route.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code,
				"expected %s %s to require a session", route.method, route.path)
		}
	})

	t.Run("register is open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "expected malformed body, not auth, to fail")
	})
}

func TestGenerateShortId(t *testing.T) {
	db := &database.MockChatRepository{}
	app, _ := newTestApp(t, db)

	first, err := app.generateShortId()
	assert.NoError(t, err)
	assert.NotEmpty(t, first, "expected a non-empty id")

	second, err := app.generateShortId()
	assert.NoError(t, err)
	assert.NotEqual(t, first, second, "expected distinct ids")
}
