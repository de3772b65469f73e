package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ignews-service/internal/config"
	"ignews-service/internal/users"
	"ignews-service/internal/users/memstore"
	"ignews-service/internal/users/redislock"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		AppPort:             "0",
		LogLevel:            "info",
		GitHubClientID:      "id",
		GitHubClientSecret:  "secret",
		GitHubRedirectURL:   "http://localhost/oauth/callback/github",
		UserStore:           config.UserStoreMemory,
		UserLockTTL:         time.Second,
		UpsertMaxRetries:    1,
		UpsertRetryBase:     time.Millisecond,
		ContentDocumentType: "publication",
		ContentPageSize:     100,
	}
}

func TestSetupInfraMemory(t *testing.T) {
	infra, err := SetupInfra(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close() })

	assert.IsType(t, &memstore.Store{}, infra.Users)
	assert.Nil(t, infra.Redis)

	svc := infra.UserService(testConfig())
	first, err := svc.Upsert(context.Background(), "Alice@Example.com")
	require.NoError(t, err)
	second, err := svc.Upsert(context.Background(), "alice@example.COM")
	require.NoError(t, err)

	assert.Equal(t, users.Created, first.Outcome)
	assert.Equal(t, users.Fetched, second.Outcome)
	assert.Equal(t, first.Record.ID, second.Record.ID)
}

func TestSetupInfraWithLock(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.UserStoreLock = true

	infra, err := SetupInfra(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close() })

	require.NotNil(t, infra.Redis)
	assert.IsType(t, &redislock.Store{}, infra.Users)

	res, err := infra.UserService(cfg).Upsert(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, users.Created, res.Outcome)
}

func TestSetupInfraRedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := SetupInfra(context.Background(), cfg)
	require.Error(t, err)
}

func TestSetupInfraUnknownStore(t *testing.T) {
	cfg := testConfig()
	cfg.UserStore = "cassandra"

	_, err := SetupInfra(context.Background(), cfg)
	require.Error(t, err)
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	infra, err := SetupInfra(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close() })

	router, err := setupHTTP(context.Background(), cfg, infra)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth/providers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"github"}, body["providers"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// no CMS configured
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterWithoutProviders(t *testing.T) {
	cfg := testConfig()
	cfg.GitHubClientID = ""

	infra, err := SetupInfra(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close() })

	_, err = setupHTTP(context.Background(), cfg, infra)
	require.ErrorIs(t, err, ErrNoProvider)
}
