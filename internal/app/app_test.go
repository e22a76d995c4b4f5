package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/internal/database"
	"github.com/tvtantrum/tantrum/internal/handlers"
	"github.com/tvtantrum/tantrum/internal/services"
)

// offlineRouter wires the full route table over a database with no live
// connections. Only routes that never reach storage are exercised.
func offlineRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = time.Hour
	cfg.Auth.RateLimit.Default = 10
	cfg.Auth.RateLimit.Premium = 100
	cfg.Auth.RateLimit.Window = time.Minute
	cfg.Security.CORS.AllowedOrigins = []string{"*"}
	cfg.Security.CORS.AllowedMethods = []string{"GET", "POST", "DELETE"}
	cfg.Security.CORS.AllowedHeaders = []string{"Authorization", "Content-Type"}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	db := &database.Database{Redis: &database.RedisClients{}}
	svcs, err := services.New(cfg, logger, db, prometheus.NewRegistry())
	require.NoError(t, err)

	return newRouter(cfg, logger, svcs, handlers.New(logger, cfg, svcs))
}

func TestRouter(t *testing.T) {
	router := offlineRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		apiKey         string
		body           string
		expectedStatus int
	}{
		{"health without checks", http.MethodGet, "/health", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"api requires auth", http.MethodGet, "/api/v1/shows", "", "", http.StatusUnauthorized},
		{"sensory levels", http.MethodGet, "/api/v1/sensory/levels", "demo-free-key", "", http.StatusOK},
		{"token exchange", http.MethodPost, "/api/v1/auth/token", "", `{"api_key": "demo-free-key"}`, http.StatusOK},
		{"admin needs admin tier", http.MethodPost, "/api/v1/admin/shows/import", "demo-premium-key", `{}`, http.StatusForbidden},
		{"import disabled", http.MethodPost, "/api/v1/admin/shows/import", "demo-admin-key", `{}`, http.StatusServiceUnavailable},
		{"batch tracking needs redis", http.MethodGet, "/api/v1/admin/shows/import/" + uuid.NewString(), "demo-admin-key", "", http.StatusServiceUnavailable},
		{"unknown route", http.MethodGet, "/api/v1/nope", "demo-free-key", "", http.StatusNotFound},
		{"other user's favorites", http.MethodGet, "/api/v1/users/" + uuid.NewString() + "/favorites", "demo-free-key", "", http.StatusForbidden},
		{"token for another user", http.MethodPost, "/api/v1/auth/token", "", `{"api_key": "demo-free-key", "user_id": "` + uuid.NewString() + `"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+tt.apiKey)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRouterRejectsUserOverrideFromNonAdminKey(t *testing.T) {
	router := offlineRouter(t)
	victim := uuid.NewString()

	for _, path := range []string{
		"/api/v1/users/" + victim + "/favorites",
		"/api/v1/recommendations/" + victim,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer demo-free-key")
		req.Header.Set("X-User-ID", victim)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.Contains(t, w.Body.String(), "USER_OVERRIDE_FORBIDDEN")
	}
}

func TestSetupLogger(t *testing.T) {
	cfg := &config.Config{}
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	logger := setupLogger(cfg)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	cfg.Logging.Level = "shouting"
	assert.Equal(t, logrus.InfoLevel, setupLogger(cfg).GetLevel())
}
