package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/internal/services"
	"github.com/tvtantrum/tantrum/pkg/models"
)

func newAuthService() *services.AuthService {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = time.Hour
	return services.NewAuthService(cfg, testLogger(), nil)
}

func TestAuthHandler_Token(t *testing.T) {
	authService := newAuthService()
	router := testRouter()
	router.POST("/auth/token", NewAuthHandler(authService, time.Hour, testLogger()).Token)

	userID := uuid.New()

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"admin acting as user", `{"api_key": "demo-admin-key", "user_id": "` + userID.String() + `"}`, http.StatusOK},
		{"key identity", `{"api_key": "demo-free-key"}`, http.StatusOK},
		{"non-admin naming another user", `{"api_key": "demo-premium-key", "user_id": "` + userID.String() + `"}`, http.StatusForbidden},
		{"unknown key", `{"api_key": "nope"}`, http.StatusUnauthorized},
		{"missing key", `{}`, http.StatusBadRequest},
		{"bad user id", `{"api_key": "demo-free-key", "user_id": "x"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var response models.AuthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

			claims, err := authService.ValidateToken(response.Token)
			require.NoError(t, err)
			assert.Equal(t, response.UserID, claims.UserID)
			assert.Equal(t, response.UserTier, claims.UserTier)
			assert.True(t, response.ExpiresAt.After(time.Now()))
		})
	}
}

func TestAuthHandler_TokenIdentity(t *testing.T) {
	authService := newAuthService()
	router := testRouter()
	router.POST("/auth/token", NewAuthHandler(authService, time.Hour, testLogger()).Token)

	issue := func(body string) models.AuthResponse {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var response models.AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		return response
	}

	first := issue(`{"api_key": "demo-free-key"}`)
	second := issue(`{"api_key": "demo-free-key"}`)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, authService.APIKeyUserID("demo-free-key"), first.UserID)

	victim := uuid.New()
	admin := issue(`{"api_key": "demo-admin-key", "user_id": "` + victim.String() + `"}`)
	assert.Equal(t, victim, admin.UserID)
	assert.Equal(t, services.TierAdmin, admin.UserTier)
}
