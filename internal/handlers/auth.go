package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/services"
	"github.com/tvtantrum/tantrum/pkg/models"
)

type TokenIssuer interface {
	ValidateAPIKey(apiKey string) (string, error)
	GenerateToken(userID uuid.UUID, apiKey, userTier string) (string, error)
	APIKeyUserID(apiKey string) uuid.UUID
}

type AuthHandler struct {
	issuer    TokenIssuer
	tokenTTL  time.Duration
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewAuthHandler(issuer TokenIssuer, tokenTTL time.Duration, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		issuer:    issuer,
		tokenTTL:  tokenTTL,
		validator: validator.New(),
		logger:    logger,
	}
}

// Token exchanges an API key for a JWT. The token carries the key's own user
// ID unless an admin key names another user.
func (h *AuthHandler) Token(c *gin.Context) {
	var request models.AuthRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_JSON",
				"message": "Invalid JSON format",
				"details": err.Error(),
			},
		})
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "api_key is required")
		return
	}

	var requested uuid.UUID
	if request.UserID != "" {
		parsed, err := uuid.Parse(request.UserID)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user ID format")
			return
		}
		requested = parsed
	}

	tier, err := h.issuer.ValidateAPIKey(request.APIKey)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key")
		return
	}

	userID := h.issuer.APIKeyUserID(request.APIKey)
	if requested != uuid.Nil {
		if tier != services.TierAdmin {
			respondError(c, http.StatusForbidden, "USER_OVERRIDE_FORBIDDEN", "Only admin keys may request a token for another user")
			return
		}
		userID = requested
	}

	token, err := h.issuer.GenerateToken(userID, request.APIKey, tier)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to issue token")
		respondError(c, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokenTTL).UTC(),
		UserTier:  tier,
	})
}
