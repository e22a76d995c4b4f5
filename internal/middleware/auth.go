package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/services"
)

// rateLimitSubjectKey overrides the user ID as the rate-limit bucket.
const rateLimitSubjectKey = "rate_limit_subject"

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// Auth accepts either a JWT or a raw API key as a bearer token.
func Auth(authService *services.AuthService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "MISSING_AUTHORIZATION", "Authorization header is required")
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			abortWithError(c, http.StatusUnauthorized, "INVALID_AUTHORIZATION_FORMAT",
				"Authorization header must be in format 'Bearer <token>'")
			return
		}

		tokenString := tokenParts[1]

		// API keys never contain dots; JWTs always do.
		if !strings.Contains(tokenString, ".") {
			userTier, err := authService.ValidateAPIKey(tokenString)
			if err != nil {
				logger.WithError(err).Warn("Invalid API key")
				abortWithError(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key")
				return
			}

			userID := authService.APIKeyUserID(tokenString)
			if userIDStr := c.GetHeader("X-User-ID"); userIDStr != "" {
				if userTier != services.TierAdmin {
					abortWithError(c, http.StatusForbidden, "USER_OVERRIDE_FORBIDDEN",
						"Only admin keys may act as another user")
					return
				}
				userID, err = uuid.Parse(userIDStr)
				if err != nil {
					abortWithError(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user ID format")
					return
				}
			}

			// Key callers share one bucket per key whatever user they act as.
			c.Set(rateLimitSubjectKey, "key:"+tokenString)
			c.Set("user_id", userID)
			c.Set("user_tier", userTier)
			c.Set("api_key", tokenString)
			c.Next()
			return
		}

		claims, err := authService.ValidateToken(tokenString)
		if err != nil {
			logger.WithError(err).Warn("Invalid JWT token")
			abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_tier", claims.UserTier)
		c.Set("api_key", claims.APIKey)
		c.Next()
	}
}

// RequireTier rejects callers whose tier is not in tiers. It must run after
// Auth.
func RequireTier(tiers ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier := c.GetString("user_tier")
		for _, t := range tiers {
			if tier == t {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, "INSUFFICIENT_TIER", "This endpoint requires "+strings.Join(tiers, " or ")+" access")
	}
}

func GetUserFromContext(c *gin.Context) (uuid.UUID, string, string) {
	userID, _ := c.Get("user_id")
	id, _ := userID.(uuid.UUID)
	return id, c.GetString("user_tier"), c.GetString("api_key")
}
