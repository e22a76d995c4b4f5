package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/internal/services"
)

type Handlers struct {
	Auth           *AuthHandler
	Health         *HealthHandler
	Shows          *ShowHandler
	Favorites      *FavoriteHandler
	Recommendation *RecommendationHandler
	Sensory        *SensoryHandler
	Admin          *AdminHandler
}

func New(logger *logrus.Logger, cfg *config.Config, svcs *services.Services) *Handlers {
	// A nil *MessageBus must not become a non-nil interface.
	var publisher services.ShowPublisher
	if svcs.MessageBus != nil {
		publisher = svcs.MessageBus
	}

	return &Handlers{
		Auth:           NewAuthHandler(svcs.Auth, cfg.Auth.TokenTTL, logger),
		Health:         NewHealthHandler(logger, svcs.Health),
		Shows:          NewShowHandler(svcs.Shows, logger),
		Favorites:      NewFavoriteHandler(svcs.Shows, logger),
		Recommendation: NewRecommendationHandler(svcs.Recommender, logger),
		Sensory:        NewSensoryHandler(svcs.Normalizer, logger),
		Admin:          NewAdminHandler(publisher, svcs.Batches, svcs.Schemas, logger),
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

func parseShowID(c *gin.Context) (int64, bool) {
	showID, err := strconv.ParseInt(c.Param("showId"), 10, 64)
	if err != nil || showID <= 0 {
		respondError(c, http.StatusBadRequest, "INVALID_SHOW_ID", "Show ID must be a positive integer")
		return 0, false
	}
	return showID, true
}

// queryLimit reads ?limit=. An absent value yields 0 so the service default
// applies.
func queryLimit(c *gin.Context, max int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 || limit > max {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY_PARAM",
			"Limit must be an integer between 0 and "+strconv.Itoa(max))
		return 0, false
	}
	return limit, true
}

// authorizeUser lets a caller act on its own user ID. Admins may act on any
// user. Requests that did not pass through the auth middleware are allowed.
func authorizeUser(c *gin.Context, userID uuid.UUID) bool {
	caller, exists := c.Get("user_id")
	if !exists {
		return true
	}
	if c.GetString("user_tier") == services.TierAdmin {
		return true
	}
	if id, ok := caller.(uuid.UUID); ok && id == userID {
		return true
	}

	respondError(c, http.StatusForbidden, "FORBIDDEN", "Cannot access another user's data")
	return false
}
