package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/services"
	"github.com/tvtantrum/tantrum/pkg/models"
)

const maxRecommendationLimit = 50

type RecommendationHandler struct {
	recommender services.RecommenderInterface
	logger      *logrus.Logger
}

func NewRecommendationHandler(recommender services.RecommenderInterface, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recommender: recommender,
		logger:      logger,
	}
}

// Get serves GET /recommendations/:userId?limit=
func (h *RecommendationHandler) Get(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok || !authorizeUser(c, userID) {
		return
	}

	limit, ok := queryLimit(c, maxRecommendationLimit)
	if !ok {
		return
	}

	result, err := h.recommender.RecommendSimilarShows(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to generate recommendations")
		respondError(c, http.StatusInternalServerError, "RECOMMENDATION_GENERATION_FAILED", "Failed to generate recommendations")
		return
	}

	recommendations := result.Shows
	if recommendations == nil {
		recommendations = []models.ScoredShow{}
	}

	c.JSON(http.StatusOK, models.RecommendationResponse{
		UserID:          userID,
		Strategy:        result.Strategy,
		Recommendations: recommendations,
		Profile:         result.Profile,
		GeneratedAt:     time.Now().UTC(),
		CacheHit:        result.CacheHit,
	})
}
