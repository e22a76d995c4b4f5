package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/services"
	"github.com/tvtantrum/tantrum/pkg/models"
)

type FavoriteHandler struct {
	shows     services.ShowServiceInterface
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewFavoriteHandler(shows services.ShowServiceInterface, logger *logrus.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		shows:     shows,
		validator: validator.New(),
		logger:    logger,
	}
}

func (h *FavoriteHandler) List(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok || !authorizeUser(c, userID) {
		return
	}

	shows, err := h.shows.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to list favorites")
		respondError(c, http.StatusInternalServerError, "FAVORITES_LOAD_FAILED", "Failed to load favorites")
		return
	}

	c.JSON(http.StatusOK, models.FavoritesResponse{
		UserID: userID,
		Shows:  shows,
	})
}

// Add is idempotent: favoriting twice returns 200 instead of 201.
func (h *FavoriteHandler) Add(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok || !authorizeUser(c, userID) {
		return
	}

	var request models.FavoriteRequest
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
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Favorite validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	added, err := h.shows.AddFavorite(c.Request.Context(), userID, request.ShowID)
	if err != nil {
		if errors.Is(err, services.ErrShowNotFound) {
			respondError(c, http.StatusNotFound, "SHOW_NOT_FOUND", "Show not found")
			return
		}
		h.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"show_id": request.ShowID,
		}).Error("Failed to add favorite")
		respondError(c, http.StatusInternalServerError, "FAVORITE_UPDATE_FAILED", "Failed to add favorite")
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"user_id": userID,
		"show_id": request.ShowID,
		"added":   added,
	})
}

func (h *FavoriteHandler) Remove(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok || !authorizeUser(c, userID) {
		return
	}
	showID, ok := parseShowID(c)
	if !ok {
		return
	}

	removed, err := h.shows.RemoveFavorite(c.Request.Context(), userID, showID)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"show_id": showID,
		}).Error("Failed to remove favorite")
		respondError(c, http.StatusInternalServerError, "FAVORITE_UPDATE_FAILED", "Failed to remove favorite")
		return
	}

	if !removed {
		respondError(c, http.StatusNotFound, "FAVORITE_NOT_FOUND", "Show is not in favorites")
		return
	}

	c.Status(http.StatusNoContent)
}
