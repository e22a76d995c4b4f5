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

const (
	defaultPageSize = 50
	maxShowLimit    = 100
)

type ShowHandler struct {
	shows     services.ShowServiceInterface
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewShowHandler(shows services.ShowServiceInterface, logger *logrus.Logger) *ShowHandler {
	return &ShowHandler{
		shows:     shows,
		validator: validator.New(),
		logger:    logger,
	}
}

// List serves the catalog page: GET /shows?search=&age_group=&themes=&sort=...
func (h *ShowHandler) List(c *gin.Context) {
	var filter models.ShowFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY_PARAM", err.Error())
		return
	}

	if err := h.validator.Struct(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Invalid show filter",
				"details": err.Error(),
			},
		})
		return
	}

	if filter.Limit == 0 {
		filter.Limit = defaultPageSize
	}

	shows, err := h.shows.ListShows(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list shows")
		respondError(c, http.StatusInternalServerError, "SHOW_LIST_FAILED", "Failed to list shows")
		return
	}

	c.JSON(http.StatusOK, models.ShowListResponse{
		Shows:  shows,
		Count:  len(shows),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (h *ShowHandler) Popular(c *gin.Context) {
	limit, ok := queryLimit(c, maxShowLimit)
	if !ok {
		return
	}

	shows, err := h.shows.GetPopularShows(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load popular shows")
		respondError(c, http.StatusInternalServerError, "SHOW_LIST_FAILED", "Failed to load popular shows")
		return
	}

	c.JSON(http.StatusOK, models.ShowListResponse{
		Shows: shows,
		Count: len(shows),
		Limit: limit,
	})
}

func (h *ShowHandler) Get(c *gin.Context) {
	showID, ok := parseShowID(c)
	if !ok {
		return
	}

	show, err := h.shows.GetShow(c.Request.Context(), showID)
	if err != nil {
		h.showError(c, showID, err, "Failed to load show")
		return
	}

	c.JSON(http.StatusOK, show)
}

// Similar ranks shows against a single seed show.
func (h *ShowHandler) Similar(c *gin.Context) {
	showID, ok := parseShowID(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c, maxShowLimit)
	if !ok {
		return
	}

	similar, err := h.shows.GetSimilarShows(c.Request.Context(), showID, limit)
	if err != nil {
		h.showError(c, showID, err, "Failed to load similar shows")
		return
	}

	c.JSON(http.StatusOK, models.SimilarShowsResponse{
		SeedShowID: showID,
		Shows:      similar,
	})
}

func (h *ShowHandler) AlsoFavorited(c *gin.Context) {
	showID, ok := parseShowID(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c, maxShowLimit)
	if !ok {
		return
	}

	shows, err := h.shows.AlsoFavorited(c.Request.Context(), showID, limit)
	if err != nil {
		h.showError(c, showID, err, "Failed to load also-favorited shows")
		return
	}

	c.JSON(http.StatusOK, models.ShowListResponse{
		Shows: shows,
		Count: len(shows),
		Limit: limit,
	})
}

func (h *ShowHandler) showError(c *gin.Context, showID int64, err error, message string) {
	if errors.Is(err, services.ErrShowNotFound) {
		respondError(c, http.StatusNotFound, "SHOW_NOT_FOUND", "Show not found")
		return
	}

	h.logger.WithError(err).WithField("show_id", showID).Error(message)
	respondError(c, http.StatusInternalServerError, "SHOW_LOOKUP_FAILED", message)
}
