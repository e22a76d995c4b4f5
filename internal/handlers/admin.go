package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/services"
	"github.com/tvtantrum/tantrum/internal/validation"
	"github.com/tvtantrum/tantrum/pkg/models"
)

// AdminHandler handles catalog maintenance requests
type AdminHandler struct {
	publisher services.ShowPublisher
	batches   services.BatchTracker
	schemas   *validation.SchemaValidator
	validator *validator.Validate
	logger    *logrus.Logger
}

// NewAdminHandler creates a new admin handler. A nil publisher disables
// imports.
func NewAdminHandler(
	publisher services.ShowPublisher,
	batches services.BatchTracker,
	schemas *validation.SchemaValidator,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		publisher: publisher,
		batches:   batches,
		schemas:   schemas,
		validator: validator.New(),
		logger:    logger,
	}
}

// ImportShows queues a batch of raw show records for asynchronous ingestion.
func (h *AdminHandler) ImportShows(c *gin.Context) {
	if h.publisher == nil {
		respondError(c, http.StatusServiceUnavailable, "INGESTION_DISABLED", "Show ingestion is not enabled")
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body")
		return
	}

	if result := h.schemas.ValidateImportRequest(body); !result.Valid {
		h.logger.WithField("errors", len(result.Errors)).Warn("Show import failed schema validation")
		c.JSON(http.StatusBadRequest, result.ToAPIError())
		return
	}

	var request models.ShowImportRequest
	if err := json.Unmarshal(body, &request); err != nil {
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
				"message": "Show import validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	batchID := uuid.New()
	if err := h.publisher.PublishShowRecords(c.Request.Context(), batchID, request.Source, request.Records); err != nil {
		h.logger.WithError(err).WithField("batch_id", batchID).Error("Failed to publish show records")
		respondError(c, http.StatusInternalServerError, "PROCESSING_QUEUE_FAILED", "Failed to queue shows for ingestion")
		return
	}

	if err := h.batches.Create(c.Request.Context(), batchID, request.Source, len(request.Records)); err != nil {
		h.logger.WithError(err).WithField("batch_id", batchID).Warn("Failed to track import batch")
	}

	h.logger.WithFields(logrus.Fields{
		"batch_id": batchID,
		"source":   request.Source,
		"records":  len(request.Records),
	}).Info("Show import queued")

	c.JSON(http.StatusAccepted, models.ShowImportResponse{
		BatchID: batchID.String(),
		Queued:  len(request.Records),
		Status:  "queued",
		Message: "Shows queued for ingestion",
	})
}

// ImportStatus reports progress for one import batch.
func (h *AdminHandler) ImportStatus(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_BATCH_ID", "Invalid batch ID format")
		return
	}

	status, err := h.batches.Get(c.Request.Context(), batchID)
	switch {
	case errors.Is(err, services.ErrBatchNotFound):
		respondError(c, http.StatusNotFound, "BATCH_NOT_FOUND", "Import batch not found or expired")
		return
	case errors.Is(err, services.ErrBatchTrackingDisabled):
		respondError(c, http.StatusServiceUnavailable, "BATCH_TRACKING_DISABLED", "Import batch tracking is not available")
		return
	case err != nil:
		h.logger.WithError(err).WithField("batch_id", batchID).Error("Failed to load import batch")
		respondError(c, http.StatusInternalServerError, "BATCH_LOOKUP_FAILED", "Failed to load import batch")
		return
	}

	c.JSON(http.StatusOK, status)
}
