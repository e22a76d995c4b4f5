package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/sensory"
	"github.com/tvtantrum/tantrum/pkg/models"
)

type SensoryHandler struct {
	normalizer *sensory.Normalizer
	validator  *validator.Validate
	logger     *logrus.Logger
}

func NewSensoryHandler(normalizer *sensory.Normalizer, logger *logrus.Logger) *SensoryHandler {
	return &SensoryHandler{
		normalizer: normalizer,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Normalize maps each raw descriptor in the request onto a canonical level.
// Keys are echoed back unchanged and double as the metric name in fallback
// reports.
func (h *SensoryHandler) Normalize(c *gin.Context) {
	var request models.SensoryNormalizeRequest
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
				"message": "Between 1 and 50 values are required",
				"details": err.Error(),
			},
		})
		return
	}

	results := make(map[string]models.SensoryNormalizeResult, len(request.Values))
	for field, raw := range request.Values {
		result := models.SensoryNormalizeResult{
			Raw:   raw,
			Level: h.normalizer.NormalizeString(field, raw),
		}
		if raw != nil {
			result.Recognized = sensory.Classify(*raw).Kind == sensory.KindRecognized
		}
		results[field] = result
	}

	c.JSON(http.StatusOK, models.SensoryNormalizeResponse{Results: results})
}

func (h *SensoryHandler) Levels(c *gin.Context) {
	levels := sensory.Levels()
	out := make([]gin.H, 0, len(levels))
	for _, l := range levels {
		out = append(out, gin.H{
			"level": l.String(),
			"rank":  l.Rank(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"levels": out})
}
