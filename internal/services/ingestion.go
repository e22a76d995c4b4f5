package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/tvtantrum/tantrum/internal/messaging"
	"github.com/tvtantrum/tantrum/internal/sensory"
	"github.com/tvtantrum/tantrum/internal/validation"
	"github.com/tvtantrum/tantrum/pkg/models"
)

const (
	IngestionInserted = "inserted"
	IngestionUpdated  = "updated"
	IngestionInvalid  = "invalid"
	IngestionFailed   = "failed"

	minStimulationScore = 1
	maxStimulationScore = 5
)

// ShowUpserter persists a prepared import record.
type ShowUpserter interface {
	UpsertShow(ctx context.Context, rec models.ShowImportRecord) (int64, bool, error)
}

// BatchRecorder counts terminal per-record outcomes for an import batch.
type BatchRecorder interface {
	Record(ctx context.Context, batchID uuid.UUID, outcome string)
}

// IngestionService turns raw import records into catalog rows.
type IngestionService struct {
	store      ShowUpserter
	schemas    *validation.SchemaValidator
	normalizer *sensory.Normalizer
	batches    BatchRecorder
	metrics    *Metrics
	logger     *logrus.Logger
}

func NewIngestionService(
	store ShowUpserter,
	schemas *validation.SchemaValidator,
	normalizer *sensory.Normalizer,
	batches BatchRecorder,
	metrics *Metrics,
	logger *logrus.Logger,
) *IngestionService {
	return &IngestionService{
		store:      store,
		schemas:    schemas,
		normalizer: normalizer,
		batches:    batches,
		metrics:    metrics,
		logger:     logger,
	}
}

// HandleMessage is the messaging.Handler for the ingestion topic. Invalid
// records fail with messaging.ErrNonRetryable.
func (s *IngestionService) HandleMessage(ctx context.Context, msg messaging.ShowIngestionMessage) error {
	fields := logrus.Fields{
		"batch_id": msg.BatchID,
		"source":   msg.Source,
		"attempt":  msg.RetryCount,
	}

	id, inserted, err := s.Ingest(ctx, msg.Record)
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("Show ingestion failed")
		return err
	}

	fields["show_id"] = id
	fields["inserted"] = inserted
	s.logger.WithFields(fields).Info("Show ingested")

	if s.batches != nil {
		outcome := IngestionUpdated
		if inserted {
			outcome = IngestionInserted
		}
		s.batches.Record(ctx, msg.BatchID, outcome)
	}

	return nil
}

// RecordDeadLetter is the messaging.DeadLetterHook for the ingestion topic.
func (s *IngestionService) RecordDeadLetter(ctx context.Context, msg messaging.ShowIngestionMessage, cause error) {
	s.logger.WithError(cause).WithField("batch_id", msg.BatchID).Warn("Show record dead-lettered")

	if s.batches != nil {
		s.batches.Record(ctx, msg.BatchID, BatchOutcomeRejected)
	}
}

// Ingest validates, prepares and upserts one raw record.
func (s *IngestionService) Ingest(ctx context.Context, raw json.RawMessage) (int64, bool, error) {
	if result := s.schemas.ValidateShowRecord(raw); !result.Valid {
		s.metrics.RecordIngestion(IngestionInvalid)
		return 0, false, fmt.Errorf("%w: %v", messaging.ErrNonRetryable, result.Err())
	}

	var record models.ShowImportRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		s.metrics.RecordIngestion(IngestionInvalid)
		return 0, false, fmt.Errorf("%w: failed to decode record: %v", messaging.ErrNonRetryable, err)
	}

	prepared := s.PrepareRecord(record)

	id, inserted, err := s.store.UpsertShow(ctx, prepared)
	if err != nil {
		s.metrics.RecordIngestion(IngestionFailed)
		return 0, false, err
	}

	if inserted {
		s.metrics.RecordIngestion(IngestionInserted)
	} else {
		s.metrics.RecordIngestion(IngestionUpdated)
	}

	return id, inserted, nil
}

// PrepareRecord normalizes sensory metrics to canonical levels, cleans the
// theme list and settles the stimulation score. A given score is clamped to
// 1..5; a missing one is derived from the normalized metrics when any are
// present.
func (s *IngestionService) PrepareRecord(record models.ShowImportRecord) models.ShowImportRecord {
	record.Name = strings.TrimSpace(record.Name)

	ranks := []float64{}
	for _, field := range record.SensoryMetrics.Fields() {
		level := s.normalizer.NormalizeField(field.Name, *field.Value)
		if level == nil {
			*field.Value = nil
			continue
		}
		label := level.String()
		*field.Value = &label
		ranks = append(ranks, float64(level.Rank()))
	}

	record.Themes = cleanThemes(record.Themes)

	switch {
	case record.StimulationScore != nil:
		score := clampScore(*record.StimulationScore)
		record.StimulationScore = &score
	case len(ranks) > 0:
		score := clampScore(int(math.Round(stat.Mean(ranks, nil))))
		record.StimulationScore = &score
	}

	return record
}

func clampScore(score int) int {
	if score < minStimulationScore {
		return minStimulationScore
	}
	if score > maxStimulationScore {
		return maxStimulationScore
	}
	return score
}

// cleanThemes trims themes and drops blanks and case-insensitive duplicates,
// keeping the first spelling seen.
func cleanThemes(themes []string) []string {
	cleaned := make([]string, 0, len(themes))
	seen := make(map[string]bool, len(themes))
	for _, theme := range themes {
		theme = strings.Join(strings.Fields(theme), " ")
		key := strings.ToLower(theme)
		if theme == "" || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, theme)
	}
	return cleaned
}
