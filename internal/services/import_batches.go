package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/pkg/models"
)

const (
	BatchStatusQueued     = "queued"
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"

	// BatchOutcomeRejected counts records that ended in the DLQ.
	BatchOutcomeRejected = "rejected"

	defaultBatchTTL = 24 * time.Hour
)

var (
	ErrBatchNotFound         = errors.New("import batch not found")
	ErrBatchTrackingDisabled = errors.New("import batch tracking is disabled")
)

// ImportBatchTracker keeps per-batch ingestion counters in a Redis hash. A
// nil client turns every write into a no-op.
type ImportBatchTracker struct {
	redisClient *redis.Client
	ttl         time.Duration
	logger      *logrus.Logger
}

func NewImportBatchTracker(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *ImportBatchTracker {
	if ttl <= 0 {
		ttl = defaultBatchTTL
	}
	return &ImportBatchTracker{
		redisClient: redisClient,
		ttl:         ttl,
		logger:      logger,
	}
}

func batchKey(batchID uuid.UUID) string {
	return "import_batch:" + batchID.String()
}

// Create records the batch size. Counters written before Create are kept.
func (t *ImportBatchTracker) Create(ctx context.Context, batchID uuid.UUID, source string, total int) error {
	if t == nil || t.redisClient == nil {
		return nil
	}

	key := batchKey(batchID)
	pipe := t.redisClient.TxPipeline()
	pipe.HSet(ctx, key,
		"source", source,
		"total", total,
		"created_at", time.Now().UTC().Format(time.RFC3339),
	)
	pipe.Expire(ctx, key, t.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create import batch: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"batch_id": batchID,
		"total":    total,
	}).Debug("Import batch created")

	return nil
}

// Record bumps the counter for outcome. Failures are logged only.
func (t *ImportBatchTracker) Record(ctx context.Context, batchID uuid.UUID, outcome string) {
	if t == nil || t.redisClient == nil || batchID == uuid.Nil {
		return
	}

	key := batchKey(batchID)
	pipe := t.redisClient.TxPipeline()
	pipe.HIncrBy(ctx, key, outcome, 1)
	pipe.Expire(ctx, key, t.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.WithError(err).WithFields(logrus.Fields{
			"batch_id": batchID,
			"outcome":  outcome,
		}).Warn("Failed to record import batch progress")
	}
}

func (t *ImportBatchTracker) Get(ctx context.Context, batchID uuid.UUID) (*models.ImportBatchStatus, error) {
	if t == nil || t.redisClient == nil {
		return nil, ErrBatchTrackingDisabled
	}

	fields, err := t.redisClient.HGetAll(ctx, batchKey(batchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load import batch: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrBatchNotFound
	}

	return batchStatusFromFields(batchID, fields), nil
}

// batchStatusFromFields derives the status from the raw hash. Unparseable
// counters read as zero.
func batchStatusFromFields(batchID uuid.UUID, fields map[string]string) *models.ImportBatchStatus {
	count := func(name string) int {
		n, _ := strconv.Atoi(fields[name])
		return n
	}

	status := &models.ImportBatchStatus{
		BatchID:  batchID.String(),
		Source:   fields["source"],
		Total:    count("total"),
		Inserted: count(IngestionInserted),
		Updated:  count(IngestionUpdated),
		Rejected: count(BatchOutcomeRejected),
	}
	if createdAt, err := time.Parse(time.RFC3339, fields["created_at"]); err == nil {
		status.CreatedAt = createdAt
	}

	done := status.Inserted + status.Updated + status.Rejected
	switch {
	case status.Total > 0 && done >= status.Total:
		status.Status = BatchStatusCompleted
		status.Progress = 100
	case done > 0:
		status.Status = BatchStatusProcessing
		if status.Total > 0 {
			status.Progress = done * 100 / status.Total
		}
	default:
		status.Status = BatchStatusQueued
	}

	return status
}
