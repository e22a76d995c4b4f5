package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchStatusFromFields(t *testing.T) {
	batchID := uuid.New()

	tests := []struct {
		name     string
		fields   map[string]string
		status   string
		progress int
	}{
		{
			name:   "nothing processed",
			fields: map[string]string{"total": "4", "source": "sheets"},
			status: BatchStatusQueued,
		},
		{
			name:     "partially processed",
			fields:   map[string]string{"total": "4", "inserted": "1", "rejected": "1"},
			status:   BatchStatusProcessing,
			progress: 50,
		},
		{
			name:     "all processed",
			fields:   map[string]string{"total": "3", "inserted": "1", "updated": "1", "rejected": "1"},
			status:   BatchStatusCompleted,
			progress: 100,
		},
		{
			name:   "counters before create",
			fields: map[string]string{"inserted": "2"},
			status: BatchStatusProcessing,
		},
		{
			name:   "garbage counters",
			fields: map[string]string{"total": "x", "inserted": "y"},
			status: BatchStatusQueued,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := batchStatusFromFields(batchID, tt.fields)

			assert.Equal(t, batchID.String(), status.BatchID)
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, tt.progress, status.Progress)
		})
	}
}

func TestBatchStatusFromFields_ParsesMetadata(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	status := batchStatusFromFields(uuid.New(), map[string]string{
		"source":     "omdb",
		"total":      "2",
		"updated":    "2",
		"created_at": created.Format(time.RFC3339),
	})

	assert.Equal(t, "omdb", status.Source)
	assert.Equal(t, 2, status.Updated)
	assert.True(t, created.Equal(status.CreatedAt))
}

func TestImportBatchTracker_WithoutRedis(t *testing.T) {
	ctx := context.Background()
	tracker := NewImportBatchTracker(nil, 0, quietLogger())

	assert.NoError(t, tracker.Create(ctx, uuid.New(), "manual", 3))
	assert.NotPanics(t, func() { tracker.Record(ctx, uuid.New(), IngestionInserted) })

	_, err := tracker.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrBatchTrackingDisabled)
}

func TestImportBatchTracker_UnreachableRedis(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	tracker := NewImportBatchTracker(client, time.Hour, quietLogger())

	assert.Error(t, tracker.Create(ctx, uuid.New(), "manual", 3))
	assert.NotPanics(t, func() { tracker.Record(ctx, uuid.New(), IngestionUpdated) })

	_, err := tracker.Get(ctx, uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBatchNotFound)
}

func TestImportBatchTracker_RoundTrip(t *testing.T) {
	server, client := newMiniRedis(t)
	tracker := NewImportBatchTracker(client, time.Hour, quietLogger())
	ctx := context.Background()
	batchID := uuid.New()

	require.NoError(t, tracker.Create(ctx, batchID, "sheets", 3))

	status, err := tracker.Get(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusQueued, status.Status)
	assert.Equal(t, "sheets", status.Source)
	assert.Equal(t, 3, status.Total)

	tracker.Record(ctx, batchID, IngestionInserted)
	tracker.Record(ctx, batchID, IngestionUpdated)

	status, err = tracker.Get(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusProcessing, status.Status)
	assert.Equal(t, 66, status.Progress)

	tracker.Record(ctx, batchID, BatchOutcomeRejected)

	status, err = tracker.Get(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusCompleted, status.Status)
	assert.Equal(t, 1, status.Inserted)
	assert.Equal(t, 1, status.Updated)
	assert.Equal(t, 1, status.Rejected)
	assert.Equal(t, time.Hour, server.TTL(batchKey(batchID)))

	_, err = tracker.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrBatchNotFound)
}
