package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/tvtantrum/tantrum/pkg/models"
)

// ShowServiceInterface is what the HTTP layer needs from the catalog.
type ShowServiceInterface interface {
	ListShows(ctx context.Context, filter models.ShowFilter) ([]models.Show, error)
	GetShow(ctx context.Context, id int64) (*models.Show, error)
	GetPopularShows(ctx context.Context, limit int) ([]models.Show, error)
	GetSimilarShows(ctx context.Context, showID int64, limit int) ([]models.ScoredShow, error)
	AlsoFavorited(ctx context.Context, showID int64, limit int) ([]models.Show, error)
	ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.Show, error)
	AddFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error)
	RemoveFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error)
}

// RecommenderInterface is what the HTTP layer needs from the recommender.
type RecommenderInterface interface {
	RecommendSimilarShows(ctx context.Context, userID uuid.UUID, limit int) (*RecommendationResult, error)
}

// ShowPublisher queues raw import records for ingestion.
type ShowPublisher interface {
	PublishShowRecords(ctx context.Context, batchID uuid.UUID, source string, records []models.ShowImportRecord) error
}

// BatchTracker records and reports import batch progress.
type BatchTracker interface {
	Create(ctx context.Context, batchID uuid.UUID, source string, total int) error
	Get(ctx context.Context, batchID uuid.UUID) (*models.ImportBatchStatus, error)
}
