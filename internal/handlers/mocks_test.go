package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/tvtantrum/tantrum/internal/services"
	"github.com/tvtantrum/tantrum/pkg/models"
)

type MockShowService struct {
	mock.Mock
}

func (m *MockShowService) ListShows(ctx context.Context, filter models.ShowFilter) ([]models.Show, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Show), args.Error(1)
}

func (m *MockShowService) GetShow(ctx context.Context, id int64) (*models.Show, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Show), args.Error(1)
}

func (m *MockShowService) GetPopularShows(ctx context.Context, limit int) ([]models.Show, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.Show), args.Error(1)
}

func (m *MockShowService) GetSimilarShows(ctx context.Context, showID int64, limit int) ([]models.ScoredShow, error) {
	args := m.Called(ctx, showID, limit)
	return args.Get(0).([]models.ScoredShow), args.Error(1)
}

func (m *MockShowService) AlsoFavorited(ctx context.Context, showID int64, limit int) ([]models.Show, error) {
	args := m.Called(ctx, showID, limit)
	return args.Get(0).([]models.Show), args.Error(1)
}

func (m *MockShowService) ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.Show, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Show), args.Error(1)
}

func (m *MockShowService) AddFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error) {
	args := m.Called(ctx, userID, showID)
	return args.Bool(0), args.Error(1)
}

func (m *MockShowService) RemoveFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error) {
	args := m.Called(ctx, userID, showID)
	return args.Bool(0), args.Error(1)
}

type MockRecommender struct {
	mock.Mock
}

func (m *MockRecommender) RecommendSimilarShows(ctx context.Context, userID uuid.UUID, limit int) (*services.RecommendationResult, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RecommendationResult), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishShowRecords(ctx context.Context, batchID uuid.UUID, source string, records []models.ShowImportRecord) error {
	args := m.Called(ctx, batchID, source, records)
	return args.Error(0)
}

type MockBatchTracker struct {
	mock.Mock
}

func (m *MockBatchTracker) Create(ctx context.Context, batchID uuid.UUID, source string, total int) error {
	args := m.Called(ctx, batchID, source, total)
	return args.Error(0)
}

func (m *MockBatchTracker) Get(ctx context.Context, batchID uuid.UUID) (*models.ImportBatchStatus, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportBatchStatus), args.Error(1)
}

type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) CheckHealth(ctx context.Context) *services.HealthStatus {
	args := m.Called(ctx)
	return args.Get(0).(*services.HealthStatus)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// asUser simulates the auth middleware.
func asUser(userID uuid.UUID, tier string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("user_tier", tier)
		c.Next()
	}
}

func show(id int64, name string, stim int) models.Show {
	return models.Show{ID: id, Name: name, StimulationScore: stim, Themes: []string{}}
}
