package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/internal/sensory"
	"github.com/tvtantrum/tantrum/internal/store"
	"github.com/tvtantrum/tantrum/pkg/models"
)

var ErrShowNotFound = store.ErrShowNotFound

// CatalogStore is the full read/write surface the catalog needs.
type CatalogStore interface {
	ShowStore
	ListShows(ctx context.Context, filter models.ShowFilter) ([]models.Show, error)
	GetShow(ctx context.Context, id int64) (*models.Show, error)
	GetShowsByIDs(ctx context.Context, ids []int64) ([]models.Show, error)
	IncrementViewCount(ctx context.Context, id int64) error
	AddFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error)
	RemoveFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error)
	IsFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error)
}

// FavoriteGraph mirrors favorites for co-favorite lookups.
type FavoriteGraph interface {
	AddFavorite(ctx context.Context, userID uuid.UUID, showID int64) error
	RemoveFavorite(ctx context.Context, userID uuid.UUID, showID int64) error
	AlsoFavorited(ctx context.Context, showID int64, limit int) ([]int64, error)
}

// CacheInvalidator drops derived per-user data after a favorite changes.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// NormalizeShow rewrites every sensory metric of show to its canonical level.
func NormalizeShow(n *sensory.Normalizer, show *models.Show) {
	for _, field := range show.SensoryMetrics.Fields() {
		*field.Value = n.NormalizeString(field.Name, *field.Value)
	}
}

type ShowService struct {
	store       CatalogStore
	graph       FavoriteGraph
	invalidator CacheInvalidator
	normalizer  *sensory.Normalizer
	config      config.RecommendationConfig
	logger      *logrus.Logger
}

func NewShowService(
	store CatalogStore,
	graph FavoriteGraph,
	invalidator CacheInvalidator,
	normalizer *sensory.Normalizer,
	cfg config.RecommendationConfig,
	logger *logrus.Logger,
) *ShowService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultRecommendationLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = defaultMaxLimit
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
	}
	if cfg.CommonThemeRatio <= 0 {
		cfg.CommonThemeRatio = defaultCommonThemeRatio
	}

	return &ShowService{
		store:       store,
		graph:       graph,
		invalidator: invalidator,
		normalizer:  normalizer,
		config:      cfg,
		logger:      logger,
	}
}

func (s *ShowService) limit(limit int) int {
	if limit <= 0 {
		return s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return limit
}

func (s *ShowService) normalizeAll(shows []models.Show) []models.Show {
	for i := range shows {
		NormalizeShow(s.normalizer, &shows[i])
	}
	return shows
}

func (s *ShowService) ListShows(ctx context.Context, filter models.ShowFilter) ([]models.Show, error) {
	shows, err := s.store.ListShows(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list shows: %w", err)
	}
	return s.normalizeAll(shows), nil
}

// GetShow returns the show and counts the view. A failed view update is
// logged, not returned.
func (s *ShowService) GetShow(ctx context.Context, id int64) (*models.Show, error) {
	show, err := s.store.GetShow(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementViewCount(ctx, id); err != nil {
		s.logger.WithError(err).WithField("show_id", id).Warn("Failed to record show view")
	} else {
		show.ViewCount++
	}

	NormalizeShow(s.normalizer, show)
	return show, nil
}

func (s *ShowService) GetPopularShows(ctx context.Context, limit int) ([]models.Show, error) {
	shows, err := s.store.GetPopularShows(ctx, s.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to load popular shows: %w", err)
	}
	return s.normalizeAll(shows), nil
}

// GetSimilarShows ranks catalog shows against a single seed show. With one
// seed every seed theme counts as common.
func (s *ShowService) GetSimilarShows(ctx context.Context, showID int64, limit int) ([]models.ScoredShow, error) {
	seed, err := s.store.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	seeds := []models.Show{*seed}
	profile := BuildTasteProfile(seeds, s.config.CommonThemeRatio)

	candidates, err := s.store.GetCatalogShowsInStimulationRange(ctx,
		profile.AvgStimulationScore-stimulationRadius,
		profile.AvgStimulationScore+stimulationRadius,
		[]int64{seed.ID},
		s.config.CandidateLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate shows: %w", err)
	}

	ranked := RankCandidates(profile, seeds, candidates, s.limit(limit))
	for i := range ranked {
		NormalizeShow(s.normalizer, &ranked[i].Show)
	}

	return ranked, nil
}

func (s *ShowService) ListFavorites(ctx context.Context, userID uuid.UUID) ([]models.Show, error) {
	shows, err := s.store.GetFavoriteShows(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return s.normalizeAll(shows), nil
}

// AddFavorite is idempotent and reports whether the favorite is new.
func (s *ShowService) AddFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error) {
	added, err := s.store.AddFavorite(ctx, userID, showID)
	if err != nil {
		if errors.Is(err, ErrShowNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}

	if added {
		s.afterFavoriteChange(ctx, userID, showID, s.graph.AddFavorite)
	}

	return added, nil
}

// RemoveFavorite reports whether the favorite existed.
func (s *ShowService) RemoveFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error) {
	removed, err := s.store.RemoveFavorite(ctx, userID, showID)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}

	if removed {
		s.afterFavoriteChange(ctx, userID, showID, s.graph.RemoveFavorite)
	}

	return removed, nil
}

func (s *ShowService) IsFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error) {
	return s.store.IsFavorite(ctx, userID, showID)
}

// afterFavoriteChange invalidates cached recommendations and mirrors the
// change into the graph. Both are best effort.
func (s *ShowService) afterFavoriteChange(
	ctx context.Context,
	userID uuid.UUID,
	showID int64,
	mirror func(context.Context, uuid.UUID, int64) error,
) {
	fields := logrus.Fields{"user_id": userID, "show_id": showID}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateUser(ctx, userID); err != nil {
			s.logger.WithError(err).WithFields(fields).Warn("Failed to invalidate cached recommendations")
		}
	}

	if err := mirror(ctx, userID, showID); err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("Failed to mirror favorite into graph")
	}
}

// AlsoFavorited returns shows commonly favorited alongside showID.
func (s *ShowService) AlsoFavorited(ctx context.Context, showID int64, limit int) ([]models.Show, error) {
	if _, err := s.store.GetShow(ctx, showID); err != nil {
		return nil, err
	}

	ids, err := s.graph.AlsoFavorited(ctx, showID, s.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite graph: %w", err)
	}

	shows, err := s.store.GetShowsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load also-favorited shows: %w", err)
	}

	return s.normalizeAll(shows), nil
}
