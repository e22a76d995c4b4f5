package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/internal/sensory"
	"github.com/tvtantrum/tantrum/pkg/models"
)

const (
	StrategySimilar = "similar"
	StrategyPopular = "popular"

	// maxClosenessPoints is awarded to a candidate whose stimulation score
	// equals the profile average.
	maxClosenessPoints = 5
	themeMatchPoints   = 3
	stimulationRadius  = 1

	defaultRecommendationLimit = 5
	defaultMaxLimit            = 50
	defaultCandidateLimit      = 500
	defaultCommonThemeRatio    = 0.25
	defaultCacheTTL            = 15 * time.Minute
)

// ShowStore is the storage the recommender reads from.
type ShowStore interface {
	GetFavoriteShows(ctx context.Context, userID uuid.UUID) ([]models.Show, error)
	GetPopularShows(ctx context.Context, limit int) ([]models.Show, error)
	GetCatalogShowsInStimulationRange(ctx context.Context, min, max int, excluding []int64, limit int) ([]models.Show, error)
}

// RecommendationResult is what RecommendSimilarShows produces and what is
// cached per user. FavoriteIDs records the sorted favorites it was computed
// from; a cached result is only served while they still match.
type RecommendationResult struct {
	Strategy    string               `json:"strategy"`
	Shows       []models.ScoredShow  `json:"shows"`
	Profile     *models.TasteProfile `json:"profile,omitempty"`
	FavoriteIDs []int64              `json:"favorite_ids"`
	CacheHit    bool                 `json:"-"`
}

// ShowList returns the recommended shows without scores.
func (r *RecommendationResult) ShowList() []models.Show {
	shows := make([]models.Show, len(r.Shows))
	for i, scored := range r.Shows {
		shows[i] = scored.Show
	}
	return shows
}

// BuildTasteProfile aggregates favorites into an average stimulation score and
// the set of themes shared by at least max(1, ceil(n*ratio)) favorites.
// Common themes keep first-seen order.
func BuildTasteProfile(favorites []models.Show, commonThemeRatio float64) models.TasteProfile {
	profile := models.TasteProfile{
		FavoriteCount: len(favorites),
		ThemeCounts:   make(map[string]int),
		CommonThemes:  []string{},
	}
	if len(favorites) == 0 {
		return profile
	}
	if commonThemeRatio <= 0 {
		commonThemeRatio = defaultCommonThemeRatio
	}

	scores := make([]float64, len(favorites))
	order := []string{}
	for i, show := range favorites {
		scores[i] = float64(show.StimulationScore)

		seen := make(map[string]bool, len(show.Themes))
		for _, theme := range show.Themes {
			if seen[theme] {
				continue
			}
			seen[theme] = true
			if _, ok := profile.ThemeCounts[theme]; !ok {
				order = append(order, theme)
			}
			profile.ThemeCounts[theme]++
		}
	}

	profile.AvgStimulationScore = int(math.Round(stat.Mean(scores, nil)))

	threshold := int(math.Ceil(float64(len(favorites)) * commonThemeRatio))
	if threshold < 1 {
		threshold = 1
	}
	for _, theme := range order {
		if profile.ThemeCounts[theme] >= threshold {
			profile.CommonThemes = append(profile.CommonThemes, theme)
		}
	}

	return profile
}

// ScoreCandidate rates show against profile: stimulation closeness (at most
// five points) plus three points per distinct common theme it carries.
func ScoreCandidate(profile models.TasteProfile, show models.Show) int {
	distance := show.StimulationScore - profile.AvgStimulationScore
	if distance < 0 {
		distance = -distance
	}

	common := make(map[string]bool, len(profile.CommonThemes))
	for _, theme := range profile.CommonThemes {
		common[theme] = true
	}

	matches := 0
	counted := make(map[string]bool, len(show.Themes))
	for _, theme := range show.Themes {
		if common[theme] && !counted[theme] {
			counted[theme] = true
			matches++
		}
	}

	return (maxClosenessPoints - distance) + themeMatchPoints*matches
}

// RankCandidates drops favorites and out-of-range shows, scores the rest and
// returns at most limit of them by descending score. Equal scores keep the
// order of candidates.
func RankCandidates(profile models.TasteProfile, favorites, candidates []models.Show, limit int) []models.ScoredShow {
	favorited := make(map[int64]bool, len(favorites))
	for _, show := range favorites {
		favorited[show.ID] = true
	}

	low := profile.AvgStimulationScore - stimulationRadius
	high := profile.AvgStimulationScore + stimulationRadius

	ranked := make([]models.ScoredShow, 0, len(candidates))
	for _, show := range candidates {
		if favorited[show.ID] || show.StimulationScore < low || show.StimulationScore > high {
			continue
		}
		ranked = append(ranked, models.ScoredShow{
			Show:  show,
			Score: ScoreCandidate(profile, show),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}

// RecommenderService produces per-user show recommendations and caches them
// in Redis. A nil cache client disables caching.
type RecommenderService struct {
	store      ShowStore
	normalizer *sensory.Normalizer
	cache      *redis.Client
	metrics    *Metrics
	config     config.RecommendationConfig
	logger     *logrus.Logger
}

func NewRecommenderService(
	store ShowStore,
	normalizer *sensory.Normalizer,
	cache *redis.Client,
	metrics *Metrics,
	cfg config.RecommendationConfig,
	logger *logrus.Logger,
) *RecommenderService {
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
	switch {
	case cfg.CacheTTL < 0:
		cache = nil
	case cfg.CacheTTL == 0:
		cfg.CacheTTL = defaultCacheTTL
	}

	return &RecommenderService{
		store:      store,
		normalizer: normalizer,
		cache:      cache,
		metrics:    metrics,
		config:     cfg,
		logger:     logger,
	}
}

// EffectiveLimit applies the default and the configured ceiling.
func (s *RecommenderService) EffectiveLimit(limit int) int {
	if limit <= 0 {
		return s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return limit
}

// RecommendSimilarShows returns up to limit shows the user has not favorited,
// ranked by similarity to the user's favorites. Users without favorites get
// the most popular shows instead. Storage errors are returned unchanged
// apart from wrapping.
func (s *RecommenderService) RecommendSimilarShows(ctx context.Context, userID uuid.UUID, limit int) (*RecommendationResult, error) {
	start := time.Now()
	limit = s.EffectiveLimit(limit)

	favorites, err := s.store.GetFavoriteShows(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites for user %s: %w", userID, err)
	}
	favoriteIDs := sortedShowIDs(favorites)

	if cached := s.getCached(ctx, userID, limit); cached != nil && slices.Equal(cached.FavoriteIDs, favoriteIDs) {
		s.metrics.ObserveRecommendation(cached.Strategy, time.Since(start))
		return cached, nil
	}

	var result *RecommendationResult
	if len(favorites) == 0 {
		result, err = s.popular(ctx, limit)
	} else {
		result, err = s.similar(ctx, favorites, limit)
	}
	if err != nil {
		return nil, err
	}

	for i := range result.Shows {
		NormalizeShow(s.normalizer, &result.Shows[i].Show)
	}
	result.FavoriteIDs = favoriteIDs

	s.setCached(ctx, userID, limit, result)
	s.metrics.ObserveRecommendation(result.Strategy, time.Since(start))

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"strategy":  result.Strategy,
		"limit":     limit,
		"returned":  len(result.Shows),
		"favorites": len(favorites),
	}).Debug("Recommendations generated")

	return result, nil
}

func (s *RecommenderService) popular(ctx context.Context, limit int) (*RecommendationResult, error) {
	shows, err := s.store.GetPopularShows(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular shows: %w", err)
	}
	if len(shows) > limit {
		shows = shows[:limit]
	}

	scored := make([]models.ScoredShow, len(shows))
	for i, show := range shows {
		scored[i] = models.ScoredShow{Show: show}
	}

	return &RecommendationResult{
		Strategy: StrategyPopular,
		Shows:    scored,
	}, nil
}

func (s *RecommenderService) similar(ctx context.Context, favorites []models.Show, limit int) (*RecommendationResult, error) {
	profile := BuildTasteProfile(favorites, s.config.CommonThemeRatio)

	excluding := make([]int64, len(favorites))
	for i, show := range favorites {
		excluding[i] = show.ID
	}

	candidates, err := s.store.GetCatalogShowsInStimulationRange(ctx,
		profile.AvgStimulationScore-stimulationRadius,
		profile.AvgStimulationScore+stimulationRadius,
		excluding,
		s.config.CandidateLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate shows: %w", err)
	}

	return &RecommendationResult{
		Strategy: StrategySimilar,
		Shows:    RankCandidates(profile, favorites, candidates, limit),
		Profile:  &profile,
	}, nil
}

func sortedShowIDs(shows []models.Show) []int64 {
	ids := make([]int64, len(shows))
	for i, show := range shows {
		ids[i] = show.ID
	}
	slices.Sort(ids)
	return ids
}

func recommendationCacheKey(userID uuid.UUID) string {
	return "recommendations:" + userID.String()
}

// getCached reads the per-user hash entry for limit. Cache failures are
// logged and treated as a miss.
func (s *RecommenderService) getCached(ctx context.Context, userID uuid.UUID, limit int) *RecommendationResult {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.HGet(ctx, recommendationCacheKey(userID), strconv.Itoa(limit)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to read recommendation cache")
		}
		return nil
	}

	var result RecommendationResult
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Discarding corrupt recommendation cache entry")
		return nil
	}
	result.CacheHit = true

	return &result
}

func (s *RecommenderService) setCached(ctx context.Context, userID uuid.UUID, limit int, result *RecommendationResult) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to marshal recommendations for cache")
		return
	}

	key := recommendationCacheKey(userID)
	pipe := s.cache.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(limit), data)
	pipe.Expire(ctx, key, s.config.CacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to cache recommendations")
	}
}

// InvalidateUser drops every cached recommendation list for userID.
func (s *RecommenderService) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, recommendationCacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate recommendations for user %s: %w", userID, err)
	}
	return nil
}
