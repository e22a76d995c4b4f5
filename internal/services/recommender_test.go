package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/internal/sensory"
	"github.com/tvtantrum/tantrum/pkg/models"
)

// fakeShowStore serves a fixed catalog and favorites set and records the
// arguments of candidate queries.
type fakeShowStore struct {
	favorites []models.Show
	catalog   []models.Show

	favoritesErr  error
	popularErr    error
	candidatesErr error

	popularCalls   int
	candidateCalls int
	lastMin        int
	lastMax        int
	lastExcluding  []int64
	lastLimit      int
}

func (f *fakeShowStore) GetFavoriteShows(context.Context, uuid.UUID) ([]models.Show, error) {
	if f.favoritesErr != nil {
		return nil, f.favoritesErr
	}
	return append([]models.Show(nil), f.favorites...), nil
}

func (f *fakeShowStore) GetPopularShows(_ context.Context, limit int) ([]models.Show, error) {
	f.popularCalls++
	if f.popularErr != nil {
		return nil, f.popularErr
	}
	shows := append([]models.Show(nil), f.catalog...)
	// catalog is given in popularity order
	if len(shows) > limit {
		shows = shows[:limit]
	}
	return shows, nil
}

func (f *fakeShowStore) GetCatalogShowsInStimulationRange(_ context.Context, min, max int, excluding []int64, limit int) ([]models.Show, error) {
	f.candidateCalls++
	f.lastMin, f.lastMax, f.lastExcluding, f.lastLimit = min, max, excluding, limit
	if f.candidatesErr != nil {
		return nil, f.candidatesErr
	}

	skip := make(map[int64]bool, len(excluding))
	for _, id := range excluding {
		skip[id] = true
	}

	out := []models.Show{}
	for _, show := range f.catalog {
		if show.StimulationScore >= min && show.StimulationScore <= max && !skip[show.ID] {
			out = append(out, show)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func show(id int64, stim int, themes ...string) models.Show {
	if themes == nil {
		themes = []string{}
	}
	return models.Show{ID: id, Name: "show", StimulationScore: stim, Themes: themes}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRecommender(store ShowStore, cache *redis.Client) *RecommenderService {
	return NewRecommenderService(store, sensory.NewNormalizer(nil), cache, nil, config.RecommendationConfig{}, quietLogger())
}

func resultIDs(result *RecommendationResult) []int64 {
	ids := make([]int64, len(result.Shows))
	for i, s := range result.Shows {
		ids[i] = s.Show.ID
	}
	return ids
}

func TestBuildTasteProfile(t *testing.T) {
	t.Run("example favorites", func(t *testing.T) {
		favorites := []models.Show{
			show(1, 1, "Music"),
			show(2, 3, "Music", "Adventure"),
			show(3, 2, "Music"),
		}

		profile := BuildTasteProfile(favorites, 0.25)

		assert.Equal(t, 3, profile.FavoriteCount)
		assert.Equal(t, 2, profile.AvgStimulationScore)
		assert.Equal(t, map[string]int{"Music": 3, "Adventure": 1}, profile.ThemeCounts)
		assert.Equal(t, []string{"Music", "Adventure"}, profile.CommonThemes)
	})

	t.Run("mean rounds half up", func(t *testing.T) {
		profile := BuildTasteProfile([]models.Show{show(1, 2), show(2, 2), show(3, 4)}, 0.25)
		assert.Equal(t, 3, profile.AvgStimulationScore)

		profile = BuildTasteProfile([]models.Show{show(1, 2), show(2, 3)}, 0.25)
		assert.Equal(t, 3, profile.AvgStimulationScore)
	})

	t.Run("threshold excludes rare themes", func(t *testing.T) {
		favorites := []models.Show{
			show(1, 3, "Music"),
			show(2, 3, "Music"),
			show(3, 3, "Music"),
			show(4, 3, "Music"),
			show(5, 3, "Space"),
		}

		// ceil(5 * 0.25) = 2
		profile := BuildTasteProfile(favorites, 0.25)

		assert.Equal(t, []string{"Music"}, profile.CommonThemes)
	})

	t.Run("duplicate themes within a show count once", func(t *testing.T) {
		profile := BuildTasteProfile([]models.Show{show(1, 3, "Music", "Music")}, 0.25)
		assert.Equal(t, 1, profile.ThemeCounts["Music"])
	})

	t.Run("empty favorites", func(t *testing.T) {
		profile := BuildTasteProfile(nil, 0.25)
		assert.Zero(t, profile.FavoriteCount)
		assert.Empty(t, profile.CommonThemes)
	})
}

func TestScoreCandidate(t *testing.T) {
	profile := models.TasteProfile{AvgStimulationScore: 2, CommonThemes: []string{"Music", "Adventure"}}

	assert.Equal(t, 8, ScoreCandidate(profile, show(10, 2, "Music")))
	assert.Equal(t, 10, ScoreCandidate(profile, show(11, 1, "Music", "Adventure")))
	assert.Equal(t, 5, ScoreCandidate(profile, show(12, 2, "Space")))
	assert.Equal(t, 8, ScoreCandidate(profile, show(13, 2, "Music", "Music")))

	t.Run("two common themes beat none by six", func(t *testing.T) {
		a := ScoreCandidate(profile, show(20, 3, "Music", "Adventure"))
		b := ScoreCandidate(profile, show(21, 3, "Cooking"))
		assert.Equal(t, 6, a-b)
	})
}

func TestRankCandidates(t *testing.T) {
	favorites := []models.Show{show(1, 1, "Music"), show(2, 3, "Music", "Adventure"), show(3, 2, "Music")}
	profile := BuildTasteProfile(favorites, 0.25)

	candidates := []models.Show{
		show(2, 3, "Music", "Adventure"), // favorite
		show(10, 2, "Music"),
		show(11, 1, "Music", "Adventure"),
		show(12, 5, "Music"), // out of range
		show(13, 3),
		show(14, 2),
	}

	ranked := RankCandidates(profile, favorites, candidates, 10)

	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Show.ID
	}
	assert.Equal(t, []int64{11, 10, 14, 13}, ids)
	assert.Equal(t, 10, ranked[0].Score)
	assert.Equal(t, 8, ranked[1].Score)

	t.Run("ties keep candidate order", func(t *testing.T) {
		tied := RankCandidates(profile, nil, []models.Show{show(30, 2), show(20, 2), show(25, 2)}, 10)
		require.Len(t, tied, 3)
		assert.Equal(t, int64(30), tied[0].Show.ID)
		assert.Equal(t, int64(20), tied[1].Show.ID)
		assert.Equal(t, int64(25), tied[2].Show.ID)
	})

	t.Run("limit truncates", func(t *testing.T) {
		assert.Len(t, RankCandidates(profile, favorites, candidates, 2), 2)
		assert.Empty(t, RankCandidates(profile, favorites, candidates, 0))
	})
}

func TestRecommenderService_PopularFallback(t *testing.T) {
	catalog := []models.Show{}
	for i := int64(1); i <= 8; i++ {
		catalog = append(catalog, show(i, int(i%5)+1))
	}
	store := &fakeShowStore{catalog: catalog}
	svc := newTestRecommender(store, nil)

	result, err := svc.RecommendSimilarShows(context.Background(), uuid.New(), 5)

	require.NoError(t, err)
	assert.Equal(t, StrategyPopular, result.Strategy)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, resultIDs(result))
	assert.Nil(t, result.Profile)
	assert.Equal(t, 1, store.popularCalls)
	assert.Zero(t, store.candidateCalls)
}

func TestRecommenderService_Similar(t *testing.T) {
	favorites := []models.Show{show(1, 1, "Music"), show(2, 3, "Music", "Adventure"), show(3, 2, "Music")}
	catalog := append([]models.Show{}, favorites...)
	catalog = append(catalog,
		show(10, 2, "Music"),
		show(11, 1, "Music", "Adventure"),
		show(12, 4, "Music"),
		show(13, 5),
	)
	store := &fakeShowStore{favorites: favorites, catalog: catalog}
	svc := newTestRecommender(store, nil)

	result, err := svc.RecommendSimilarShows(context.Background(), uuid.New(), 5)

	require.NoError(t, err)
	assert.Equal(t, StrategySimilar, result.Strategy)
	assert.Equal(t, []int64{11, 10}, resultIDs(result))
	assert.Equal(t, 10, result.Shows[0].Score)
	assert.Equal(t, 8, result.Shows[1].Score)
	require.NotNil(t, result.Profile)
	assert.Equal(t, 2, result.Profile.AvgStimulationScore)

	assert.Equal(t, 1, store.lastMin)
	assert.Equal(t, 3, store.lastMax)
	assert.ElementsMatch(t, []int64{1, 2, 3}, store.lastExcluding)
	assert.Equal(t, defaultCandidateLimit, store.lastLimit)
	assert.Zero(t, store.popularCalls)
}

func TestRecommenderService_CandidateRange(t *testing.T) {
	favorites := []models.Show{show(1, 2), show(2, 2), show(3, 4)}
	catalog := append([]models.Show{}, favorites...)
	for i := int64(10); i < 15; i++ {
		catalog = append(catalog, show(i, int(i-9)))
	}
	store := &fakeShowStore{favorites: favorites, catalog: catalog}
	svc := newTestRecommender(store, nil)

	result, err := svc.RecommendSimilarShows(context.Background(), uuid.New(), 10)

	require.NoError(t, err)
	assert.Equal(t, 2, store.lastMin)
	assert.Equal(t, 4, store.lastMax)
	for _, s := range result.Shows {
		assert.Contains(t, []int{2, 3, 4}, s.Show.StimulationScore)
		assert.NotContains(t, []int64{1, 2, 3}, s.Show.ID)
	}
	assert.Len(t, result.Shows, 3)
}

func TestRecommenderService_NeverReturnsFavoritesOrExceedsLimit(t *testing.T) {
	favorites := []models.Show{show(1, 3, "Music"), show(2, 3, "Music")}
	catalog := append([]models.Show{}, favorites...)
	for i := int64(10); i < 40; i++ {
		catalog = append(catalog, show(i, 3, "Music"))
	}
	// a store that ignores exclusions must still not leak favorites
	leaky := &leakyStore{fakeShowStore{favorites: favorites, catalog: catalog}}
	svc := newTestRecommender(leaky, nil)

	for _, limit := range []int{1, 3, 7} {
		result, err := svc.RecommendSimilarShows(context.Background(), uuid.New(), limit)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(result.Shows), limit)
		for _, s := range result.Shows {
			assert.NotContains(t, []int64{1, 2}, s.Show.ID)
		}
	}
}

type leakyStore struct {
	fakeShowStore
}

func (l *leakyStore) GetCatalogShowsInStimulationRange(ctx context.Context, min, max int, _ []int64, limit int) ([]models.Show, error) {
	return l.fakeShowStore.GetCatalogShowsInStimulationRange(ctx, min, max, nil, limit)
}

func TestRecommenderService_Limits(t *testing.T) {
	catalog := []models.Show{}
	for i := int64(1); i <= 80; i++ {
		catalog = append(catalog, show(i, 3))
	}
	svc := newTestRecommender(&fakeShowStore{catalog: catalog}, nil)

	result, err := svc.RecommendSimilarShows(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Len(t, result.Shows, defaultRecommendationLimit)

	result, err = svc.RecommendSimilarShows(context.Background(), uuid.New(), 500)
	require.NoError(t, err)
	assert.Len(t, result.Shows, defaultMaxLimit)
}

func TestRecommenderService_StorageErrors(t *testing.T) {
	dbErr := errors.New("connection refused")

	tests := []struct {
		name  string
		store *fakeShowStore
	}{
		{"favorites", &fakeShowStore{favoritesErr: dbErr}},
		{"popular", &fakeShowStore{popularErr: dbErr}},
		{"candidates", &fakeShowStore{favorites: []models.Show{show(1, 3)}, candidatesErr: dbErr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestRecommender(tt.store, nil)

			result, err := svc.RecommendSimilarShows(context.Background(), uuid.New(), 5)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, dbErr)
		})
	}
}

func TestRecommenderService_NormalizesResults(t *testing.T) {
	raw := "mod-high"
	s := show(10, 3)
	s.MusicTempo = &raw
	svc := newTestRecommender(&fakeShowStore{catalog: []models.Show{s}}, nil)

	result, err := svc.RecommendSimilarShows(context.Background(), uuid.New(), 5)

	require.NoError(t, err)
	require.Len(t, result.Shows, 1)
	require.NotNil(t, result.Shows[0].Show.MusicTempo)
	assert.Equal(t, "Moderate-High", *result.Shows[0].Show.MusicTempo)
}

func TestRecommenderService_UnreachableCacheIsAMiss(t *testing.T) {
	cache := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer cache.Close()

	store := &fakeShowStore{catalog: []models.Show{show(1, 3)}}
	svc := newTestRecommender(store, cache)

	result, err := svc.RecommendSimilarShows(context.Background(), uuid.New(), 5)

	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Equal(t, 1, store.popularCalls)
	assert.Error(t, svc.InvalidateUser(context.Background(), uuid.New()))
}

func TestRecommenderService_InvalidateWithoutCache(t *testing.T) {
	svc := newTestRecommender(&fakeShowStore{}, nil)
	assert.NoError(t, svc.InvalidateUser(context.Background(), uuid.New()))
}

func TestRecommendationResult_ShowList(t *testing.T) {
	result := &RecommendationResult{Shows: []models.ScoredShow{{Show: show(4, 2), Score: 5}, {Show: show(9, 2)}}}

	shows := result.ShowList()

	require.Len(t, shows, 2)
	assert.Equal(t, int64(4), shows[0].ID)
	assert.Equal(t, int64(9), shows[1].ID)
}
