package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoredShow is a show together with its similarity score. Popularity
// fallback results carry a zero score.
type ScoredShow struct {
	Show  Show `json:"show"`
	Score int  `json:"score"`
}

// TasteProfile is the aggregate derived from a user's favorited shows.
type TasteProfile struct {
	FavoriteCount       int            `json:"favorite_count"`
	AvgStimulationScore int            `json:"avg_stimulation_score"`
	ThemeCounts         map[string]int `json:"theme_counts,omitempty"`
	CommonThemes        []string       `json:"common_themes,omitempty"`
}

type RecommendationResponse struct {
	UserID          uuid.UUID     `json:"user_id"`
	Strategy        string        `json:"strategy"` // similar, popular
	Recommendations []ScoredShow  `json:"recommendations"`
	Profile         *TasteProfile `json:"profile,omitempty"`
	GeneratedAt     time.Time     `json:"generated_at"`
	CacheHit        bool          `json:"cache_hit"`
}

type SimilarShowsResponse struct {
	SeedShowID int64        `json:"seed_show_id"`
	Shows      []ScoredShow `json:"shows"`
}

type SensoryNormalizeRequest struct {
	Values map[string]*string `json:"values" validate:"required,min=1,max=50"`
}

type SensoryNormalizeResult struct {
	Raw        *string `json:"raw"`
	Level      *string `json:"level"`
	Recognized bool    `json:"recognized"`
}

type SensoryNormalizeResponse struct {
	Results map[string]SensoryNormalizeResult `json:"results"`
}
