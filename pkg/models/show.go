package models

import "time"

type Show struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Description      *string   `json:"description,omitempty" db:"description"`
	AgeRange         *string   `json:"age_range,omitempty" db:"age_range"`
	EpisodeLength    *int      `json:"episode_length,omitempty" db:"episode_length"` // minutes
	Creator          *string   `json:"creator,omitempty" db:"creator"`
	ReleaseYear      *int      `json:"release_year,omitempty" db:"release_year"`
	EndYear          *int      `json:"end_year,omitempty" db:"end_year"`
	IsOngoing        bool      `json:"is_ongoing" db:"is_ongoing"`
	Seasons          *int      `json:"seasons,omitempty" db:"seasons"`
	StimulationScore int       `json:"stimulation_score" db:"stimulation_score"` // 1-5
	Themes           []string  `json:"themes" db:"themes"`
	ImageURL         *string   `json:"image_url,omitempty" db:"image_url"`
	AnimationStyle   *string   `json:"animation_style,omitempty" db:"animation_style"`
	ViewCount        int64     `json:"view_count" db:"view_count"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`

	SensoryMetrics
}

// SensoryMetrics holds the free-text sensory descriptors of a show. After
// normalization every non-nil value is one of the five canonical levels.
type SensoryMetrics struct {
	DialogueIntensity         *string `json:"dialogue_intensity,omitempty" db:"dialogue_intensity"`
	SceneFrequency            *string `json:"scene_frequency,omitempty" db:"scene_frequency"`
	SoundEffectsLevel         *string `json:"sound_effects_level,omitempty" db:"sound_effects_level"`
	MusicTempo                *string `json:"music_tempo,omitempty" db:"music_tempo"`
	TotalMusicLevel           *string `json:"total_music_level,omitempty" db:"total_music_level"`
	TotalSoundEffectTimeLevel *string `json:"total_sound_effect_time_level,omitempty" db:"total_sound_effect_time_level"`
	InteractivityLevel        *string `json:"interactivity_level,omitempty" db:"interactivity_level"`
}

// SensoryField names one sensory metric and points at its storage.
type SensoryField struct {
	Name  string
	Value **string
}

// Fields returns the metrics in a fixed order.
func (m *SensoryMetrics) Fields() []SensoryField {
	return []SensoryField{
		{Name: "dialogue_intensity", Value: &m.DialogueIntensity},
		{Name: "scene_frequency", Value: &m.SceneFrequency},
		{Name: "sound_effects_level", Value: &m.SoundEffectsLevel},
		{Name: "music_tempo", Value: &m.MusicTempo},
		{Name: "total_music_level", Value: &m.TotalMusicLevel},
		{Name: "total_sound_effect_time_level", Value: &m.TotalSoundEffectTimeLevel},
		{Name: "interactivity_level", Value: &m.InteractivityLevel},
	}
}

// ShowFilter mirrors the catalog page query string.
type ShowFilter struct {
	Search         string   `form:"search" json:"search,omitempty" validate:"max=100"`
	AgeGroup       string   `form:"age_group" json:"age_group,omitempty" validate:"max=50"`
	MinStimulation int      `form:"min_stimulation" json:"min_stimulation,omitempty" validate:"omitempty,min=1,max=5"`
	MaxStimulation int      `form:"max_stimulation" json:"max_stimulation,omitempty" validate:"omitempty,min=1,max=5,gtefield=MinStimulation"`
	Themes         []string `form:"themes" json:"themes,omitempty" validate:"max=20,dive,min=1,max=50"`
	Sort           string   `form:"sort" json:"sort,omitempty" validate:"omitempty,oneof=name stimulation popular"`
	Limit          int      `form:"limit" json:"limit" validate:"min=0,max=100"`
	Offset         int      `form:"offset" json:"offset" validate:"min=0"`
}

type ShowListResponse struct {
	Shows  []Show `json:"shows"`
	Count  int    `json:"count"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// ShowImportRecord is one raw row from an external metadata source
// (spreadsheet export, OMDb, YouTube). Sensory fields hold whatever
// vocabulary the source used.
type ShowImportRecord struct {
	Name             string   `json:"name" validate:"required,min=1,max=255"`
	Description      *string  `json:"description,omitempty"`
	AgeRange         *string  `json:"age_range,omitempty"`
	EpisodeLength    *int     `json:"episode_length,omitempty" validate:"omitempty,min=0,max=600"`
	Creator          *string  `json:"creator,omitempty"`
	ReleaseYear      *int     `json:"release_year,omitempty" validate:"omitempty,min=1900,max=2100"`
	EndYear          *int     `json:"end_year,omitempty" validate:"omitempty,min=1900,max=2100"`
	IsOngoing        *bool    `json:"is_ongoing,omitempty"`
	Seasons          *int     `json:"seasons,omitempty" validate:"omitempty,min=0"`
	StimulationScore *int     `json:"stimulation_score,omitempty" validate:"omitempty,min=1,max=5"`
	Themes           []string `json:"themes,omitempty"`
	ImageURL         *string  `json:"image_url,omitempty"`
	AnimationStyle   *string  `json:"animation_style,omitempty"`

	SensoryMetrics
}

type ShowImportRequest struct {
	Source  string             `json:"source" validate:"required,oneof=sheets omdb youtube github manual"`
	Records []ShowImportRecord `json:"records" validate:"required,min=1,max=500,dive"`
}

type ShowImportResponse struct {
	BatchID string `json:"batch_id"`
	Queued  int    `json:"queued"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ImportBatchStatus tracks how far the consumer has got through one import
// batch.
type ImportBatchStatus struct {
	BatchID   string    `json:"batch_id"`
	Source    string    `json:"source"`
	Status    string    `json:"status"` // queued, processing, completed
	Total     int       `json:"total"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Rejected  int       `json:"rejected"`
	Progress  int       `json:"progress"` // percent
	CreatedAt time.Time `json:"created_at"`
}
