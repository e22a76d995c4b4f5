package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/tvtantrum/tantrum/pkg/models"
)

var (
	ErrShowNotFound = errors.New("show not found")
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const showColumns = `id, name, description, age_range, episode_length, creator,
	release_year, end_year, is_ongoing, seasons, stimulation_score, themes,
	image_url, animation_style, dialogue_intensity, scene_frequency,
	sound_effects_level, music_tempo, total_music_level,
	total_sound_effect_time_level, interactivity_level, view_count,
	created_at, updated_at`

// qualifiedShowColumns prefixes every show column with alias.
func qualifiedShowColumns(alias string) string {
	parts := strings.Split(showColumns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ShowStore reads and writes the show catalog in PostgreSQL.
type ShowStore struct {
	db     DBTX
	logger *logrus.Logger
}

func NewShowStore(db DBTX, logger *logrus.Logger) *ShowStore {
	return &ShowStore{
		db:     db,
		logger: logger,
	}
}

// NameKey is the case-folded, whitespace-collapsed form of a show name used
// to merge records from different sources.
func NameKey(name string) string {
	folded := cases.Fold().String(norm.NFKC.String(name))
	return strings.Join(strings.Fields(folded), " ")
}

func scanShow(row pgx.Row) (models.Show, error) {
	var s models.Show
	err := row.Scan(
		&s.ID, &s.Name, &s.Description, &s.AgeRange, &s.EpisodeLength, &s.Creator,
		&s.ReleaseYear, &s.EndYear, &s.IsOngoing, &s.Seasons, &s.StimulationScore, &s.Themes,
		&s.ImageURL, &s.AnimationStyle, &s.DialogueIntensity, &s.SceneFrequency,
		&s.SoundEffectsLevel, &s.MusicTempo, &s.TotalMusicLevel,
		&s.TotalSoundEffectTimeLevel, &s.InteractivityLevel, &s.ViewCount,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if s.Themes == nil {
		s.Themes = []string{}
	}
	return s, err
}

func collectShows(rows pgx.Rows) ([]models.Show, error) {
	defer rows.Close()

	shows := []models.Show{}
	for rows.Next() {
		show, err := scanShow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan show: %w", err)
		}
		shows = append(shows, show)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shows: %w", err)
	}

	return shows, nil
}

// ListShows returns catalog shows matching filter. A zero Limit means 50.
func (s *ShowStore) ListShows(ctx context.Context, filter models.ShowFilter) ([]models.Show, error) {
	query := "SELECT " + showColumns + " FROM shows WHERE 1=1"
	args := []any{}
	argIndex := 1

	if search := strings.TrimSpace(filter.Search); search != "" {
		query += fmt.Sprintf(" AND name ILIKE $%d", argIndex)
		args = append(args, "%"+search+"%")
		argIndex++
	}

	if age := strings.TrimSpace(filter.AgeGroup); age != "" {
		query += fmt.Sprintf(" AND age_range ILIKE $%d", argIndex)
		args = append(args, "%"+age+"%")
		argIndex++
	}

	if filter.MinStimulation > 0 {
		query += fmt.Sprintf(" AND stimulation_score >= $%d", argIndex)
		args = append(args, filter.MinStimulation)
		argIndex++
	}

	if filter.MaxStimulation > 0 {
		query += fmt.Sprintf(" AND stimulation_score <= $%d", argIndex)
		args = append(args, filter.MaxStimulation)
		argIndex++
	}

	if len(filter.Themes) > 0 {
		query += fmt.Sprintf(" AND themes && $%d", argIndex)
		args = append(args, filter.Themes)
		argIndex++
	}

	switch filter.Sort {
	case "stimulation":
		query += " ORDER BY stimulation_score ASC, name ASC, id ASC"
	case "popular":
		query += " ORDER BY view_count DESC, id ASC"
	default:
		query += " ORDER BY name ASC, id ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shows query failed: %w", err)
	}

	return collectShows(rows)
}

func (s *ShowStore) GetShow(ctx context.Context, id int64) (*models.Show, error) {
	row := s.db.QueryRow(ctx, "SELECT "+showColumns+" FROM shows WHERE id = $1", id)

	show, err := scanShow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, fmt.Errorf("get show query failed: %w", err)
	}

	return &show, nil
}

// GetShowsByIDs returns the shows in the order of ids, skipping unknown ids.
func (s *ShowStore) GetShowsByIDs(ctx context.Context, ids []int64) ([]models.Show, error) {
	if len(ids) == 0 {
		return []models.Show{}, nil
	}

	rows, err := s.db.Query(ctx, "SELECT "+showColumns+" FROM shows WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("get shows by id query failed: %w", err)
	}

	shows, err := collectShows(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Show, len(shows))
	for _, show := range shows {
		byID[show.ID] = show
	}

	ordered := make([]models.Show, 0, len(shows))
	for _, id := range ids {
		if show, ok := byID[id]; ok {
			ordered = append(ordered, show)
		}
	}

	return ordered, nil
}

func (s *ShowStore) IncrementViewCount(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "UPDATE shows SET view_count = view_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrShowNotFound
	}
	return nil
}

// GetPopularShows returns the most viewed shows, ties broken by id.
func (s *ShowStore) GetPopularShows(ctx context.Context, limit int) ([]models.Show, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+showColumns+" FROM shows ORDER BY view_count DESC, id ASC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("popular shows query failed: %w", err)
	}

	return collectShows(rows)
}

// GetCatalogShowsInStimulationRange returns shows whose stimulation score is
// within [min, max], excluding the given ids, ordered by id.
func (s *ShowStore) GetCatalogShowsInStimulationRange(
	ctx context.Context,
	min, max int,
	excluding []int64,
	limit int,
) ([]models.Show, error) {
	if excluding == nil {
		excluding = []int64{}
	}

	query := `
		SELECT ` + showColumns + `
		FROM shows
		WHERE stimulation_score BETWEEN $1 AND $2
			AND NOT (id = ANY($3))
		ORDER BY id ASC
		LIMIT $4`

	rows, err := s.db.Query(ctx, query, min, max, excluding, limit)
	if err != nil {
		return nil, fmt.Errorf("candidate shows query failed: %w", err)
	}

	return collectShows(rows)
}

// UpsertShow inserts rec or merges it into the show with the same NameKey.
// Non-null incoming values replace stored ones, null values keep what is
// stored, and themes are unioned.
func (s *ShowStore) UpsertShow(ctx context.Context, rec models.ShowImportRecord) (int64, bool, error) {
	themes := rec.Themes
	if themes == nil {
		themes = []string{}
	}

	query := `
		INSERT INTO shows (
			name, name_key, description, age_range, episode_length, creator,
			release_year, end_year, is_ongoing, seasons, stimulation_score, themes,
			image_url, animation_style, dialogue_intensity, scene_frequency,
			sound_effects_level, music_tempo, total_music_level,
			total_sound_effect_time_level, interactivity_level
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, TRUE), $10, COALESCE($11, 3), $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		ON CONFLICT (name_key) DO UPDATE SET
			description = COALESCE(EXCLUDED.description, shows.description),
			age_range = COALESCE(EXCLUDED.age_range, shows.age_range),
			episode_length = COALESCE(EXCLUDED.episode_length, shows.episode_length),
			creator = COALESCE(EXCLUDED.creator, shows.creator),
			release_year = COALESCE(EXCLUDED.release_year, shows.release_year),
			end_year = COALESCE(EXCLUDED.end_year, shows.end_year),
			is_ongoing = COALESCE($9, shows.is_ongoing),
			seasons = COALESCE(EXCLUDED.seasons, shows.seasons),
			stimulation_score = COALESCE($11, shows.stimulation_score),
			themes = ARRAY(SELECT DISTINCT t FROM unnest(shows.themes || EXCLUDED.themes) AS t ORDER BY t),
			image_url = COALESCE(EXCLUDED.image_url, shows.image_url),
			animation_style = COALESCE(EXCLUDED.animation_style, shows.animation_style),
			dialogue_intensity = COALESCE(EXCLUDED.dialogue_intensity, shows.dialogue_intensity),
			scene_frequency = COALESCE(EXCLUDED.scene_frequency, shows.scene_frequency),
			sound_effects_level = COALESCE(EXCLUDED.sound_effects_level, shows.sound_effects_level),
			music_tempo = COALESCE(EXCLUDED.music_tempo, shows.music_tempo),
			total_music_level = COALESCE(EXCLUDED.total_music_level, shows.total_music_level),
			total_sound_effect_time_level = COALESCE(EXCLUDED.total_sound_effect_time_level, shows.total_sound_effect_time_level),
			interactivity_level = COALESCE(EXCLUDED.interactivity_level, shows.interactivity_level),
			updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted`

	var id int64
	var inserted bool
	err := s.db.QueryRow(ctx, query,
		strings.TrimSpace(rec.Name), NameKey(rec.Name), rec.Description, rec.AgeRange,
		rec.EpisodeLength, rec.Creator, rec.ReleaseYear, rec.EndYear, rec.IsOngoing,
		rec.Seasons, rec.StimulationScore, themes, rec.ImageURL, rec.AnimationStyle,
		rec.DialogueIntensity, rec.SceneFrequency, rec.SoundEffectsLevel, rec.MusicTempo,
		rec.TotalMusicLevel, rec.TotalSoundEffectTimeLevel, rec.InteractivityLevel,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, fmt.Errorf("failed to upsert show %q: %w", rec.Name, err)
	}

	s.logger.WithFields(logrus.Fields{
		"show_id":  id,
		"name":     rec.Name,
		"inserted": inserted,
	}).Debug("Show upserted")

	return id, inserted, nil
}
