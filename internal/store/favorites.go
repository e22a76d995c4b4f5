package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tvtantrum/tantrum/pkg/models"
)

const foreignKeyViolation = "23503"

// GetFavoriteShows returns the shows userID has favorited, oldest first.
func (s *ShowStore) GetFavoriteShows(ctx context.Context, userID uuid.UUID) ([]models.Show, error) {
	query := `
		SELECT ` + qualifiedShowColumns("s") + `
		FROM favorites f
		JOIN shows s ON s.id = f.show_id
		WHERE f.user_id = $1
		ORDER BY f.created_at ASC, s.id ASC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("favorite shows query failed: %w", err)
	}

	return collectShows(rows)
}

// AddFavorite records the favorite and reports whether it was new.
func (s *ShowStore) AddFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO favorites (user_id, show_id) VALUES ($1, $2)
		ON CONFLICT (user_id, show_id) DO NOTHING`,
		userID, showID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return false, ErrShowNotFound
		}
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// RemoveFavorite deletes the favorite and reports whether it existed.
func (s *ShowStore) RemoveFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error) {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM favorites WHERE user_id = $1 AND show_id = $2",
		userID, showID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (s *ShowStore) IsFavorite(ctx context.Context, userID uuid.UUID, showID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND show_id = $2)",
		userID, showID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("favorite lookup failed: %w", err)
	}

	return exists, nil
}
