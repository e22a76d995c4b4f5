package models

import "github.com/google/uuid"

type FavoriteRequest struct {
	ShowID int64 `json:"show_id" validate:"required,min=1"`
}

type FavoritesResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Shows  []Show    `json:"shows"`
}
