package domain

import (
	"time"

	"github.com/google/uuid"
)

// Favorite is a user's bookmark of a listing
type Favorite struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ListingID uuid.UUID `json:"listing_id" db:"listing_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FavoriteAction names the transition a favorite mutation performed
type FavoriteAction string

const (
	FavoriteAdded   FavoriteAction = "added"
	FavoriteRemoved FavoriteAction = "removed"
)

// FavoriteResult describes the outcome of add, remove and toggle.
// Changed is false when the pair was already in the requested state.
type FavoriteResult struct {
	Action    FavoriteAction `json:"action"`
	Favorited bool           `json:"is_favorite"`
	Changed   bool           `json:"changed"`
	Count     int            `json:"favorites_count"`
}

// CategoryCount is a category name with a count
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FavoriteStats summarises a user's favorites
type FavoriteStats struct {
	Total         int             `json:"total_favorites"`
	Recent        int             `json:"recent_favorites"`
	TopCategories []CategoryCount `json:"top_categories"`
}
