package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category represents a listing classification
type Category struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  *string   `json:"description" db:"description"`
	ListingCount int       `json:"listing_count" db:"listing_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// CategoryShare is a category with its share of all listings
type CategoryShare struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	ListingCount int       `json:"listing_count"`
	Percentage   float64   `json:"percentage"`
}

// CategoryStats aggregates listing counts across categories
type CategoryStats struct {
	TotalCategories    int             `json:"total_categories"`
	TotalListings      int             `json:"total_listings"`
	AveragePerCategory float64         `json:"average_per_category"`
	EmptyCategories    int             `json:"empty_categories"`
	TopCategories      []CategoryShare `json:"top_categories"`
}
