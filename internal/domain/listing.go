package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ListingStatus represents the lifecycle state of a listing
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusInactive ListingStatus = "inactive"
	ListingStatusDeleted  ListingStatus = "deleted"
)

// Valid reports whether s is one of the known statuses
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusActive, ListingStatusInactive, ListingStatusDeleted:
		return true
	}
	return false
}

const shortDescriptionLength = 150

// Listing represents a classified ad
type Listing struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	OwnerID     uuid.UUID     `json:"owner_id" db:"owner_id"`
	CategoryID  uuid.UUID     `json:"category_id" db:"category_id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Price       *float64      `json:"price" db:"price"`
	Location    *string       `json:"location" db:"location"`
	ImagePath   *string       `json:"image_path,omitempty" db:"image_path"`
	Status      ListingStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// IsFree reports whether the listing is given away. A missing price and a zero
// price are both free, but only the latter is stored as a number.
func (l *Listing) IsFree() bool {
	return l.Price == nil || *l.Price == 0
}

// FormattedPrice renders the price for display
func (l *Listing) FormattedPrice() string {
	if l.IsFree() {
		return "Free"
	}
	return fmt.Sprintf("%.2f €", *l.Price)
}

// ShortDescription truncates the description for listing grids
func (l *Listing) ShortDescription() string {
	if utf8.RuneCountInString(l.Description) <= shortDescriptionLength {
		return l.Description
	}
	runes := []rune(l.Description)
	return string(runes[:shortDescriptionLength]) + "..."
}

// OwnedBy reports whether userID may mutate the listing
func (l *Listing) OwnedBy(userID uuid.UUID) bool {
	return userID != uuid.Nil && l.OwnerID == userID
}

// OwnerSummary is the owner data joined onto listing rows
type OwnerSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CategorySummary is the category data joined onto listing rows
type CategorySummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ListingSummary is a listing pre-joined with everything a grid needs
type ListingSummary struct {
	Listing
	Owner          OwnerSummary    `json:"owner"`
	Category       CategorySummary `json:"category"`
	FavoritesCount int             `json:"favorites_count"`
	IsFavorited    bool            `json:"is_favorited"`
	PriceLabel     string          `json:"formatted_price"`
	Excerpt        string          `json:"short_description"`
}

// SetDisplayFields fills the rendered price and description excerpt from
// the listing
func (s *ListingSummary) SetDisplayFields() {
	s.PriceLabel = s.FormattedPrice()
	s.Excerpt = s.ShortDescription()
}

// ListingDetail is a single listing with its similar listings
type ListingDetail struct {
	ListingSummary
	Similar []*ListingSummary `json:"similar"`
}

// PlatformStats aggregates marketplace-wide counters
type PlatformStats struct {
	ActiveListings       int     `json:"active_listings"`
	Users                int     `json:"users"`
	CategoriesWithActive int     `json:"categories_with_active_listings"`
	AveragePrice         float64 `json:"average_price"`
	MinPrice             float64 `json:"min_price"`
	MaxPrice             float64 `json:"max_price"`
	NewThisWeek          int     `json:"new_this_week"`
	NewToday             int     `json:"new_today"`
}
