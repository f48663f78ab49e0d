package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ListingSort is a supported listing order
type ListingSort string

const (
	SortRecent    ListingSort = "recent"
	SortOldest    ListingSort = "oldest"
	SortPriceAsc  ListingSort = "price_asc"
	SortPriceDesc ListingSort = "price_desc"
	SortTitle     ListingSort = "title"
	SortPopular   ListingSort = "popular"
)

// Page sizes used by the listing views
const (
	GridPageSize       = 12
	OwnerPageSize      = 10
	FavoritesPageSize  = 12
	SimilarLimit       = 4
	SuggestionLimit    = 10
	CategorySearchSize = 10
	FeaturedLimit      = 6
	PopularLimit       = 8
	TopCategoriesLimit = 5
)

// ParseListingSort maps a request value to a sort, defaulting to recent
func ParseListingSort(s string) ListingSort {
	switch ListingSort(s) {
	case SortOldest, SortPriceAsc, SortPriceDesc, SortTitle, SortPopular:
		return ListingSort(s)
	}
	return SortRecent
}

// ListingCriteria is the immutable set of optional listing filters.
// A nil pointer or blank string means no constraint.
type ListingCriteria struct {
	Search       string
	CategoryID   *uuid.UUID
	OwnerID      *uuid.UUID
	ExcludeID    *uuid.UUID
	Location     string
	PriceMin     *float64
	PriceMax     *float64
	CreatedAfter *time.Time
	Statuses     []ListingStatus
	Sort         ListingSort
	Page         int
	PageSize     int
}

// WithCategory returns a copy constrained to categoryID
func (c ListingCriteria) WithCategory(categoryID uuid.UUID) ListingCriteria {
	c.CategoryID = &categoryID
	return c
}

// WithOwner returns a copy constrained to ownerID
func (c ListingCriteria) WithOwner(ownerID uuid.UUID) ListingCriteria {
	c.OwnerID = &ownerID
	return c
}

// Matches evaluates the filter predicates against a single listing in memory.
// It agrees with the SQL compiled from the same criteria, including the rule
// that a listing without a price never satisfies a price bound.
func (c ListingCriteria) Matches(l *Listing) bool {
	if term := strings.TrimSpace(c.Search); term != "" {
		t := strings.ToLower(term)
		if !strings.Contains(strings.ToLower(l.Title), t) && !strings.Contains(strings.ToLower(l.Description), t) {
			return false
		}
	}
	if c.CategoryID != nil && l.CategoryID != *c.CategoryID {
		return false
	}
	if c.OwnerID != nil && l.OwnerID != *c.OwnerID {
		return false
	}
	if c.ExcludeID != nil && l.ID == *c.ExcludeID {
		return false
	}
	if loc := strings.TrimSpace(c.Location); loc != "" {
		if l.Location == nil || !strings.Contains(strings.ToLower(*l.Location), strings.ToLower(loc)) {
			return false
		}
	}
	if c.PriceMin != nil && (l.Price == nil || *l.Price < *c.PriceMin) {
		return false
	}
	if c.PriceMax != nil && (l.Price == nil || *l.Price > *c.PriceMax) {
		return false
	}
	if c.CreatedAfter != nil && l.CreatedAt.Before(*c.CreatedAfter) {
		return false
	}
	if len(c.Statuses) > 0 {
		found := false
		for _, s := range c.Statuses {
			if l.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
