package repository

import (
	"context"
	"testing"
	"time"

	"classifieds/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestUser(t *testing.T) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	id := uuid.New()
	user := &domain.User{
		ID:        id,
		Name:      "User " + id.String()[:8],
		Email:     id.String() + "@example.com",
		Role:      "user",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewUserRepository(testDB).Create(context.Background(), user))
	return user
}

func newTestCategory(t *testing.T, name string) *domain.Category {
	t.Helper()
	now := time.Now().UTC()
	category := &domain.Category{
		ID:        uuid.New(),
		Name:      name + " " + uuid.NewString()[:8],
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewCategoryRepository(testDB).Create(context.Background(), category))
	return category
}

type listingOption func(*domain.Listing)

func withPrice(p float64) listingOption {
	return func(l *domain.Listing) { l.Price = &p }
}

func withoutPrice() listingOption {
	return func(l *domain.Listing) { l.Price = nil }
}

func withLocation(loc string) listingOption {
	return func(l *domain.Listing) { l.Location = &loc }
}

func withStatus(s domain.ListingStatus) listingOption {
	return func(l *domain.Listing) { l.Status = s }
}

func createdAt(ts time.Time) listingOption {
	return func(l *domain.Listing) {
		l.CreatedAt = ts
		l.UpdatedAt = ts
	}
}

func newTestListing(t *testing.T, owner *domain.User, category *domain.Category, title, description string, opts ...listingOption) *domain.Listing {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	price := 10.0
	listing := &domain.Listing{
		ID:          uuid.New(),
		OwnerID:     owner.ID,
		CategoryID:  category.ID,
		Title:       title,
		Description: description,
		Price:       &price,
		Status:      domain.ListingStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(listing)
	}
	require.NoError(t, NewListingRepository(testDB).Create(context.Background(), listing))
	return listing
}

func floatPtr(f float64) *float64 { return &f }

func idsOf(items []*domain.ListingSummary) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
