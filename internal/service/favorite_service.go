package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classifieds/internal/apperror"
	"classifieds/internal/domain"
	"classifieds/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const recentFavoritesWindow = 30 * 24 * time.Hour

// FavoriteService defines the interface for favorite business logic
type FavoriteService interface {
	Add(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error)
	Remove(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error)
	Toggle(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error)
	Check(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error)
	ListForUser(ctx context.Context, actor domain.Actor, page int) (domain.Page[*domain.ListingSummary], error)
	Stats(ctx context.Context, actor domain.Actor) (*domain.FavoriteStats, error)
}

type favoriteService struct {
	favorites repository.FavoriteRepository
	listings  repository.ListingRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewFavoriteService creates a new instance of FavoriteService
func NewFavoriteService(
	favorites repository.FavoriteRepository,
	listings repository.ListingRepository,
	logger *zap.Logger,
) FavoriteService {
	return &favoriteService{
		favorites: favorites,
		listings:  listings,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Add favorites a listing. Adding a pair that already exists reports
// Changed=false instead of failing.
func (s *favoriteService) Add(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error) {
	if _, err := s.favoritable(ctx, actor, listingID); err != nil {
		return nil, err
	}

	inserted, err := s.favorites.Add(ctx, actor.UserID, listingID)
	if err != nil {
		return nil, s.mapError(err, listingID, "add")
	}

	return s.result(ctx, listingID, domain.FavoriteAdded, true, inserted)
}

// Remove drops a favorite. Removing an absent pair reports Changed=false.
func (s *favoriteService) Remove(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error) {
	if actor.Anonymous() {
		return nil, apperror.Unauthenticated()
	}
	if _, err := s.listing(ctx, listingID); err != nil {
		return nil, err
	}

	removed, err := s.favorites.Remove(ctx, actor.UserID, listingID)
	if err != nil {
		return nil, s.mapError(err, listingID, "remove")
	}

	return s.result(ctx, listingID, domain.FavoriteRemoved, false, removed)
}

// Toggle flips the favorite state based on the state read just before the write
func (s *favoriteService) Toggle(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error) {
	if _, err := s.favoritable(ctx, actor, listingID); err != nil {
		return nil, err
	}

	action, err := s.favorites.Toggle(ctx, actor.UserID, listingID)
	if err != nil {
		return nil, s.mapError(err, listingID, "toggle")
	}

	s.logger.Debug("Favorite toggled",
		zap.String("user_id", actor.UserID.String()),
		zap.String("listing_id", listingID.String()),
		zap.String("action", string(action)),
	)

	return s.result(ctx, listingID, action, action == domain.FavoriteAdded, true)
}

// Check reports whether actor has favorited the listing and its total count
func (s *favoriteService) Check(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error) {
	if _, err := s.listing(ctx, listingID); err != nil {
		return nil, err
	}

	favorited := false
	if !actor.Anonymous() {
		exists, err := s.favorites.Exists(ctx, actor.UserID, listingID)
		if err != nil {
			return nil, fmt.Errorf("failed to check favorite: %w", err)
		}
		favorited = exists
	}

	count, err := s.favorites.CountForListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to count favorites: %w", err)
	}

	return &domain.FavoriteResult{Favorited: favorited, Count: count}, nil
}

// ListForUser pages through actor's favorites, most recently favorited first
func (s *favoriteService) ListForUser(ctx context.Context, actor domain.Actor, page int) (domain.Page[*domain.ListingSummary], error) {
	if actor.Anonymous() {
		return domain.Page[*domain.ListingSummary]{}, apperror.Unauthenticated()
	}

	result, err := s.favorites.ListForUser(ctx, actor.UserID, page, domain.FavoritesPageSize)
	if err != nil {
		return domain.Page[*domain.ListingSummary]{}, fmt.Errorf("failed to list favorites: %w", err)
	}
	return result, nil
}

// Stats summarises actor's favorites over the last thirty days
func (s *favoriteService) Stats(ctx context.Context, actor domain.Actor) (*domain.FavoriteStats, error) {
	if actor.Anonymous() {
		return nil, apperror.Unauthenticated()
	}

	stats, err := s.favorites.Stats(ctx, actor.UserID, s.now().Add(-recentFavoritesWindow), domain.TopCategoriesLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorite stats: %w", err)
	}
	return stats, nil
}

// favoritable loads the listing and applies the self-favorite guard
func (s *favoriteService) favoritable(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.Listing, error) {
	if actor.Anonymous() {
		return nil, apperror.Unauthenticated()
	}

	listing, err := s.listing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if listing.OwnedBy(actor.UserID) {
		return nil, apperror.RuleViolation("you cannot favorite your own listing")
	}
	return listing, nil
}

func (s *favoriteService) listing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, apperror.NotFound("listing", listingID.String())
		}
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	return listing, nil
}

func (s *favoriteService) result(ctx context.Context, listingID uuid.UUID, action domain.FavoriteAction, favorited, changed bool) (*domain.FavoriteResult, error) {
	count, err := s.favorites.CountForListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to count favorites: %w", err)
	}
	return &domain.FavoriteResult{
		Action:    action,
		Favorited: favorited,
		Changed:   changed,
		Count:     count,
	}, nil
}

func (s *favoriteService) mapError(err error, listingID uuid.UUID, op string) error {
	if errors.Is(err, repository.ErrListingNotFound) {
		return apperror.NotFound("listing", listingID.String())
	}
	return fmt.Errorf("failed to %s favorite: %w", op, err)
}
