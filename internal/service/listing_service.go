package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"classifieds/internal/apperror"
	"classifieds/internal/cache"
	"classifieds/internal/domain"
	"classifieds/internal/repository"
	"classifieds/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	featuredWindow     = 7 * 24 * time.Hour
	minSuggestionInput = 2
)

// ListingInput carries the user-editable listing fields
type ListingInput struct {
	Title       string               `json:"title" validate:"required,min=5,max=255"`
	Description string               `json:"description" validate:"required,min=20,max=5000"`
	CategoryID  uuid.UUID            `json:"category_id"`
	Price       *float64             `json:"price" validate:"omitempty,gte=0,lte=999999.99"`
	Location    *string              `json:"location" validate:"omitempty,max=255"`
	Status      domain.ListingStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

// ImageUpload is an image submitted alongside a listing
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// ListingService defines the interface for listing business logic
type ListingService interface {
	Search(ctx context.Context, actor domain.Actor, criteria domain.ListingCriteria) (domain.Page[*domain.ListingSummary], error)
	Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.ListingDetail, error)
	Create(ctx context.Context, actor domain.Actor, input ListingInput, image *ImageUpload) (*domain.Listing, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input ListingInput, image *ImageUpload) (*domain.Listing, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	Similar(ctx context.Context, actor domain.Actor, listing *domain.Listing, limit int) ([]*domain.ListingSummary, error)
	ListForOwner(ctx context.Context, actor domain.Actor, page int) (domain.Page[*domain.ListingSummary], error)
	Popular(ctx context.Context, actor domain.Actor, limit int) ([]*domain.ListingSummary, error)
	Recent(ctx context.Context, actor domain.Actor, limit int) ([]*domain.ListingSummary, error)
	Featured(ctx context.Context, actor domain.Actor) ([]*domain.ListingSummary, error)
	Suggestions(ctx context.Context, term string) ([]string, error)
	PlatformStats(ctx context.Context) (*domain.PlatformStats, error)
}

type listingService struct {
	listings  repository.ListingRepository
	favorites repository.FavoriteRepository
	images    storage.ImageStore
	cache     cache.Cache
	logger    *zap.Logger
	now       func() time.Time
}

// NewListingService creates a new instance of ListingService
func NewListingService(
	listings repository.ListingRepository,
	favorites repository.FavoriteRepository,
	images storage.ImageStore,
	c cache.Cache,
	logger *zap.Logger,
) ListingService {
	return &listingService{
		listings:  listings,
		favorites: favorites,
		images:    images,
		cache:     c,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Search returns one page of listings. Without explicit statuses only active
// listings are visible.
func (s *listingService) Search(ctx context.Context, actor domain.Actor, criteria domain.ListingCriteria) (domain.Page[*domain.ListingSummary], error) {
	if len(criteria.Statuses) == 0 {
		criteria.Statuses = []domain.ListingStatus{domain.ListingStatusActive}
	}

	page, err := s.listings.Search(ctx, criteria)
	if err != nil {
		return domain.Page[*domain.ListingSummary]{}, fmt.Errorf("failed to search listings: %w", err)
	}

	if err := s.markFavorites(ctx, actor, page.Items); err != nil {
		return domain.Page[*domain.ListingSummary]{}, err
	}
	return page, nil
}

// Get returns a listing with its similar listings. Listings that are not
// active are only visible to their owner.
func (s *listingService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.ListingDetail, error) {
	summary, err := s.listings.FindSummaryByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, apperror.NotFound("listing", id.String())
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	if summary.Status != domain.ListingStatusActive && !summary.OwnedBy(actor.UserID) {
		return nil, apperror.NotFound("listing", id.String())
	}

	if err := s.markFavorites(ctx, actor, []*domain.ListingSummary{summary}); err != nil {
		return nil, err
	}

	similar, err := s.Similar(ctx, actor, &summary.Listing, domain.SimilarLimit)
	if err != nil {
		return nil, err
	}

	return &domain.ListingDetail{ListingSummary: *summary, Similar: similar}, nil
}

// Create validates input, stores the optional image and persists an active listing
func (s *listingService) Create(ctx context.Context, actor domain.Actor, input ListingInput, image *ImageUpload) (*domain.Listing, error) {
	if actor.Anonymous() {
		return nil, apperror.Unauthenticated()
	}

	input = normalizeListingInput(input)
	if err := validateListingInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	listing := &domain.Listing{
		ID:          uuid.New(),
		OwnerID:     actor.UserID,
		CategoryID:  input.CategoryID,
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		Location:    input.Location,
		Status:      domain.ListingStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if image != nil {
		path, err := s.storeImage(ctx, image)
		if err != nil {
			return nil, err
		}
		listing.ImagePath = &path
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		s.discardImage(ctx, listing.ImagePath, listing.ID)
		return nil, mapListingWriteError(err, input.CategoryID)
	}

	s.logger.Info("Listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("owner_id", actor.UserID.String()),
	)

	invalidateCategoryCache(ctx, s.cache, s.logger)
	return listing, nil
}

// Update applies input to a listing owned by actor. A replacement image
// supersedes the old one, which is removed once the update is stored.
func (s *listingService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input ListingInput, image *ImageUpload) (*domain.Listing, error) {
	listing, err := s.ownedListing(ctx, actor, id, "update")
	if err != nil {
		return nil, err
	}

	input = normalizeListingInput(input)
	if err := validateListingInput(input); err != nil {
		return nil, err
	}

	previousImage := listing.ImagePath

	listing.CategoryID = input.CategoryID
	listing.Title = input.Title
	listing.Description = input.Description
	listing.Price = input.Price
	listing.Location = input.Location
	if input.Status != "" {
		listing.Status = input.Status
	}

	if image != nil {
		path, err := s.storeImage(ctx, image)
		if err != nil {
			return nil, err
		}
		listing.ImagePath = &path
	}

	if err := s.listings.Update(ctx, listing); err != nil {
		if image != nil {
			s.discardImage(ctx, listing.ImagePath, listing.ID)
		}
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, apperror.NotFound("listing", id.String())
		}
		return nil, mapListingWriteError(err, input.CategoryID)
	}

	if image != nil {
		s.discardImage(ctx, previousImage, listing.ID)
	}

	invalidateCategoryCache(ctx, s.cache, s.logger)
	return listing, nil
}

// Delete removes a listing owned by actor together with its favorites
func (s *listingService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	listing, err := s.ownedListing(ctx, actor, id, "delete")
	if err != nil {
		return err
	}

	if err := s.listings.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return apperror.NotFound("listing", id.String())
		}
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	s.discardImage(ctx, listing.ImagePath, listing.ID)

	s.logger.Info("Listing deleted",
		zap.String("listing_id", id.String()),
		zap.String("owner_id", actor.UserID.String()),
	)

	invalidateCategoryCache(ctx, s.cache, s.logger)
	return nil
}

// Similar returns active listings of the same category, newest first
func (s *listingService) Similar(ctx context.Context, actor domain.Actor, listing *domain.Listing, limit int) ([]*domain.ListingSummary, error) {
	criteria := domain.ListingCriteria{
		ExcludeID: &listing.ID,
		Sort:      domain.SortRecent,
		PageSize:  limit,
	}.WithCategory(listing.CategoryID)

	page, err := s.Search(ctx, actor, criteria)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// ListForOwner pages through the actor's own active and inactive listings
func (s *listingService) ListForOwner(ctx context.Context, actor domain.Actor, page int) (domain.Page[*domain.ListingSummary], error) {
	if actor.Anonymous() {
		return domain.Page[*domain.ListingSummary]{}, apperror.Unauthenticated()
	}

	criteria := domain.ListingCriteria{
		Statuses: []domain.ListingStatus{domain.ListingStatusActive, domain.ListingStatusInactive},
		Sort:     domain.SortRecent,
		Page:     page,
		PageSize: domain.OwnerPageSize,
	}.WithOwner(actor.UserID)

	return s.Search(ctx, actor, criteria)
}

// Popular returns the most favorited active listings
func (s *listingService) Popular(ctx context.Context, actor domain.Actor, limit int) ([]*domain.ListingSummary, error) {
	return s.top(ctx, actor, domain.ListingCriteria{Sort: domain.SortPopular, PageSize: limit})
}

// Recent returns the newest active listings
func (s *listingService) Recent(ctx context.Context, actor domain.Actor, limit int) ([]*domain.ListingSummary, error) {
	return s.top(ctx, actor, domain.ListingCriteria{Sort: domain.SortRecent, PageSize: limit})
}

// Featured returns the newest active listings of the past week
func (s *listingService) Featured(ctx context.Context, actor domain.Actor) ([]*domain.ListingSummary, error) {
	since := s.now().Add(-featuredWindow)
	return s.top(ctx, actor, domain.ListingCriteria{
		CreatedAfter: &since,
		Sort:         domain.SortRecent,
		PageSize:     domain.FeaturedLimit,
	})
}

func (s *listingService) top(ctx context.Context, actor domain.Actor, criteria domain.ListingCriteria) ([]*domain.ListingSummary, error) {
	page, err := s.Search(ctx, actor, criteria)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Suggestions returns titles for search-as-you-type. Terms shorter than two
// characters yield nothing.
func (s *listingService) Suggestions(ctx context.Context, term string) ([]string, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < minSuggestionInput {
		return []string{}, nil
	}

	titles, err := s.listings.Suggestions(ctx, term, domain.SuggestionLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions: %w", err)
	}
	return titles, nil
}

func (s *listingService) PlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	stats, err := s.listings.Stats(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load platform stats: %w", err)
	}
	stats.AveragePrice = roundTo(stats.AveragePrice, 2)
	return stats, nil
}

// ownedListing loads a listing and checks that actor may mutate it
func (s *listingService) ownedListing(ctx context.Context, actor domain.Actor, id uuid.UUID, action string) (*domain.Listing, error) {
	if actor.Anonymous() {
		return nil, apperror.Unauthenticated()
	}

	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, apperror.NotFound("listing", id.String())
		}
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}

	if !listing.OwnedBy(actor.UserID) {
		s.logger.Warn("Listing ownership check failed",
			zap.String("listing_id", id.String()),
			zap.String("actor_id", actor.UserID.String()),
			zap.String("action", action),
		)
		return nil, apperror.Forbidden(fmt.Sprintf("you are not allowed to %s this listing", action))
	}

	return listing, nil
}

// markFavorites sets IsFavorited on every item with a single lookup
func (s *listingService) markFavorites(ctx context.Context, actor domain.Actor, items []*domain.ListingSummary) error {
	if actor.Anonymous() || len(items) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	favorited, err := s.favorites.FavoritedAmong(ctx, actor.UserID, ids)
	if err != nil {
		return fmt.Errorf("failed to resolve favorites: %w", err)
	}

	for _, item := range items {
		item.IsFavorited = favorited[item.ID]
	}
	return nil
}

func (s *listingService) storeImage(ctx context.Context, image *ImageUpload) (string, error) {
	path, err := s.images.Store(ctx, image.Filename, image.Content)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) || errors.Is(err, storage.ErrImageTooLarge) {
			return "", apperror.ValidationFailed("image", err.Error())
		}
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return path, nil
}

// discardImage removes an image best-effort; failures are logged only
func (s *listingService) discardImage(ctx context.Context, path *string, listingID uuid.UUID) {
	if path == nil || *path == "" {
		return
	}
	if err := s.images.Delete(ctx, *path); err != nil {
		s.logger.Warn("Failed to delete listing image",
			zap.Error(err),
			zap.String("listing_id", listingID.String()),
			zap.String("path", *path),
		)
	}
}

func normalizeListingInput(input ListingInput) ListingInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Location != nil {
		loc := strings.TrimSpace(*input.Location)
		if loc == "" {
			input.Location = nil
		} else {
			input.Location = &loc
		}
	}
	return input
}

func validateListingInput(input ListingInput) error {
	err := apperror.Validate(&input)
	fields := apperror.FieldsOf(err)
	if err != nil && fields == nil {
		return err
	}
	if input.CategoryID == uuid.Nil {
		fields = append(fields, apperror.FieldError{Field: "category_id", Message: "This field is required"})
	}
	if len(fields) > 0 {
		return apperror.Invalid(fields)
	}
	return nil
}

func mapListingWriteError(err error, categoryID uuid.UUID) error {
	if errors.Is(err, repository.ErrCategoryReference) {
		return apperror.ValidationFailed("category_id", fmt.Sprintf("category %s does not exist", categoryID))
	}
	return fmt.Errorf("failed to save listing: %w", err)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
