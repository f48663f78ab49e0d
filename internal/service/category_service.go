package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"classifieds/internal/apperror"
	"classifieds/internal/cache"
	"classifieds/internal/domain"
	"classifieds/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	categoryListKey  = "categories:list"
	categoryStatsKey = "categories:stats"

	maxCategorySearchInput = 100
)

// CategoryInput carries the editable category fields
type CategoryInput struct {
	Name        string  `json:"name" validate:"required,min=2,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// CategoryService defines the interface for category business logic
type CategoryService interface {
	List(ctx context.Context) ([]*domain.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	Create(ctx context.Context, actor domain.Actor, input CategoryInput) (*domain.Category, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	MostPopular(ctx context.Context, limit int) ([]*domain.Category, error)
	Search(ctx context.Context, term string) ([]*domain.Category, error)
	Stats(ctx context.Context) (*domain.CategoryStats, error)
}

type categoryService struct {
	categories repository.CategoryRepository
	cache      cache.Cache
	logger     *zap.Logger
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(categories repository.CategoryRepository, c cache.Cache, logger *zap.Logger) CategoryService {
	return &categoryService{
		categories: categories,
		cache:      c,
		logger:     logger,
	}
}

// List returns every category sorted by name with its listing count
func (s *categoryService) List(ctx context.Context) ([]*domain.Category, error) {
	var cached []*domain.Category
	if s.fromCache(ctx, categoryListKey, &cached) {
		return cached, nil
	}

	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	s.toCache(ctx, categoryListKey, categories)
	return categories, nil
}

func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, apperror.NotFound("category", id.String())
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

func (s *categoryService) Create(ctx context.Context, actor domain.Actor, input CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	input = normalizeCategoryInput(input)
	if err := apperror.Validate(&input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExists) {
			return nil, duplicateCategory(input.Name)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	s.logger.Info("Category created", zap.String("category_id", category.ID.String()), zap.String("name", category.Name))
	invalidateCategoryCache(ctx, s.cache, s.logger)
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input CategoryInput) (*domain.Category, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	input = normalizeCategoryInput(input)
	if err := apperror.Validate(&input); err != nil {
		return nil, err
	}

	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Name = input.Name
	category.Description = input.Description

	if err := s.categories.Update(ctx, category); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			return nil, apperror.NotFound("category", id.String())
		case errors.Is(err, repository.ErrCategoryAlreadyExists):
			return nil, duplicateCategory(input.Name)
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	invalidateCategoryCache(ctx, s.cache, s.logger)
	return category, nil
}

// Delete removes an empty category. A category that still holds listings is
// refused with a conflict naming the count.
func (s *categoryService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	category, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if category.ListingCount > 0 {
		return categoryInUse(category.ListingCount)
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			return apperror.NotFound("category", id.String())
		case errors.Is(err, repository.ErrCategoryInUse):
			// only soft-deleted listings remain, which the count above skips
			return apperror.Conflict("cannot delete this category: it is still referenced by removed listings")
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}

	s.logger.Info("Category deleted", zap.String("category_id", id.String()))
	invalidateCategoryCache(ctx, s.cache, s.logger)
	return nil
}

func (s *categoryService) MostPopular(ctx context.Context, limit int) ([]*domain.Category, error) {
	categories, err := s.categories.MostPopular(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular categories: %w", err)
	}
	return categories, nil
}

// Search matches categories by name or description
func (s *categoryService) Search(ctx context.Context, term string) ([]*domain.Category, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperror.ValidationFailed("q", "This field is required")
	}
	if len([]rune(term)) > maxCategorySearchInput {
		return nil, apperror.ValidationFailed("q", fmt.Sprintf("Must be at most %d characters", maxCategorySearchInput))
	}

	categories, err := s.categories.SearchByName(ctx, term, domain.CategorySearchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to search categories: %w", err)
	}
	return categories, nil
}

// Stats summarises how listings spread over categories
func (s *categoryService) Stats(ctx context.Context) (*domain.CategoryStats, error) {
	var cached domain.CategoryStats
	if s.fromCache(ctx, categoryStatsKey, &cached) {
		return &cached, nil
	}

	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	stats := computeCategoryStats(categories)
	s.toCache(ctx, categoryStatsKey, stats)
	return stats, nil
}

func computeCategoryStats(categories []*domain.Category) *domain.CategoryStats {
	stats := &domain.CategoryStats{
		TotalCategories: len(categories),
		TopCategories:   []domain.CategoryShare{},
	}

	for _, c := range categories {
		stats.TotalListings += c.ListingCount
		if c.ListingCount == 0 {
			stats.EmptyCategories++
		}
	}
	if stats.TotalCategories > 0 {
		stats.AveragePerCategory = roundTo(float64(stats.TotalListings)/float64(stats.TotalCategories), 2)
	}

	ranked := make([]*domain.Category, len(categories))
	copy(ranked, categories)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ListingCount > ranked[j].ListingCount
	})
	if len(ranked) > domain.TopCategoriesLimit {
		ranked = ranked[:domain.TopCategoriesLimit]
	}

	for _, c := range ranked {
		share := domain.CategoryShare{ID: c.ID, Name: c.Name, ListingCount: c.ListingCount}
		if stats.TotalListings > 0 {
			share.Percentage = roundTo(float64(c.ListingCount)/float64(stats.TotalListings)*100, 1)
		}
		stats.TopCategories = append(stats.TopCategories, share)
	}

	return stats
}

func (s *categoryService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	ok, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("Category cache read failed", zap.Error(err), zap.String("key", key))
		return false
	}
	return ok
}

func (s *categoryService) toCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("Category cache write failed", zap.Error(err), zap.String("key", key))
	}
}

// invalidateCategoryCache drops cached category data after any change that
// moves listing counts
func invalidateCategoryCache(ctx context.Context, c cache.Cache, logger *zap.Logger) {
	if err := c.Delete(ctx, categoryListKey, categoryStatsKey); err != nil {
		logger.Warn("Category cache invalidation failed", zap.Error(err))
	}
}

func requireAdmin(actor domain.Actor) error {
	if actor.Anonymous() {
		return apperror.Unauthenticated()
	}
	if !actor.IsAdmin() {
		return apperror.Forbidden("only administrators can manage categories")
	}
	return nil
}

func normalizeCategoryInput(input CategoryInput) CategoryInput {
	input.Name = strings.TrimSpace(input.Name)
	if input.Description != nil {
		d := strings.TrimSpace(*input.Description)
		if d == "" {
			input.Description = nil
		} else {
			input.Description = &d
		}
	}
	return input
}

func duplicateCategory(name string) error {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: fmt.Sprintf("a category named %q already exists", name),
		Field:   "name",
	}
}

func categoryInUse(count int) error {
	noun := "listings"
	if count == 1 {
		noun = "listing"
	}
	return apperror.Conflict(fmt.Sprintf("cannot delete this category: it still contains %d %s", count, noun))
}
