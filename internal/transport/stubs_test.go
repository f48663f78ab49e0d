package transport

import (
	"context"
	"io"

	"classifieds/internal/apperror"
	"classifieds/internal/domain"
	"classifieds/internal/service"

	"github.com/google/uuid"
)

// stubListingService records the last criteria and input it received
type stubListingService struct {
	criteria  domain.ListingCriteria
	actor     domain.Actor
	input     service.ListingInput
	imageName string
	imageBody []byte
	err       error
}

func (s *stubListingService) Search(ctx context.Context, actor domain.Actor, criteria domain.ListingCriteria) (domain.Page[*domain.ListingSummary], error) {
	s.actor, s.criteria = actor, criteria
	if s.err != nil {
		return domain.Page[*domain.ListingSummary]{}, s.err
	}
	return domain.NewPage[*domain.ListingSummary](nil, 0, criteria.Page, criteria.PageSize), nil
}

func (s *stubListingService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.ListingDetail, error) {
	s.actor = actor
	if s.err != nil {
		return nil, s.err
	}
	detail := &domain.ListingDetail{}
	detail.ID = id
	return detail, nil
}

func (s *stubListingService) Create(ctx context.Context, actor domain.Actor, input service.ListingInput, image *service.ImageUpload) (*domain.Listing, error) {
	s.actor, s.input = actor, input
	if image != nil {
		s.imageName = image.Filename
		s.imageBody, _ = io.ReadAll(image.Content)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Listing{ID: uuid.New(), OwnerID: actor.UserID, Title: input.Title, Status: domain.ListingStatusActive}, nil
}

func (s *stubListingService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input service.ListingInput, image *service.ImageUpload) (*domain.Listing, error) {
	s.actor, s.input = actor, input
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Listing{ID: id, OwnerID: actor.UserID, Title: input.Title}, nil
}

func (s *stubListingService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	s.actor = actor
	return s.err
}

func (s *stubListingService) Similar(ctx context.Context, actor domain.Actor, listing *domain.Listing, limit int) ([]*domain.ListingSummary, error) {
	return nil, s.err
}

func (s *stubListingService) ListForOwner(ctx context.Context, actor domain.Actor, page int) (domain.Page[*domain.ListingSummary], error) {
	s.actor = actor
	if actor.Anonymous() {
		return domain.Page[*domain.ListingSummary]{}, apperror.Unauthenticated()
	}
	return domain.NewPage[*domain.ListingSummary](nil, 0, page, domain.OwnerPageSize), s.err
}

func (s *stubListingService) Popular(ctx context.Context, actor domain.Actor, limit int) ([]*domain.ListingSummary, error) {
	s.criteria.PageSize = limit
	return nil, s.err
}

func (s *stubListingService) Recent(ctx context.Context, actor domain.Actor, limit int) ([]*domain.ListingSummary, error) {
	s.criteria.PageSize = limit
	return nil, s.err
}

func (s *stubListingService) Featured(ctx context.Context, actor domain.Actor) ([]*domain.ListingSummary, error) {
	return nil, s.err
}

func (s *stubListingService) Suggestions(ctx context.Context, term string) ([]string, error) {
	s.criteria.Search = term
	return []string{"Mountain bike"}, s.err
}

func (s *stubListingService) PlatformStats(ctx context.Context) (*domain.PlatformStats, error) {
	return &domain.PlatformStats{ActiveListings: 3}, s.err
}

type stubCategoryService struct {
	category *domain.Category
	input    service.CategoryInput
	err      error
}

func (s *stubCategoryService) List(ctx context.Context) ([]*domain.Category, error) {
	return []*domain.Category{s.category}, s.err
}

func (s *stubCategoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	if s.category == nil || s.category.ID != id {
		return nil, apperror.NotFound("category", id.String())
	}
	return s.category, nil
}

func (s *stubCategoryService) Create(ctx context.Context, actor domain.Actor, input service.CategoryInput) (*domain.Category, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Category{ID: uuid.New(), Name: input.Name}, nil
}

func (s *stubCategoryService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, input service.CategoryInput) (*domain.Category, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Category{ID: id, Name: input.Name}, nil
}

func (s *stubCategoryService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	return s.err
}

func (s *stubCategoryService) MostPopular(ctx context.Context, limit int) ([]*domain.Category, error) {
	return []*domain.Category{s.category}, s.err
}

func (s *stubCategoryService) Search(ctx context.Context, term string) ([]*domain.Category, error) {
	if term == "" {
		return nil, apperror.ValidationFailed("q", "search term is required")
	}
	return []*domain.Category{s.category}, s.err
}

func (s *stubCategoryService) Stats(ctx context.Context) (*domain.CategoryStats, error) {
	return &domain.CategoryStats{TotalCategories: 1}, s.err
}

// stubFavoriteService keeps favorite state in a set so toggles behave
type stubFavoriteService struct {
	owner     uuid.UUID
	favorited map[uuid.UUID]bool
	err       error
}

func newStubFavoriteService() *stubFavoriteService {
	return &stubFavoriteService{favorited: make(map[uuid.UUID]bool)}
}

func (s *stubFavoriteService) guard(actor domain.Actor) error {
	if actor.Anonymous() {
		return apperror.Unauthenticated()
	}
	if actor.UserID == s.owner {
		return apperror.RuleViolation("you cannot favorite your own listing")
	}
	return s.err
}

func (s *stubFavoriteService) result(listingID uuid.UUID, action domain.FavoriteAction, changed bool) *domain.FavoriteResult {
	count := 0
	if s.favorited[listingID] {
		count = 1
	}
	return &domain.FavoriteResult{Action: action, Favorited: s.favorited[listingID], Changed: changed, Count: count}
}

func (s *stubFavoriteService) Add(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error) {
	if err := s.guard(actor); err != nil {
		return nil, err
	}
	changed := !s.favorited[listingID]
	s.favorited[listingID] = true
	return s.result(listingID, domain.FavoriteAdded, changed), nil
}

func (s *stubFavoriteService) Remove(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error) {
	if actor.Anonymous() {
		return nil, apperror.Unauthenticated()
	}
	if s.err != nil {
		return nil, s.err
	}
	changed := s.favorited[listingID]
	delete(s.favorited, listingID)
	return s.result(listingID, domain.FavoriteRemoved, changed), nil
}

func (s *stubFavoriteService) Toggle(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error) {
	if err := s.guard(actor); err != nil {
		return nil, err
	}
	if s.favorited[listingID] {
		delete(s.favorited, listingID)
		return s.result(listingID, domain.FavoriteRemoved, true), nil
	}
	s.favorited[listingID] = true
	return s.result(listingID, domain.FavoriteAdded, true), nil
}

func (s *stubFavoriteService) Check(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error) {
	r := s.result(listingID, "", false)
	if actor.Anonymous() {
		r.Favorited = false
	}
	return r, nil
}

func (s *stubFavoriteService) ListForUser(ctx context.Context, actor domain.Actor, page int) (domain.Page[*domain.ListingSummary], error) {
	return domain.NewPage[*domain.ListingSummary](nil, len(s.favorited), page, domain.FavoritesPageSize), nil
}

func (s *stubFavoriteService) Stats(ctx context.Context, actor domain.Actor) (*domain.FavoriteStats, error) {
	return &domain.FavoriteStats{Total: len(s.favorited)}, nil
}
