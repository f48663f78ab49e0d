package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"classifieds/internal/domain"
	"classifieds/internal/repository"
	"classifieds/internal/storage"

	"github.com/google/uuid"
)

// Mock repositories for testing

type favoriteKey struct {
	userID    uuid.UUID
	listingID uuid.UUID
}

type mockFavoriteRepository struct {
	mu       sync.Mutex
	pairs    map[favoriteKey]time.Time
	listings *mockListingRepository
}

func newMockFavoriteRepository() *mockFavoriteRepository {
	return &mockFavoriteRepository{pairs: make(map[favoriteKey]time.Time)}
}

func (m *mockFavoriteRepository) Add(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listings != nil && !m.listings.has(listingID) {
		return false, repository.ErrListingNotFound
	}
	key := favoriteKey{userID, listingID}
	if _, ok := m.pairs[key]; ok {
		return false, nil
	}
	m.pairs[key] = time.Now()
	return true, nil
}

func (m *mockFavoriteRepository) Remove(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := favoriteKey{userID, listingID}
	if _, ok := m.pairs[key]; !ok {
		return false, nil
	}
	delete(m.pairs, key)
	return true, nil
}

func (m *mockFavoriteRepository) Toggle(ctx context.Context, userID, listingID uuid.UUID) (domain.FavoriteAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := favoriteKey{userID, listingID}
	if _, ok := m.pairs[key]; ok {
		delete(m.pairs, key)
		return domain.FavoriteRemoved, nil
	}
	m.pairs[key] = time.Now()
	return domain.FavoriteAdded, nil
}

func (m *mockFavoriteRepository) Exists(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pairs[favoriteKey{userID, listingID}]
	return ok, nil
}

func (m *mockFavoriteRepository) CountForListing(ctx context.Context, listingID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(listingID), nil
}

func (m *mockFavoriteRepository) countLocked(listingID uuid.UUID) int {
	count := 0
	for key := range m.pairs {
		if key.listingID == listingID {
			count++
		}
	}
	return count
}

func (m *mockFavoriteRepository) FavoritedAmong(ctx context.Context, userID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[uuid.UUID]bool)
	for _, id := range listingIDs {
		if _, ok := m.pairs[favoriteKey{userID, id}]; ok {
			result[id] = true
		}
	}
	return result, nil
}

func (m *mockFavoriteRepository) ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) (domain.Page[*domain.ListingSummary], error) {
	m.mu.Lock()
	type fav struct {
		id uuid.UUID
		at time.Time
	}
	var favs []fav
	for key, at := range m.pairs {
		if key.userID == userID {
			favs = append(favs, fav{key.listingID, at})
		}
	}
	m.mu.Unlock()

	sort.Slice(favs, func(i, j int) bool { return favs[i].at.After(favs[j].at) })

	var items []*domain.ListingSummary
	for _, f := range favs {
		s, err := m.listings.FindSummaryByID(ctx, f.id)
		if err != nil {
			continue
		}
		s.IsFavorited = true
		items = append(items, s)
	}
	return paginate(items, page, pageSize, domain.FavoritesPageSize), nil
}

func (m *mockFavoriteRepository) Stats(ctx context.Context, userID uuid.UUID, since time.Time, topN int) (*domain.FavoriteStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.FavoriteStats{TopCategories: []domain.CategoryCount{}}
	for key, at := range m.pairs {
		if key.userID != userID {
			continue
		}
		stats.Total++
		if !at.Before(since) {
			stats.Recent++
		}
	}
	return stats, nil
}

func (m *mockFavoriteRepository) dropListing(listingID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.pairs {
		if key.listingID == listingID {
			delete(m.pairs, key)
		}
	}
}

type mockListingRepository struct {
	mu         sync.Mutex
	listings   map[uuid.UUID]*domain.Listing
	categories map[uuid.UUID]string
	favorites  *mockFavoriteRepository
	updateErr  error
}

func newMockListingRepository(favorites *mockFavoriteRepository) *mockListingRepository {
	m := &mockListingRepository{
		listings:   make(map[uuid.UUID]*domain.Listing),
		categories: make(map[uuid.UUID]string),
		favorites:  favorites,
	}
	favorites.listings = m
	return m
}

func (m *mockListingRepository) addCategory(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.categories[id] = name
	return id
}

func (m *mockListingRepository) has(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.listings[id]
	return ok
}

func (m *mockListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[listing.CategoryID]; !ok {
		return repository.ErrCategoryReference
	}
	stored := *listing
	m.listings[listing.ID] = &stored
	return nil
}

func (m *mockListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.listings[listing.ID]; !ok {
		return repository.ErrListingNotFound
	}
	if _, ok := m.categories[listing.CategoryID]; !ok {
		return repository.ErrCategoryReference
	}
	listing.UpdatedAt = time.Now().UTC()
	stored := *listing
	m.listings[listing.ID] = &stored
	return nil
}

func (m *mockListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	if _, ok := m.listings[id]; !ok {
		m.mu.Unlock()
		return repository.ErrListingNotFound
	}
	delete(m.listings, id)
	m.mu.Unlock()
	m.favorites.dropListing(id)
	return nil
}

func (m *mockListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	found := *listing
	return &found, nil
}

func (m *mockListingRepository) FindSummaryByID(ctx context.Context, id uuid.UUID) (*domain.ListingSummary, error) {
	listing, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.summarize(listing), nil
}

func (m *mockListingRepository) summarize(l *domain.Listing) *domain.ListingSummary {
	m.mu.Lock()
	category := m.categories[l.CategoryID]
	m.mu.Unlock()
	count, _ := m.favorites.CountForListing(context.Background(), l.ID)
	summary := &domain.ListingSummary{
		Listing:        *l,
		Owner:          domain.OwnerSummary{ID: l.OwnerID, Name: "owner"},
		Category:       domain.CategorySummary{ID: l.CategoryID, Name: category},
		FavoritesCount: count,
	}
	summary.SetDisplayFields()
	return summary
}

func (m *mockListingRepository) Search(ctx context.Context, criteria domain.ListingCriteria) (domain.Page[*domain.ListingSummary], error) {
	m.mu.Lock()
	var matched []*domain.Listing
	for _, l := range m.listings {
		if criteria.Matches(l) {
			copied := *l
			matched = append(matched, &copied)
		}
	}
	m.mu.Unlock()

	items := make([]*domain.ListingSummary, len(matched))
	for i, l := range matched {
		items[i] = m.summarize(l)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch criteria.Sort {
		case domain.SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case domain.SortPriceAsc:
			return priceOf(a) < priceOf(b)
		case domain.SortPriceDesc:
			return priceOf(a) > priceOf(b)
		case domain.SortTitle:
			return a.Title < b.Title
		case domain.SortPopular:
			if a.FavoritesCount != b.FavoritesCount {
				return a.FavoritesCount > b.FavoritesCount
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return paginate(items, criteria.Page, criteria.PageSize, domain.GridPageSize), nil
}

func (m *mockListingRepository) Suggestions(ctx context.Context, term string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	titles := []string{}
	for _, l := range m.listings {
		if l.Status == domain.ListingStatusActive && strings.Contains(strings.ToLower(l.Title), strings.ToLower(term)) && !seen[l.Title] {
			seen[l.Title] = true
			titles = append(titles, l.Title)
		}
	}
	sort.Strings(titles)
	if len(titles) > limit {
		titles = titles[:limit]
	}
	return titles, nil
}

func (m *mockListingRepository) Stats(ctx context.Context, now time.Time) (*domain.PlatformStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.PlatformStats{}
	var sum float64
	var priced int
	for _, l := range m.listings {
		if l.Status != domain.ListingStatusActive {
			continue
		}
		stats.ActiveListings++
		if l.Price != nil {
			sum += *l.Price
			priced++
		}
	}
	if priced > 0 {
		stats.AveragePrice = sum / float64(priced)
	}
	return stats, nil
}

func priceOf(s *domain.ListingSummary) float64 {
	if s.Price == nil {
		return 0
	}
	return *s.Price
}

func paginate(items []*domain.ListingSummary, page, pageSize, defaultSize int) domain.Page[*domain.ListingSummary] {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	total := len(items)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return domain.NewPage(items[start:end], total, page, pageSize)
}

type mockCategoryRepository struct {
	mu         sync.Mutex
	categories map[uuid.UUID]*domain.Category
	listCalls  int
	deleteErr  error
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
}

func (m *mockCategoryRepository) put(name string, listingCount int) *domain.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &domain.Category{ID: uuid.New(), Name: name, ListingCount: listingCount}
	m.categories[c.ID] = c
	return c
}

func (m *mockCategoryRepository) nameTaken(name string, except uuid.UUID) bool {
	for id, c := range m.categories {
		if id != except && c.Name == name {
			return true
		}
	}
	return false
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(category.Name, uuid.Nil) {
		return repository.ErrCategoryAlreadyExists
	}
	stored := *category
	m.categories[category.ID] = &stored
	return nil
}

func (m *mockCategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[category.ID]; !ok {
		return repository.ErrCategoryNotFound
	}
	if m.nameTaken(category.Name, category.ID) {
		return repository.ErrCategoryAlreadyExists
	}
	stored := *category
	m.categories[category.ID] = &stored
	return nil
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	c, ok := m.categories[id]
	if !ok {
		return repository.ErrCategoryNotFound
	}
	if c.ListingCount > 0 {
		return repository.ErrCategoryInUse
	}
	delete(m.categories, id)
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	result := []*domain.Category{}
	for _, c := range m.categories {
		copied := *c
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockCategoryRepository) MostPopular(ctx context.Context, limit int) ([]*domain.Category, error) {
	all, _ := m.List(ctx)
	sort.SliceStable(all, func(i, j int) bool { return all[i].ListingCount > all[j].ListingCount })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockCategoryRepository) SearchByName(ctx context.Context, term string, limit int) ([]*domain.Category, error) {
	all, _ := m.List(ctx)
	result := []*domain.Category{}
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(term)) {
			result = append(result, c)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type mockImageStore struct {
	mu        sync.Mutex
	stored    map[string]bool
	deleted   []string
	deleteErr error
}

func newMockImageStore() *mockImageStore {
	return &mockImageStore{stored: make(map[string]bool)}
}

func (m *mockImageStore) Store(ctx context.Context, filename string, r io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !strings.HasSuffix(filename, ".png") && !strings.HasSuffix(filename, ".jpg") {
		return "", storage.ErrUnsupportedImage
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	p := "images/listings/" + uuid.NewString() + filename[strings.LastIndex(filename, "."):]
	m.stored[p] = true
	return p, nil
}

func (m *mockImageStore) Delete(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, p)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if !m.stored[p] {
		return errors.New("image not found")
	}
	delete(m.stored, p)
	return nil
}
