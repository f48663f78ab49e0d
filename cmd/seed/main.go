package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classifieds/internal/config"
	"classifieds/internal/database"
	"classifieds/internal/domain"
	"classifieds/internal/logger"
	"classifieds/internal/middleware"
	"classifieds/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	adminEmail  = "admin@classifieds.local"
	memberEmail = "member@classifieds.local"
	tokenTTL    = 30 * 24 * time.Hour
)

type seedCategory struct {
	name        string
	description string
}

var demoCategories = []seedCategory{
	{"Electronics", "Phones, computers and everything with a plug"},
	{"Furniture", "Tables, chairs, storage and decoration"},
	{"Vehicles", "Cars, motorbikes and bicycles"},
	{"Books", "Novels, comics and textbooks"},
	{"Garden", "Tools, plants and outdoor furniture"},
}

type seedListing struct {
	category    string
	title       string
	description string
	price       *float64
	location    string
	age         time.Duration
}

func price(v float64) *float64 { return &v }

var demoListings = []seedListing{
	{"Electronics", "iPhone 13 128GB", "Unlocked, battery health 89%, always kept in a case.", price(420), "Paris", 2 * time.Hour},
	{"Electronics", "Mechanical keyboard", "Brown switches, full size, comes with spare keycaps.", price(65), "Lyon", 26 * time.Hour},
	{"Furniture", "Oak dining table", "Solid oak, seats six, a few marks on one leg.", price(0), "Lyon", 3 * 24 * time.Hour},
	{"Furniture", "Bookshelf to give away", "White five-shelf bookcase, must be collected this week.", nil, "Marseille", 5 * 24 * time.Hour},
	{"Vehicles", "Mountain bike 21 gears", "Aluminium frame, new tyres and brake pads last spring.", price(250), "Grenoble", 9 * 24 * time.Hour},
	{"Books", "Complete fantasy saga", "All seven volumes in paperback, good condition overall.", price(35), "Paris", 12 * 24 * time.Hour},
	{"Garden", "Electric lawn mower", "1400W, 38cm cut, grass box included and working fine.", price(80), "Nantes", 40 * 24 * time.Hour},
}

type seeder struct {
	users      repository.UserRepository
	categories repository.CategoryRepository
	listings   repository.ListingRepository
	favorites  repository.FavoriteRepository
	log        *zap.Logger
	now        time.Time
}

func (s *seeder) user(ctx context.Context, email, name, role string) (*domain.User, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	user := &domain.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("Seeded user", zap.String("email", email), zap.String("role", role))
	return user, nil
}

func (s *seeder) seedCategories(ctx context.Context) (map[string]uuid.UUID, error) {
	existing, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]uuid.UUID, len(demoCategories))
	for _, c := range existing {
		ids[c.Name] = c.ID
	}

	for _, c := range demoCategories {
		if _, ok := ids[c.name]; ok {
			continue
		}
		description := c.description
		category := &domain.Category{
			ID:          uuid.New(),
			Name:        c.name,
			Description: &description,
			CreatedAt:   s.now,
			UpdatedAt:   s.now,
		}
		if err := s.categories.Create(ctx, category); err != nil {
			return nil, fmt.Errorf("category %s: %w", c.name, err)
		}
		ids[c.name] = category.ID
	}
	return ids, nil
}

func (s *seeder) seedListings(ctx context.Context, owner *domain.User, categories map[string]uuid.UUID) ([]uuid.UUID, error) {
	page, err := s.listings.Search(ctx, domain.ListingCriteria{PageSize: 1}.WithOwner(owner.ID))
	if err != nil {
		return nil, err
	}
	if page.Total > 0 {
		s.log.Info("Listings already seeded", zap.Int("count", page.Total))
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(demoListings))
	for _, l := range demoListings {
		location := l.location
		created := s.now.Add(-l.age)
		listing := &domain.Listing{
			ID:          uuid.New(),
			OwnerID:     owner.ID,
			CategoryID:  categories[l.category],
			Title:       l.title,
			Description: l.description,
			Price:       l.price,
			Location:    &location,
			Status:      domain.ListingStatusActive,
			CreatedAt:   created,
			UpdatedAt:   created,
		}
		if err := s.listings.Create(ctx, listing); err != nil {
			return nil, fmt.Errorf("listing %q: %w", l.title, err)
		}
		ids = append(ids, listing.ID)
	}
	return ids, nil
}

func main() {
	cfg := config.Load()

	log := logger.NewWithDefaults()
	defer log.Sync()

	ctx := context.Background()

	dbService, err := database.New(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbService.Close()

	db := dbService.DB()
	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsDir, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	s := &seeder{
		users:      repository.NewUserRepository(db),
		categories: repository.NewCategoryRepository(db),
		listings:   repository.NewListingRepository(db),
		favorites:  repository.NewFavoriteRepository(db),
		log:        log,
		now:        time.Now().UTC(),
	}

	admin, err := s.user(ctx, adminEmail, "Admin", domain.RoleAdmin)
	if err != nil {
		log.Fatal("Failed to seed admin", zap.Error(err))
	}
	member, err := s.user(ctx, memberEmail, "Demo Member", "user")
	if err != nil {
		log.Fatal("Failed to seed member", zap.Error(err))
	}

	categories, err := s.seedCategories(ctx)
	if err != nil {
		log.Fatal("Failed to seed categories", zap.Error(err))
	}

	listingIDs, err := s.seedListings(ctx, member, categories)
	if err != nil {
		log.Fatal("Failed to seed listings", zap.Error(err))
	}

	// the admin bookmarks every other demo listing so popularity sorting has data
	for i := 0; i < len(listingIDs); i += 2 {
		if _, err := s.favorites.Add(ctx, admin.ID, listingIDs[i]); err != nil {
			log.Fatal("Failed to seed favorite", zap.Error(err))
		}
	}

	for _, u := range []*domain.User{admin, member} {
		token, err := middleware.IssueToken(cfg.JWT.Secret, u.ID, u.Role, tokenTTL)
		if err != nil {
			log.Fatal("Failed to issue token", zap.Error(err))
		}
		log.Info("Development token", zap.String("email", u.Email), zap.String("role", u.Role), zap.String("token", token))
	}

	statuses, err := database.MigrationStatus(ctx, db, cfg.Database.MigrationsDir)
	if err != nil {
		log.Warn("Failed to read migration status", zap.Error(err))
	}
	for _, st := range statuses {
		log.Debug("Migration", zap.String("file", st.Source.Path), zap.String("state", string(st.State)))
	}

	log.Info("Seeding complete",
		zap.Int("categories", len(categories)),
		zap.Int("listings", len(listingIDs)),
	)
}
