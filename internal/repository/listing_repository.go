package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"classifieds/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrListingNotFound      = errors.New("listing not found")
	ErrListingOwnerNotFound = errors.New("listing owner not found")
	ErrCategoryReference    = errors.New("listing references an unknown category")
)

// ListingRepository defines the interface for listing data access
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	Update(ctx context.Context, listing *domain.Listing) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	FindSummaryByID(ctx context.Context, id uuid.UUID) (*domain.ListingSummary, error)
	Search(ctx context.Context, criteria domain.ListingCriteria) (domain.Page[*domain.ListingSummary], error)
	Suggestions(ctx context.Context, term string, limit int) ([]string, error)
	Stats(ctx context.Context, now time.Time) (*domain.PlatformStats, error)
}

type listingRepository struct {
	db *sql.DB
}

// NewListingRepository creates a new instance of ListingRepository
func NewListingRepository(db *sql.DB) ListingRepository {
	return &listingRepository{db: db}
}

// summaryColumns selects a listing joined with its owner, category and
// favorites count. The count is an output column so it can be sorted on.
const summaryColumns = `
	l.id, l.owner_id, l.category_id, l.title, l.description, l.price, l.location,
	l.image_path, l.status, l.created_at, l.updated_at,
	u.name, c.name,
	(SELECT COUNT(*) FROM favorites f WHERE f.listing_id = l.id) AS favorites_count
`

const summaryJoins = `
	FROM listings l
	JOIN users u ON u.id = l.owner_id
	JOIN categories c ON c.id = l.category_id
`

// Create inserts a new listing into the database using parameterized queries
func (r *listingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	query := `
		INSERT INTO listings (id, owner_id, category_id, title, description, price, location,
		                      image_path, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.OwnerID,
		listing.CategoryID,
		listing.Title,
		listing.Description,
		listing.Price,
		listing.Location,
		listing.ImagePath,
		string(listing.Status),
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		return mapListingWriteError("create", err)
	}

	return nil
}

// Update rewrites the mutable fields of a listing. The owner never changes.
func (r *listingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	query := `
		UPDATE listings
		SET category_id = $2, title = $3, description = $4, price = $5,
		    location = $6, image_path = $7, status = $8
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		listing.ID,
		listing.CategoryID,
		listing.Title,
		listing.Description,
		listing.Price,
		listing.Location,
		listing.ImagePath,
		string(listing.Status),
	).Scan(&listing.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrListingNotFound
		}
		return mapListingWriteError("update", err)
	}

	return nil
}

// Delete removes a listing; its favorites go with it through the cascade
func (r *listingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM listings WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrListingNotFound
	}

	return nil
}

// FindByID retrieves a bare listing by ID
func (r *listingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	query := `
		SELECT id, owner_id, category_id, title, description, price, location,
		       image_path, status, created_at, updated_at
		FROM listings
		WHERE id = $1
	`

	listing := &domain.Listing{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&listing.ID,
		&listing.OwnerID,
		&listing.CategoryID,
		&listing.Title,
		&listing.Description,
		&listing.Price,
		&listing.Location,
		&listing.ImagePath,
		&listing.Status,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to find listing by ID: %w", err)
	}

	return listing, nil
}

// FindSummaryByID retrieves a listing with its owner, category and favorites count
func (r *listingRepository) FindSummaryByID(ctx context.Context, id uuid.UUID) (*domain.ListingSummary, error) {
	query := "SELECT " + summaryColumns + summaryJoins + " WHERE l.id = $1"

	summary, err := scanSummary(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to find listing summary: %w", err)
	}

	return summary, nil
}

// Search runs the compiled criteria and returns one page plus the total count
func (r *listingRepository) Search(ctx context.Context, criteria domain.ListingCriteria) (domain.Page[*domain.ListingSummary], error) {
	q := CompileListingQuery(criteria)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listings l %s", q.Where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, q.Args...).Scan(&total); err != nil {
		return domain.Page[*domain.ListingSummary]{}, fmt.Errorf("failed to count listings: %w", err)
	}

	n := len(q.Args)
	query := fmt.Sprintf(
		"SELECT %s %s %s ORDER BY %s LIMIT $%d OFFSET $%d",
		summaryColumns, summaryJoins, q.Where, q.OrderBy, n+1, n+2,
	)
	args := append(append([]interface{}{}, q.Args...), q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Page[*domain.ListingSummary]{}, fmt.Errorf("failed to search listings: %w", err)
	}
	defer rows.Close()

	items, err := collectSummaries(rows)
	if err != nil {
		return domain.Page[*domain.ListingSummary]{}, err
	}

	return domain.NewPage(items, total, q.Page, q.Limit), nil
}

// Suggestions returns distinct active listing titles containing term
func (r *listingRepository) Suggestions(ctx context.Context, term string, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT title
		FROM listings
		WHERE status = 'active' AND title ILIKE $1
		ORDER BY title ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, containsPattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	titles := []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		titles = append(titles, title)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}

	return titles, nil
}

// Stats aggregates marketplace-wide counters relative to now
func (r *listingRepository) Stats(ctx context.Context, now time.Time) (*domain.PlatformStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(DISTINCT category_id) FILTER (WHERE status = 'active'),
			COALESCE(AVG(price) FILTER (WHERE status = 'active' AND price IS NOT NULL), 0),
			COALESCE(MIN(price) FILTER (WHERE status = 'active' AND price IS NOT NULL), 0),
			COALESCE(MAX(price) FILTER (WHERE status = 'active' AND price IS NOT NULL), 0),
			COUNT(*) FILTER (WHERE status = 'active' AND created_at >= $1),
			COUNT(*) FILTER (WHERE status = 'active' AND created_at >= $2),
			(SELECT COUNT(*) FROM users)
		FROM listings
	`

	weekAgo := now.AddDate(0, 0, -7)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := &domain.PlatformStats{}
	err := r.db.QueryRowContext(ctx, query, weekAgo, startOfDay).Scan(
		&stats.ActiveListings,
		&stats.CategoriesWithActive,
		&stats.AveragePrice,
		&stats.MinPrice,
		&stats.MaxPrice,
		&stats.NewThisWeek,
		&stats.NewToday,
		&stats.Users,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute platform stats: %w", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row rowScanner) (*domain.ListingSummary, error) {
	s := &domain.ListingSummary{}
	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.CategoryID,
		&s.Title,
		&s.Description,
		&s.Price,
		&s.Location,
		&s.ImagePath,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.Owner.Name,
		&s.Category.Name,
		&s.FavoritesCount,
	)
	if err != nil {
		return nil, err
	}
	s.Owner.ID = s.OwnerID
	s.Category.ID = s.CategoryID
	s.SetDisplayFields()
	return s, nil
}

func collectSummaries(rows *sql.Rows) ([]*domain.ListingSummary, error) {
	items := []*domain.ListingSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		items = append(items, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return items, nil
}

func mapListingWriteError(op string, err error) error {
	switch {
	case isForeignKeyViolation(err, constraintListingCategory):
		return ErrCategoryReference
	case isForeignKeyViolation(err, constraintListingOwner):
		return ErrListingOwnerNotFound
	}
	return fmt.Errorf("failed to %s listing: %w", op, err)
}
