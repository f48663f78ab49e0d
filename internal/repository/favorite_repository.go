package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"classifieds/internal/domain"

	"github.com/google/uuid"
)

// FavoriteRepository defines the interface for favorite data access.
// Every mutation is idempotent per (user, listing) pair: the unique
// constraint on the pair is the single source of truth.
type FavoriteRepository interface {
	Add(ctx context.Context, userID, listingID uuid.UUID) (bool, error)
	Remove(ctx context.Context, userID, listingID uuid.UUID) (bool, error)
	Toggle(ctx context.Context, userID, listingID uuid.UUID) (domain.FavoriteAction, error)
	Exists(ctx context.Context, userID, listingID uuid.UUID) (bool, error)
	CountForListing(ctx context.Context, listingID uuid.UUID) (int, error)
	FavoritedAmong(ctx context.Context, userID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) (domain.Page[*domain.ListingSummary], error)
	Stats(ctx context.Context, userID uuid.UUID, since time.Time, topN int) (*domain.FavoriteStats, error)
}

type favoriteRepository struct {
	db *sql.DB
}

// NewFavoriteRepository creates a new instance of FavoriteRepository
func NewFavoriteRepository(db *sql.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Add inserts the pair and reports whether a row was created
func (r *favoriteRepository) Add(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	return insertFavorite(ctx, r.db, userID, listingID)
}

// Remove deletes the pair and reports whether a row was removed
func (r *favoriteRepository) Remove(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	return deleteFavorite(ctx, r.db, userID, listingID)
}

// Toggle flips the pair inside one transaction. A concurrent insert of the
// same pair is absorbed by ON CONFLICT, so the pair never duplicates.
func (r *favoriteRepository) Toggle(ctx context.Context, userID, listingID uuid.UUID) (domain.FavoriteAction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND listing_id = $2)`,
		userID, listingID,
	).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("failed to check favorite: %w", err)
	}

	action := domain.FavoriteAdded
	if exists {
		action = domain.FavoriteRemoved
		_, err = deleteFavorite(ctx, tx, userID, listingID)
	} else {
		_, err = insertFavorite(ctx, tx, userID, listingID)
	}
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit favorite toggle: %w", err)
	}

	return action, nil
}

// Exists reports whether the user has favorited the listing
func (r *favoriteRepository) Exists(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND listing_id = $2)`,
		userID, listingID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return exists, nil
}

// CountForListing returns how many users favorited the listing
func (r *favoriteRepository) CountForListing(ctx context.Context, listingID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE listing_id = $1`, listingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count favorites: %w", err)
	}
	return count, nil
}

// FavoritedAmong resolves the favorite flag for a whole page in one query
func (r *favoriteRepository) FavoritedAmong(ctx context.Context, userID uuid.UUID, listingIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(listingIDs))
	if len(listingIDs) == 0 {
		return result, nil
	}

	ids := make([]string, len(listingIDs))
	for i, id := range listingIDs {
		ids[i] = id.String()
	}

	rows, err := r.db.QueryContext(
		ctx,
		`SELECT listing_id FROM favorites WHERE user_id = $1 AND listing_id = ANY($2::uuid[])`,
		userID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		result[id] = true
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorites: %w", err)
	}

	return result, nil
}

// ListForUser pages through the user's favorited listings, newest favorite first
func (r *favoriteRepository) ListForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) (domain.Page[*domain.ListingSummary], error) {
	page, pageSize = normalizePage(page, pageSize, domain.FavoritesPageSize)

	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return domain.Page[*domain.ListingSummary]{}, fmt.Errorf("failed to count favorites: %w", err)
	}

	query := "SELECT " + summaryColumns + summaryJoins + `
		JOIN favorites fav ON fav.listing_id = l.id
		WHERE fav.user_id = $1
		ORDER BY fav.created_at DESC, fav.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return domain.Page[*domain.ListingSummary]{}, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	items, err := collectSummaries(rows)
	if err != nil {
		return domain.Page[*domain.ListingSummary]{}, err
	}
	for _, item := range items {
		item.IsFavorited = true
	}

	return domain.NewPage(items, total, page, pageSize), nil
}

// Stats summarises the user's favorites: total, those added since the given
// time, and the categories favorited most often
func (r *favoriteRepository) Stats(ctx context.Context, userID uuid.UUID, since time.Time, topN int) (*domain.FavoriteStats, error) {
	stats := &domain.FavoriteStats{TopCategories: []domain.CategoryCount{}}

	err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $2) FROM favorites WHERE user_id = $1`,
		userID, since,
	).Scan(&stats.Total, &stats.Recent)
	if err != nil {
		return nil, fmt.Errorf("failed to count favorites: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.name, COUNT(*) AS favorites
		FROM favorites f
		JOIN listings l ON l.id = f.listing_id
		JOIN categories c ON c.id = l.category_id
		WHERE f.user_id = $1
		GROUP BY c.id, c.name
		ORDER BY favorites DESC, c.name ASC
		LIMIT $2
	`, userID, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate favorite categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc domain.CategoryCount
		if err := rows.Scan(&cc.Name, &cc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan favorite category: %w", err)
		}
		stats.TopCategories = append(stats.TopCategories, cc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating favorite categories: %w", err)
	}

	return stats, nil
}

func insertFavorite(ctx context.Context, db execer, userID, listingID uuid.UUID) (bool, error) {
	result, err := db.ExecContext(
		ctx,
		`INSERT INTO favorites (id, user_id, listing_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT ON CONSTRAINT `+constraintFavoriteUserPair+` DO NOTHING`,
		uuid.New(), userID, listingID, time.Now().UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err, constraintFavoriteListing) {
			return false, ErrListingNotFound
		}
		if isForeignKeyViolation(err, constraintFavoriteUser) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func deleteFavorite(ctx context.Context, db execer, userID, listingID uuid.UUID) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2`, userID, listingID)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
