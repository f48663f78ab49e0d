package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories translate into domain errors
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Constraint names declared in the migrations
const (
	constraintCategoryName     = "categories_name_key"
	constraintUserEmail        = "users_email_key"
	constraintListingCategory  = "fk_listings_category"
	constraintListingOwner     = "fk_listings_owner"
	constraintFavoriteListing  = "fk_favorites_listing"
	constraintFavoriteUser     = "fk_favorites_user"
	constraintFavoriteUserPair = "favorites_user_listing_key"
)

// pgConstraintError reports whether err is a Postgres error with the given
// SQLSTATE raised by the named constraint. An empty constraint matches any.
func pgConstraintError(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isUniqueViolation(err error, constraint string) bool {
	return pgConstraintError(err, pgUniqueViolation, constraint)
}

func isForeignKeyViolation(err error, constraint string) bool {
	return pgConstraintError(err, pgForeignKeyViolation, constraint)
}
