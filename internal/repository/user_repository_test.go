package repository

import (
	"context"
	"testing"
	"time"

	"classifieds/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestProperty_UserCreationPreservesAttributes(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("created users are found by id and email", prop.ForAll(
		func(local, name string) bool {
			email := local + "-" + uuid.NewString()[:8] + "@example.com"
			user := &domain.User{
				ID:        uuid.New(),
				Name:      name,
				Email:     email,
				Role:      "user",
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			}

			if err := repo.Create(ctx, user); err != nil {
				t.Logf("Failed to create user: %v", err)
				return false
			}

			byEmail, err := repo.FindByEmail(ctx, email)
			if err != nil || byEmail.ID != user.ID {
				return false
			}

			byID, err := repo.FindByID(ctx, user.ID)
			if err != nil {
				return false
			}

			return byID.Name == name && byID.Email == email && byID.Role == "user"
		},
		gen.RegexMatch(`[a-z]{5,10}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testDB)
	existing := newTestUser(t)

	duplicate := &domain.User{
		ID:        uuid.New(),
		Name:      "Copycat",
		Email:     existing.Email,
		Role:      "user",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	assert.ErrorIs(t, repo.Create(ctx, duplicate), ErrUserAlreadyExists)

	_, err := repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
