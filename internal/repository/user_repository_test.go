package repository

import (
	"context"
	"testing"

	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepoCreateAndLookup(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	phone := "+100200300"
	u := &model.User{Email: "  Alice@Example.COM ", PasswordHash: "hash", FullName: "Alice",
		Phone: &phone, Role: model.RoleCustomer, IsActive: true, CreatedAt: t0}
	id, err := repo.CreateUser(ctx, u)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, "alice@example.com", u.Email)

	got, err := repo.UserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Alice", got.FullName)
	require.NotNil(t, got.Phone)
	assert.Equal(t, phone, *got.Phone)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastLoginAt)

	require.NoError(t, repo.TouchLastLogin(ctx, id, t0))
	got, err = repo.UserByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(t0))
}

func TestUserRepoDuplicateEmail(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, &model.User{Email: "bob@example.com", PasswordHash: "h", Role: model.RoleCustomer, IsActive: true, CreatedAt: t0})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, &model.User{Email: "BOB@example.com", PasswordHash: "h", Role: model.RoleCustomer, IsActive: true, CreatedAt: t0})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepoNotFound(t *testing.T) {
	repo := NewUserRepo(openTestDB(t))
	_, err := repo.UserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.UserByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}
