package repository

import (
	"context"
	"testing"
	"time"

	"github.com/iliyamo/ticket-booking-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToken(userID uint64, hash string, created time.Time) *model.RefreshToken {
	label := "laptop"
	return &model.RefreshToken{UserID: userID, TokenHash: hash, DeviceLabel: &label,
		CreatedAt: created, ExpiresAt: created.Add(24 * time.Hour)}
}

func TestTokenRepoInsertAndLookup(t *testing.T) {
	repo := NewTokenRepo(openTestDB(t))
	ctx := context.Background()

	id, err := repo.InsertToken(ctx, newToken(7, "h1", t0))
	require.NoError(t, err)

	got, err := repo.TokenByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, uint64(7), got.UserID)
	require.NotNil(t, got.DeviceLabel)
	assert.Equal(t, "laptop", *got.DeviceLabel)
	assert.Nil(t, got.OriginAddress)
	assert.True(t, got.Active(t0.Add(time.Hour)))

	_, err = repo.TokenByHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.InsertToken(ctx, newToken(7, "h1", t0))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTokenRepoActiveTokensOrdering(t *testing.T) {
	repo := NewTokenRepo(openTestDB(t))
	ctx := context.Background()

	idB, err := repo.InsertToken(ctx, newToken(1, "b", t0.Add(time.Minute)))
	require.NoError(t, err)
	idA, err := repo.InsertToken(ctx, newToken(1, "a", t0))
	require.NoError(t, err)
	idC, err := repo.InsertToken(ctx, newToken(1, "c", t0.Add(time.Minute)))
	require.NoError(t, err)
	_, err = repo.InsertToken(ctx, newToken(2, "other", t0))
	require.NoError(t, err)

	list, err := repo.ActiveTokens(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint64{idA, idB, idC}, []uint64{list[0].ID, list[1].ID, list[2].ID})

	ok, err := repo.RevokeToken(ctx, idA, t0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.RevokeToken(ctx, idA, t0)
	require.NoError(t, err)
	assert.False(t, ok, "second revoke is a no-op")

	list, err = repo.ActiveTokens(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := repo.RevokeAllTokens(ctx, 1, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	list, err = repo.ActiveTokens(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTokenRepoRotate(t *testing.T) {
	repo := NewTokenRepo(openTestDB(t))
	ctx := context.Background()

	oldID, err := repo.InsertToken(ctx, newToken(1, "old", t0))
	require.NoError(t, err)

	next := newToken(1, "new", t0.Add(time.Minute))
	newID, err := repo.RotateToken(ctx, oldID, next, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, newID, next.ID)

	old, err := repo.TokenByHash(ctx, "old")
	require.NoError(t, err)
	assert.True(t, old.Rotated())
	require.NotNil(t, old.ReplacedBy)
	assert.Equal(t, newID, *old.ReplacedBy)

	// A second rotation of the same record loses the compare-and-set.
	_, err = repo.RotateToken(ctx, oldID, newToken(1, "newer", t0.Add(2*time.Minute)), t0)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = repo.TokenByHash(ctx, "newer")
	assert.ErrorIs(t, err, ErrNotFound, "loser must not write its token")
}
