package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
)

func optOut(number string, scope model.OptOutScope, ref string) *model.OptOutRecord {
	return &model.OptOutRecord{
		PhoneNumber: number,
		Scope:       scope,
		ScopeRef:    ref,
		Method:      model.OptOutMethodReplyKeyword,
		CreatedAt:   time.Now(),
	}
}

func TestOptOutRepository_Create_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOptOutRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, optOut("+16175550123", model.OptOutScopeCampaign, "cmp-1"))
	require.NoError(t, err)
	assert.True(t, created)

	// Same key again: silently absorbed.
	created, err = repo.Create(ctx, optOut("+16175550123", model.OptOutScopeCampaign, "cmp-1"))
	require.NoError(t, err)
	assert.False(t, created)

	// Different scope for the same number is a distinct record.
	created, err = repo.Create(ctx, optOut("+16175550123", model.OptOutScopeGlobal, ""))
	require.NoError(t, err)
	assert.True(t, created)

	history, err := repo.ListByNumber(ctx, "+16175550123")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestOptOutRepository_FindActive_Scopes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOptOutRepository(db.DB)
	ctx := context.Background()

	seed := []*model.OptOutRecord{
		optOut("+16175550123", model.OptOutScopeCampaign, "cmp-1"),
		optOut("+16175550124", model.OptOutScopeBrand, "brd-1"),
		optOut("+16175550125", model.OptOutScopeGlobal, ""),
	}
	for _, rec := range seed {
		created, err := repo.Create(ctx, rec)
		require.NoError(t, err)
		require.True(t, created)
	}

	t.Run("campaign scope matches only its campaign", func(t *testing.T) {
		records, err := repo.FindActive(ctx, "+16175550123", "cmp-1", "brd-9")
		require.NoError(t, err)
		assert.Len(t, records, 1)

		records, err = repo.FindActive(ctx, "+16175550123", "cmp-other", "brd-9")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("brand scope suppresses every campaign of the brand", func(t *testing.T) {
		records, err := repo.FindActive(ctx, "+16175550124", "cmp-any", "brd-1")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("global scope suppresses everything", func(t *testing.T) {
		records, err := repo.FindActive(ctx, "+16175550125", "cmp-any", "brd-any")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("other numbers are unaffected", func(t *testing.T) {
		records, err := repo.FindActive(ctx, "+19995550000", "cmp-1", "brd-1")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestOptOutRepository_Revoke(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOptOutRepository(db.DB)
	ctx := context.Background()

	for _, rec := range []*model.OptOutRecord{
		optOut("+16175550123", model.OptOutScopeCampaign, "cmp-1"),
		optOut("+16175550123", model.OptOutScopeGlobal, ""),
	} {
		_, err := repo.Create(ctx, rec)
		require.NoError(t, err)
	}

	revoked, err := repo.Revoke(ctx, "+16175550123", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), revoked)

	// Revoked records no longer suppress sends.
	records, err := repo.FindActive(ctx, "+16175550123", "cmp-1", "brd-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	// The ledger keeps the history.
	history, err := repo.ListByNumber(ctx, "+16175550123")
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, rec := range history {
		assert.NotNil(t, rec.RevokedAt)
		assert.False(t, rec.Active())
	}

	// Revoking again touches nothing.
	revoked, err = repo.Revoke(ctx, "+16175550123", time.Now())
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestOptOutRepository_ReoptOutAfterRevoke(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOptOutRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, optOut("+16175550123", model.OptOutScopeGlobal, ""))
	require.NoError(t, err)
	require.True(t, created)

	_, err = repo.Revoke(ctx, "+16175550123", time.Now())
	require.NoError(t, err)

	// A fresh STOP after START must suppress again even though the
	// unique key already holds the revoked row.
	created, err = repo.Create(ctx, optOut("+16175550123", model.OptOutScopeGlobal, ""))
	require.NoError(t, err)
	assert.True(t, created)

	records, err := repo.FindActive(ctx, "+16175550123", "cmp-1", "brd-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
