package userapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreStoreAndExists(t *testing.T) {
	db := setupDB(t)
	ts := NewTokenStore(db)
	ctx := context.Background()

	ok, err := ts.Exists(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ts.Store(ctx, "tok-1"))

	ok, err = ts.Exists(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenStoreRemoveIsIdempotent(t *testing.T) {
	db := setupDB(t)
	ts := NewTokenStore(db)
	ctx := context.Background()

	require.NoError(t, ts.Store(ctx, "tok-1"))
	require.NoError(t, ts.Remove(ctx, "tok-1"))

	ok, err := ts.Exists(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Absent token removes cleanly.
	assert.NoError(t, ts.Remove(ctx, "tok-1"))
	assert.NoError(t, ts.Remove(ctx, "never-stored"))
}

func TestTokenStoreRefreshStoresNewBeforeRemovingOld(t *testing.T) {
	db := setupDB(t)
	ts := NewTokenStore(db)
	ctx := context.Background()

	require.NoError(t, ts.Store(ctx, "old"))
	require.NoError(t, ts.Refresh(ctx, "new", "old"))

	ok, err := ts.Exists(ctx, "new")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ts.Exists(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenStoreRefreshDuplicateKeepsOldToken(t *testing.T) {
	db := setupDB(t)
	ts := NewTokenStore(db)
	ctx := context.Background()

	require.NoError(t, ts.Store(ctx, "old"))
	require.NoError(t, ts.Store(ctx, "new"))

	// Storing the new token fails on the primary key; the old token must
	// survive, never leaving the session with zero valid tokens.
	err := ts.Refresh(ctx, "new", "old")
	require.Error(t, err)

	ok, err := ts.Exists(ctx, "old")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenStoreRefreshWithoutOldToken(t *testing.T) {
	db := setupDB(t)
	ts := NewTokenStore(db)
	ctx := context.Background()

	require.NoError(t, ts.Refresh(ctx, "new", ""))

	ok, err := ts.Exists(ctx, "new")
	require.NoError(t, err)
	assert.True(t, ok)
}
