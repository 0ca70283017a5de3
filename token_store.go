package userapi

import (
	"context"

	"github.com/uptrace/bun"
)

// TokenStore tracks currently-honored session tokens. A token is accepted
// by the system only if the codec decodes it AND this store still holds
// it, which lets a logout invalidate a token ahead of its embedded expiry.
type TokenStore struct {
	db    *bun.DB
	clock Clock
}

type TokenStoreOption func(*TokenStore)

// WithTokenStoreClock overrides the time source.
func WithTokenStoreClock(clock Clock) TokenStoreOption {
	return func(ts *TokenStore) {
		if clock != nil {
			ts.clock = clock
		}
	}
}

// NewTokenStore returns a store over the tokens table.
func NewTokenStore(db *bun.DB, opts ...TokenStoreOption) *TokenStore {
	ts := &TokenStore{db: db, clock: systemClock{}}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Store records a freshly issued token with its issuance time.
func (ts *TokenStore) Store(ctx context.Context, token string) error {
	record := &TokenRecord{Token: token, IssuedAt: ts.clock.Now().UnixMilli()}
	if _, err := ts.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return wrapStorage(err, "token insert failed")
	}
	return nil
}

// Exists reports whether the token is still tracked.
func (ts *TokenStore) Exists(ctx context.Context, token string) (bool, error) {
	count, err := ts.db.NewSelect().
		Model((*TokenRecord)(nil)).
		Where("?TableAlias.token = ?", token).
		Count(ctx)
	if err != nil {
		return false, wrapStorage(err, "token lookup failed")
	}
	return count > 0, nil
}

// Remove drops the token. Removing an absent token is not an error so
// logout stays idempotent.
func (ts *TokenStore) Remove(ctx context.Context, token string) error {
	_, err := ts.db.NewDelete().
		Model((*TokenRecord)(nil)).
		Where("?TableAlias.token = ?", token).
		Exec(ctx)
	if err != nil {
		return wrapStorage(err, "token delete failed")
	}
	return nil
}

// Refresh stores the new token and then removes the old one. The ordering
// matters: a session being refreshed must never pass through a state with
// zero valid tokens, so a brief window with two valid tokens is accepted.
func (ts *TokenStore) Refresh(ctx context.Context, newToken, oldToken string) error {
	if err := ts.Store(ctx, newToken); err != nil {
		return err
	}
	if oldToken != "" {
		return ts.Remove(ctx, oldToken)
	}
	return nil
}
