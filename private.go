package userapi

import (
	"context"

	"github.com/google/uuid"
)

// Pairs mints and serves private {id, hash} tuples. Named pairs live
// under a user record's private map and are stable once minted; anonymous
// pairs are attached to nothing and are fresh on every call.
type Pairs struct {
	store  *IdentityStore
	gen    *Generator
	secret string
	logger Logger
}

type PairsOption func(*Pairs)

// WithPairsLogger overrides the default logger.
func WithPairsLogger(logger Logger) PairsOption {
	return func(p *Pairs) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPairs wires the pair service to the identity store and generator.
// secret is deployment-held entropy mixed into every minted pair.
func NewPairs(store *IdentityStore, gen *Generator, secret string, opts ...PairsOption) *Pairs {
	p := &Pairs{
		store:  store,
		gen:    gen,
		secret: secret,
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetOrCreate returns the named pair for the user, minting and persisting
// one on first request. Repeated requests for the same name return the
// same pair.
func (p *Pairs) GetOrCreate(ctx context.Context, userid, name string, extra ...string) (PrivatePair, error) {
	users, err := p.store.Find(ctx, Selector{UserID: userid}, "")
	if err != nil {
		return PrivatePair{}, err
	}
	if len(users) != 1 {
		return PrivatePair{}, ErrUserNotFound
	}

	if pair, ok := pairFromAny(users[0].Private[name]); ok {
		return pair, nil
	}

	return p.Mint(ctx, userid, name, extra...)
}

// Mint generates a fresh pair for the name and persists it, replacing any
// existing pair under that name. External references to the replaced pair
// are orphaned, which is how a pair is rotated.
func (p *Pairs) Mint(ctx context.Context, userid, name string, extra ...string) (PrivatePair, error) {
	pair := p.generate(append([]string{userid, name}, extra...)...)

	patch := Patch{{Path: "private." + name, Value: map[string]any{
		"id":   pair.ID,
		"hash": pair.Hash,
	}}}

	if _, err := p.store.Update(ctx, userid, patch); err != nil {
		return PrivatePair{}, err
	}

	return pair, nil
}

// Remove drops the named pair from the user record, orphaning any
// external references to it.
func (p *Pairs) Remove(ctx context.Context, userid, name string) error {
	_, err := p.store.Update(ctx, userid, Patch{{Path: "private." + name, Value: nil}})
	return err
}

// Anonymous mints a pair attached to no user record. Callers may pass
// extra seed strings; fresh entropy is mixed in regardless, so two calls
// with identical seeds still differ.
func (p *Pairs) Anonymous(seeds ...string) PrivatePair {
	return p.generate(seeds...)
}

func (p *Pairs) generate(seeds ...string) PrivatePair {
	base := append([]string{p.secret, uuid.NewString()}, seeds...)
	return PrivatePair{
		ID:   p.gen.Opaque(base, UserIDLength),
		Hash: p.gen.Opaque(append(base, "hash"), UserHashLength),
	}
}
