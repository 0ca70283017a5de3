package userapi

import "context"

// Gate is the authorization decision point for every protected operation.
// It fails closed: any outcome other than "permitted" maps onto a single
// deterministic error.
type Gate struct {
	codec  *TokenCodec
	tokens *TokenStore
	store  *IdentityStore
	logger Logger
}

type GateOption func(*Gate)

// WithGateLogger overrides the default logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate wires the gate to the codec, revocation store, and identity
// store it consults.
func NewGate(codec *TokenCodec, tokens *TokenStore, store *IdentityStore, opts ...GateOption) *Gate {
	g := &Gate{
		codec:  codec,
		tokens: tokens,
		store:  store,
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate accepts a raw token only when the codec decodes it validly
// AND the revocation store still tracks it.
func (g *Gate) Authenticate(ctx context.Context, raw string) (*SessionClaims, error) {
	if raw == "" {
		return nil, ErrTokenRequired
	}

	claims, err := g.codec.Decode(raw)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	tracked, err := g.tokens.Exists(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !tracked {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// Authorize resolves the effective target of an operation. Machine tokens
// may act on any explicitly named target; human tokens only on their own
// subject, and naming any other target is forbidden.
func (g *Gate) Authorize(claims *SessionClaims, target string) (string, error) {
	if claims == nil {
		return "", ErrTokenRequired
	}

	if claims.Svr {
		if target == "" {
			return claims.Usr, nil
		}
		return target, nil
	}

	if target != "" && target != claims.Usr {
		return "", ErrForbiddenTarget
	}
	return claims.Usr, nil
}

// RequireServer guards machine-only operations.
func (g *Gate) RequireServer(claims *SessionClaims) error {
	if claims == nil {
		return ErrTokenRequired
	}
	if !claims.Svr {
		return ErrServerTokenRequired
	}
	return nil
}

// AuthorizeDestructive additionally demands the account password for
// identity-changing operations. The admin key never substitutes here;
// it is honored only by IdentityStore.Delete.
func (g *Gate) AuthorizeDestructive(ctx context.Context, claims *SessionClaims, target, password string) (string, error) {
	effective, err := g.Authorize(claims, target)
	if err != nil {
		return "", err
	}

	if password == "" {
		return "", ErrMissingCredentials
	}

	ok, err := g.store.VerifyPassword(ctx, effective, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrBadCredentials
	}

	return effective, nil
}
