package userapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// DefaultUserDuration is granted to human subjects.
	DefaultUserDuration = time.Hour
	// DefaultServerDuration is granted to trusted machine subjects.
	DefaultServerDuration = 24 * time.Hour
	// LongTermDuration is granted when a valid long-term key accompanies
	// a login.
	LongTermDuration = 30 * 24 * time.Hour
	// RenewableThreshold splits tokens into short-lived ones that are
	// replaced on refresh and long-term ones that are reused as-is.
	RenewableThreshold = 2 * time.Hour
)

// SessionClaims is the signed session token payload: subject id, server
// flag, and the granted duration so a renewal can reuse the same policy.
// The server flag claim is spelled svr everywhere.
type SessionClaims struct {
	jwt.RegisteredClaims
	Usr string `json:"usr"`
	Svr bool   `json:"svr"`
	Dur int64  `json:"dur"`
}

// Duration returns the granted duration.
func (c *SessionClaims) Duration() time.Duration {
	return time.Duration(c.Dur) * time.Second
}

// Renewable reports whether a refresh should replace this token. Tokens
// granted more than RenewableThreshold are reused as-is on refresh.
func (c *SessionClaims) Renewable() bool {
	return c.Duration() <= RenewableThreshold
}

// TokenCodec encodes and decodes signed session tokens using a server-held
// secret (HS256).
type TokenCodec struct {
	secret []byte
	clock  Clock
	logger Logger
}

type TokenCodecOption func(*TokenCodec)

// WithCodecLogger overrides the default logger.
func WithCodecLogger(logger Logger) TokenCodecOption {
	return func(tc *TokenCodec) {
		if logger != nil {
			tc.logger = logger
		}
	}
}

// WithCodecClock overrides the time source.
func WithCodecClock(clock Clock) TokenCodecOption {
	return func(tc *TokenCodec) {
		if clock != nil {
			tc.clock = clock
		}
	}
}

// NewTokenCodec builds a codec. A missing secret is a fatal startup
// condition.
func NewTokenCodec(secret string, opts ...TokenCodecOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("a token signing secret must be specified", errors.CategoryBadInput)
	}
	tc := &TokenCodec{
		secret: []byte(secret),
		clock:  systemClock{},
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc, nil
}

// Issue signs a token for the subject. A non-positive duration selects the
// default for the subject kind: one hour for humans, a day for machines.
func (tc *TokenCodec) Issue(subject string, duration time.Duration, isServer bool) (string, error) {
	if subject == "" {
		return "", errors.New("token subject must not be empty", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	if duration <= 0 {
		duration = DefaultUserDuration
		if isServer {
			duration = DefaultServerDuration
		}
	}

	now := tc.clock.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			// Unique id so two tokens for the same subject issued in the
			// same second still differ on the wire.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
		Usr: subject,
		Svr: isServer,
		Dur: int64(duration / time.Second),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tc.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token").
			WithCode(errors.CodeInternal)
	}

	return signed, nil
}

// Decode verifies the signature and expiry and returns the claims. An
// expired, tampered, or malformed token decodes to ErrTokenInvalid; no
// failure escapes as a panic.
func (tc *TokenCodec) Decode(raw string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			tc.logger.Error("session token used unexpected signing method: %v", t.Header["alg"])
			return nil, ErrTokenInvalid
		}
		return tc.secret, nil
	}, jwt.WithTimeFunc(tc.clock.Now))

	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Usr == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
