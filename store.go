package userapi

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// emailMatch matches a value against any entry of the JSON emails column.
const emailMatch = "EXISTS (SELECT 1 FROM json_each(?TableAlias.emails) WHERE json_each.value = ?)"

// Selector describes an identity lookup: either Any free text matched
// against userid OR username OR any email, or explicit fields OR-combined.
type Selector struct {
	Any      string
	UserID   string
	Username string
	Emails   []string
}

func (s Selector) empty() bool {
	return s.Any == "" && s.UserID == "" && s.Username == "" && len(s.Emails) == 0
}

func (s Selector) apply(q *bun.SelectQuery) *bun.SelectQuery {
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		if s.Any != "" {
			q = q.WhereOr("?TableAlias.userid = ?", s.Any).
				WhereOr("?TableAlias.username = ?", s.Any).
				WhereOr(emailMatch, s.Any)
		}
		if s.UserID != "" {
			q = q.WhereOr("?TableAlias.userid = ?", s.UserID)
		}
		if s.Username != "" {
			q = q.WhereOr("?TableAlias.username = ?", s.Username)
		}
		for _, email := range s.Emails {
			q = q.WhereOr(emailMatch, email)
		}
		return q
	})
}

// IdentityStore owns user records: lookup, creation with uniqueness
// enforcement, patch updates, credentialed deletion, and password
// verification.
type IdentityStore struct {
	db       *bun.DB
	hasher   *Hasher
	gen      *Generator
	logger   Logger
	adminKey string
}

type IdentityStoreOption func(*IdentityStore)

// WithStoreLogger overrides the default logger.
func WithStoreLogger(logger Logger) IdentityStoreOption {
	return func(s *IdentityStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewIdentityStore wires the store to its database, hasher, and generator.
// adminKey may be empty, which disables the password substitution on
// delete.
func NewIdentityStore(db *bun.DB, hasher *Hasher, gen *Generator, adminKey string, opts ...IdentityStoreOption) *IdentityStore {
	s := &IdentityStore{
		db:       db,
		hasher:   hasher,
		gen:      gen,
		logger:   defLogger{},
		adminKey: adminKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Find returns every record matching the selector. Zero matches is a
// normal outcome (empty slice, nil error); a missing selector is a client
// error. When a password is supplied and exactly one record matched, the
// stored hash must verify or the result is empty.
func (s *IdentityStore) Find(ctx context.Context, sel Selector, password string) ([]*User, error) {
	if sel.empty() {
		return nil, ErrMissingSelector
	}

	var users []*User
	q := s.db.NewSelect().Model(&users)
	q = sel.apply(q)

	if err := q.Scan(ctx); err != nil {
		return nil, wrapStorage(err, "user lookup failed")
	}

	if len(users) == 1 && password != "" {
		if users[0].PwHash != s.hasher.Hash(users[0].UserID, password) {
			return nil, nil
		}
	}

	return users, nil
}

// VerifyPassword reports whether the password matches the record for
// userid. A missing record verifies false without error.
func (s *IdentityStore) VerifyPassword(ctx context.Context, userid, password string) (bool, error) {
	if password == "" {
		return false, nil
	}
	users, err := s.Find(ctx, Selector{UserID: userid}, password)
	if err != nil {
		return false, err
	}
	return len(users) == 1, nil
}

// Create validates the candidate, enforces username/email uniqueness,
// mints userid and userhash, and persists the record with a salted
// password hash in place of the plaintext.
func (s *IdentityStore) Create(ctx context.Context, candidate NewUser) (*User, error) {
	if candidate.Username == "" || len(candidate.Emails) == 0 || candidate.Password == "" {
		return nil, ErrMissingFields
	}

	existing, err := s.Find(ctx, Selector{Username: candidate.Username, Emails: candidate.Emails}, "")
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrConflict
	}

	userid, err := s.gen.Unique(ctx, []string{"id", candidate.Username, candidate.Password}, UserIDLength, UniqueUserID)
	if err != nil {
		return nil, err
	}
	userhash, err := s.gen.Unique(ctx, []string{"hash", candidate.Username, candidate.Password, userid}, UserHashLength, UniqueUserHash)
	if err != nil {
		return nil, err
	}

	user := &User{
		UserID:   userid,
		Username: candidate.Username,
		Emails:   append([]string(nil), candidate.Emails...),
		PwHash:   s.hasher.Hash(userid, candidate.Password),
		UserHash: userhash,
	}

	if _, err := s.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, wrapStorage(err, "user insert failed")
	}

	return user, nil
}

// Update applies a patch to the record for userid as a whole-record
// replace on an owned copy. Username/email changes re-run the conflict
// check against other records first.
func (s *IdentityStore) Update(ctx context.Context, userid string, patch Patch) (*User, error) {
	if len(patch) == 0 {
		return nil, ErrEmptyPatch
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	user := new(User)
	err := s.db.NewSelect().Model(user).
		Where("?TableAlias.userid = ?", userid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStorage(err, "user lookup failed")
	}

	if username, emails := patch.Username(), patch.Emails(); username != "" || len(emails) > 0 {
		matches, err := s.Find(ctx, Selector{Username: username, Emails: emails}, "")
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if match.UserID != userid {
				return nil, ErrConflict
			}
		}
	}

	updated := user.Clone()
	if err := patch.applyTo(updated); err != nil {
		return nil, err
	}

	if _, err := s.db.NewUpdate().Model(updated).WherePK().Exec(ctx); err != nil {
		return nil, wrapStorage(err, "user update failed")
	}

	return updated, nil
}

// Delete removes the record for userid. It requires either the account
// password or the configured non-empty admin key. A structurally missing
// credential, a bad admin key, and an unmatched userid/password pair are
// three distinct outcomes.
func (s *IdentityStore) Delete(ctx context.Context, userid, password, adminKey string) error {
	if userid == "" || (password == "" && adminKey == "") {
		return ErrMissingCredentials
	}

	q := s.db.NewDelete().Model((*User)(nil)).Where("?TableAlias.userid = ?", userid)

	if password != "" {
		q = q.Where("?TableAlias.pwhash = ?", s.hasher.Hash(userid, password))
	} else if s.adminKey == "" || adminKey != s.adminKey {
		return ErrBadCredentials
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return wrapStorage(err, "user delete failed")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return wrapStorage(err, "user delete failed")
	}

	switch {
	case n == 0:
		return goerrors.New("user/password combination not found", goerrors.CategoryBadInput).
			WithTextCode(TextCodeUserNotFound).
			WithCode(goerrors.CodeBadRequest)
	case n > 1:
		// Reported as success anyway; the record is gone either way.
		s.logger.Error("somehow multiple users were deleted with userid %s", userid)
	}

	return nil
}

// Ping reports storage reachability for the status endpoint.
func (s *IdentityStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapStorage(err, "storage unreachable")
	}
	return nil
}
