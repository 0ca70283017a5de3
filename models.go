package userapi

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/uptrace/bun"
)

const (
	// UserIDLength is the length of generated userids.
	UserIDLength = 10
	// UserHashLength is the length of generated userhashes and pair hashes.
	UserHashLength = 24
)

// User is the identity record. The storage primary key and the password
// hash are internal: they never appear in a response payload.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID       int64    `bun:"id,pk,autoincrement" json:"-"`
	UserID   string   `bun:"userid,notnull,unique" json:"userid"`
	Username string   `bun:"username,notnull,unique" json:"username"`
	Emails   []string `bun:"emails,notnull" json:"emails"`
	PwHash   string   `bun:"pwhash,notnull" json:"-"`
	// UserHash is a secondary opaque identifier generated at creation,
	// used as an internal secret/capability value.
	UserHash string         `bun:"userhash,notnull,unique" json:"userhash"`
	Private  map[string]any `bun:"private" json:"private,omitempty"`
	Extras   map[string]any `bun:"extras" json:"extras,omitempty"`
	// DeleteFlag marks the record for a future purge; nil means not
	// flagged.
	DeleteFlag *time.Time `bun:"deleteflag,nullzero" json:"deleteflag,omitempty"`
}

// Clone returns a deep copy so patches are applied to an owned copy, never
// in place.
func (u *User) Clone() *User {
	dup := *u
	dup.Emails = append([]string(nil), u.Emails...)
	dup.Private = cloneMap(u.Private)
	dup.Extras = cloneMap(u.Extras)
	if u.DeleteFlag != nil {
		flag := *u.DeleteFlag
		dup.DeleteFlag = &flag
	}
	return &dup
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	dup := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			dup[k] = cloneMap(nested)
			continue
		}
		dup[k] = v
	}
	return dup
}

// NewUser is the candidate payload for record creation. The plaintext
// password is consumed during creation and never persisted.
type NewUser struct {
	Username string   `json:"username"`
	Emails   []string `json:"emails"`
	Password string   `json:"password"`
}

// Validate checks the candidate payload shape before it reaches the store.
func (n NewUser) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Username, validation.Required),
		validation.Field(&n.Emails, validation.Required, validation.By(validEmails)),
		validation.Field(&n.Password, validation.Required),
	)
}

func validEmails(value any) error {
	emails, _ := value.([]string)
	for _, email := range emails {
		if err := is.Email.Validate(email); err != nil {
			return err
		}
	}
	return nil
}

// PrivatePair is a generated {id, hash} tuple that lets external systems
// reference a user pseudonymously.
type PrivatePair struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
}

// pairFromAny recovers a PrivatePair from a stored private entry, which is
// a map after a JSON round trip through the store.
func pairFromAny(v any) (PrivatePair, bool) {
	switch t := v.(type) {
	case PrivatePair:
		return t, true
	case map[string]any:
		id, _ := t["id"].(string)
		hash, _ := t["hash"].(string)
		if id != "" && hash != "" {
			return PrivatePair{ID: id, Hash: hash}, true
		}
	}
	return PrivatePair{}, false
}

// TokenRecord tracks a currently-honored session token: its existence is a
// precondition for the token to be accepted, independent of the embedded
// expiry.
type TokenRecord struct {
	bun.BaseModel `bun:"table:tokens,alias:tkn"`

	Token    string `bun:"token,pk" json:"-"`
	IssuedAt int64  `bun:"time,notnull" json:"-"`
}

// EnsureSchema creates the users and tokens tables when they do not exist.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*User)(nil)).IfNotExists().Exec(ctx); err != nil {
		return wrapStorage(err, "failed to create users table")
	}
	if _, err := db.NewCreateTable().Model((*TokenRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return wrapStorage(err, "failed to create tokens table")
	}
	return nil
}
