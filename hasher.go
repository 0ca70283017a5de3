package userapi

import (
	"encoding/hex"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/sha3"
)

// Hasher computes the deterministic salted credential digest. The digest
// folds in the password (when present), the deploy salt, and the user id,
// so identical inputs always produce identical output and any change to
// salt, password, or user id changes the result.
type Hasher struct {
	salt string
}

// NewHasher builds a Hasher. A missing salt is a fatal startup condition,
// not a per-call error.
func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		return nil, errors.New("a deploy salt must be specified", errors.CategoryBadInput)
	}
	return &Hasher{salt: salt}, nil
}

// Hash returns the hex digest for (password, salt, userID). An empty
// password is probe mode: the password bytes are simply skipped, which is
// used by existence queries.
func (h *Hasher) Hash(userID, password string) string {
	d := sha3.New256()
	if password != "" {
		d.Write([]byte(password))
	}
	d.Write([]byte(h.salt))
	d.Write([]byte(userID))
	return hex.EncodeToString(d.Sum(nil))
}
