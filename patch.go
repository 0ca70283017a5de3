package userapi

import (
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// PatchOp is a single tagged update: a field path (possibly dotted, e.g.
// "private.someName") and the value to place there. A nil value removes
// the entry at the path.
type PatchOp struct {
	Path  string
	Value any
}

// Patch is an ordered list of update operations applied to an owned copy
// of a user record.
type Patch []PatchOp

// PatchFromMap converts a decoded JSON object into a Patch. Keys are
// sorted so application order is deterministic.
func PatchFromMap(updates map[string]any) Patch {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patch := make(Patch, 0, len(keys))
	for _, k := range keys {
		patch = append(patch, PatchOp{Path: k, Value: updates[k]})
	}
	return patch
}

// Validate enforces the update rules: userid is immutable, username must
// stay non-empty, emails must stay a non-empty list.
func (p Patch) Validate() error {
	for _, op := range p {
		switch op.Path {
		case "userid":
			return ErrImmutableUserID
		case "username":
			if v, ok := op.Value.(string); !ok || v == "" {
				return ErrUsernameRequired
			}
		case "emails":
			emails, ok := stringSlice(op.Value)
			if !ok || len(emails) == 0 {
				return ErrEmailsRequired
			}
		}
	}
	return nil
}

// Username returns the new username if the patch changes it.
func (p Patch) Username() string {
	for _, op := range p {
		if op.Path == "username" {
			if v, ok := op.Value.(string); ok {
				return v
			}
		}
	}
	return ""
}

// Emails returns the new email list if the patch changes it.
func (p Patch) Emails() []string {
	for _, op := range p {
		if op.Path == "emails" {
			if emails, ok := stringSlice(op.Value); ok {
				return emails
			}
		}
	}
	return nil
}

// TouchesDeleteFlag reports whether the patch sets or clears the
// delete flag; such updates need the account password.
func (p Patch) TouchesDeleteFlag() bool {
	for _, op := range p {
		if op.Path == "deleteflag" {
			return true
		}
	}
	return false
}

// applyTo mutates the given record copy. Dotted paths under private and
// extras create intermediate maps as needed; unknown top-level fields land
// in extras, keeping the record open without widening the schema.
func (p Patch) applyTo(u *User) error {
	for _, op := range p {
		segs := strings.Split(op.Path, ".")
		switch segs[0] {
		case "username":
			u.Username, _ = op.Value.(string)
		case "emails":
			u.Emails, _ = stringSlice(op.Value)
		case "userhash":
			if v, ok := op.Value.(string); ok {
				u.UserHash = v
			}
		case "deleteflag":
			flag, err := flagTime(op.Value)
			if err != nil {
				return err
			}
			u.DeleteFlag = flag
		case "private":
			if len(segs) == 1 {
				m, ok := op.Value.(map[string]any)
				if !ok {
					return errors.New("private must be an object", errors.CategoryValidation).
						WithCode(errors.CodeBadRequest)
				}
				u.Private = m
				continue
			}
			setPath(&u.Private, segs[1:], op.Value)
		case "extras":
			if len(segs) == 1 {
				m, ok := op.Value.(map[string]any)
				if !ok {
					return errors.New("extras must be an object", errors.CategoryValidation).
						WithCode(errors.CodeBadRequest)
				}
				u.Extras = m
				continue
			}
			setPath(&u.Extras, segs[1:], op.Value)
		default:
			setPath(&u.Extras, segs, op.Value)
		}
	}
	return nil
}

// setPath walks the map along segs, creating intermediate maps, and sets
// or deletes the final entry.
func setPath(m *map[string]any, segs []string, v any) {
	if *m == nil {
		*m = map[string]any{}
	}
	cur := *m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}

	last := segs[len(segs)-1]
	if v == nil {
		delete(cur, last)
		return
	}
	cur[last] = v
}

func stringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// flagTime coerces a patch value into a delete-flag timestamp. nil clears
// the flag; JSON numbers are taken as epoch milliseconds.
func flagTime(v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "deleteflag must be an RFC3339 timestamp").
				WithCode(errors.CodeBadRequest)
		}
		return &parsed, nil
	case float64:
		parsed := time.UnixMilli(int64(t)).UTC()
		return &parsed, nil
	}
	return nil, errors.New("deleteflag must be a timestamp or null", errors.CategoryValidation).
		WithCode(errors.CodeBadRequest)
}
