package userapi

import "github.com/goliatone/go-errors"

const (
	TextCodeMissingSelector     = "user_missing_selector"
	TextCodeMissingFields       = "user_missing_fields"
	TextCodeConflict            = "conflict"
	TextCodeUserNotFound        = "user_not_found"
	TextCodeImmutableUserID     = "user_id_immutable"
	TextCodeUsernameRequired    = "username_required"
	TextCodeEmailsRequired      = "emails_required"
	TextCodeEmptyPatch          = "empty_updates"
	TextCodeTokenRequired       = "session_token_required"
	TextCodeTokenInvalid        = "session_token_invalid"
	TextCodeServerTokenRequired = "server_token_required"
	TextCodeBadCredentials      = "bad_credentials"
	TextCodeMissingCredentials  = "credentials_required"
	TextCodeForbiddenTarget     = "target_not_permitted"
	TextCodeLoginFailed         = "login_failed"
	TextCodeMachineLoginOff     = "machine_login_disabled"
)

// ErrMissingSelector is returned when a lookup is attempted without any
// selector field; distinct from a lookup that simply finds nothing.
var ErrMissingSelector = errors.New("user identifier not provided", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingSelector).
	WithCode(errors.CodeBadRequest)

// ErrMissingFields is returned when a create payload lacks username,
// emails, or password.
var ErrMissingFields = errors.New("missing data fields", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingFields).
	WithCode(errors.CodeBadRequest)

// ErrConflict is returned when a username or email is already taken by a
// live record. This wire reports conflicts as 400.
var ErrConflict = errors.New("username or emails are not unique", errors.CategoryConflict).
	WithTextCode(TextCodeConflict).
	WithCode(errors.CodeBadRequest)

// ErrUserNotFound is returned when an operation names a userid that does
// not resolve to a record.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrImmutableUserID rejects updates that try to change the userid.
var ErrImmutableUserID = errors.New("the userid cannot be changed", errors.CategoryValidation).
	WithTextCode(TextCodeImmutableUserID).
	WithCode(errors.CodeBadRequest)

// ErrUsernameRequired rejects updates that set username to empty.
var ErrUsernameRequired = errors.New("you must have a unique username", errors.CategoryValidation).
	WithTextCode(TextCodeUsernameRequired).
	WithCode(errors.CodeBadRequest)

// ErrEmailsRequired rejects updates that set emails to empty or to a
// non-list value.
var ErrEmailsRequired = errors.New("you must have at least one email address", errors.CategoryValidation).
	WithTextCode(TextCodeEmailsRequired).
	WithCode(errors.CodeBadRequest)

// ErrEmptyPatch rejects updates carrying no operations.
var ErrEmptyPatch = errors.New("no updates provided", errors.CategoryBadInput).
	WithTextCode(TextCodeEmptyPatch).
	WithCode(errors.CodeBadRequest)

// ErrTokenRequired is returned when a protected operation is attempted
// without a session token.
var ErrTokenRequired = errors.New("session token required", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRequired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalid is returned when a presented token fails decoding, has
// expired, or is no longer tracked by the revocation store.
var ErrTokenInvalid = errors.New("session token invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrServerTokenRequired guards machine-only operations.
var ErrServerTokenRequired = errors.New("server token required", errors.CategoryAuth).
	WithTextCode(TextCodeServerTokenRequired).
	WithCode(errors.CodeUnauthorized)

// ErrBadCredentials is returned when a supplied password or admin key does
// not validate.
var ErrBadCredentials = errors.New("credentials not validated", errors.CategoryAuth).
	WithTextCode(TextCodeBadCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrMissingCredentials is returned when a destructive operation is
// attempted without a password or admin key.
var ErrMissingCredentials = errors.New("password or admin key required", errors.CategoryAuth).
	WithTextCode(TextCodeMissingCredentials).
	WithCode(errors.CodeForbidden)

// ErrForbiddenTarget is returned when an authenticated caller names a
// target identity it is not entitled to act on.
var ErrForbiddenTarget = errors.New("not entitled to target identity", errors.CategoryAuthz).
	WithTextCode(TextCodeForbiddenTarget).
	WithCode(errors.CodeForbidden)

// ErrLoginFailed covers human logins that are ambiguous, unmatched, or
// fail password verification; the caller learns nothing more.
var ErrLoginFailed = errors.New("login failed", errors.CategoryAuth).
	WithTextCode(TextCodeLoginFailed).
	WithCode(errors.CodeUnauthorized)

// ErrMachineLoginDisabled is returned when machine login is attempted but
// no server secret is configured.
var ErrMachineLoginDisabled = errors.New("machine login not supported", errors.CategoryBadInput).
	WithTextCode(TextCodeMachineLoginOff).
	WithCode(errors.CodeBadRequest)

// wrapStorage tags a storage-layer failure at the store boundary so it is
// returned as a single error value and never thrown past it.
func wrapStorage(err error, msg string) error {
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithCode(errors.CodeInternal)
}
