package userapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/lagoonhq/userapi/metrics"
)

// Request/response headers. The session token travels on its own header in
// both directions; login credentials come in on headers rather than the
// body so GET refresh and POST login share a shape.
const (
	HeaderSessionToken = "x-userapi-session-token"
	HeaderUserID       = "x-userapi-userid"
	HeaderPassword     = "x-userapi-password"
	HeaderAdminKey     = "x-userapi-admin-key"
	HeaderServerName   = "x-userapi-server-name"
	HeaderServerSecret = "x-userapi-server-secret"
)

// Controller exposes the identity and session operations over HTTP.
type Controller struct {
	cfg    Config
	store  *IdentityStore
	tokens *TokenStore
	codec  *TokenCodec
	gate   *Gate
	pairs  *Pairs
	sink   metrics.Sink
	logger Logger
}

type ControllerOption func(*Controller)

// WithControllerLogger overrides the default logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(ctl *Controller) {
		if logger != nil {
			ctl.logger = logger
		}
	}
}

// WithMetricsSink overrides the metrics sink; the default discards events.
func WithMetricsSink(sink metrics.Sink) ControllerOption {
	return func(ctl *Controller) {
		if sink != nil {
			ctl.sink = sink
		}
	}
}

// NewController wires the controller to the services it fronts.
func NewController(cfg Config, store *IdentityStore, tokens *TokenStore, codec *TokenCodec, gate *Gate, pairs *Pairs, opts ...ControllerOption) *Controller {
	ctl := &Controller{
		cfg:    cfg,
		store:  store,
		tokens: tokens,
		codec:  codec,
		gate:   gate,
		pairs:  pairs,
		sink:   metrics.Noop{},
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// RegisterRoutes mounts every route on the app.
func (ctl *Controller) RegisterRoutes(app *fiber.App) {
	app.Get("/status", ctl.Status)

	app.Post("/user", ctl.CreateUser)
	app.Get("/user", ctl.GetUserInfo)
	app.Get("/user/:userid", ctl.GetUserInfo)
	app.Put("/user/:userid", ctl.UpdateUser)
	app.Delete("/user/:userid", ctl.DeleteUser)

	app.Post("/login", ctl.Login)
	app.Post("/login/:longtermkey", ctl.Login)
	app.Get("/login", ctl.RefreshSession)
	app.Post("/serverlogin", ctl.ServerLogin)
	app.Get("/token/:token", ctl.CheckToken)
	app.Post("/logout", ctl.Logout)

	app.Get("/private", ctl.AnonymousPair)
	app.Post("/private", ctl.AnonymousPair)
	app.Get("/private/:userid/:name", ctl.GetNamedPair)
	app.Post("/private/:userid/:name", ctl.MintNamedPair)
	app.Put("/private/:userid/:name", ctl.MintNamedPair)
	app.Delete("/private/:userid/:name", ctl.DeleteNamedPair)
}

// sendError maps an error onto its wire status and payload.
func (ctl *Controller) sendError(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		status := richErr.Code
		if status <= 0 {
			status = fiber.StatusInternalServerError
		}
		if status >= fiber.StatusInternalServerError {
			ctl.logger.Error("request failed: %v", err)
		}
		return c.Status(status).JSON(fiber.Map{
			"error":   richErr.TextCode,
			"message": richErr.Message,
		})
	}

	ctl.logger.Error("request failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_error",
		"message": "internal server error",
	})
}

// Status reports dependency health. ?status=N forces the response code,
// which deployment probes use to rehearse failure handling.
func (ctl *Controller) Status(c *fiber.Ctx) error {
	if forced := c.Query("status"); forced != "" {
		if code, err := strconv.Atoi(forced); err == nil {
			return c.Status(code).JSON(fiber.Map{"forced": code})
		}
	}

	up := []string{}
	down := []string{}
	if err := ctl.store.Ping(c.Context()); err != nil {
		down = append(down, "store")
	} else {
		up = append(up, "store")
	}

	status := fiber.StatusOK
	if len(down) > 0 {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{"up": up, "down": down})
}

// CreateUser registers a new identity and opens a session for it.
func (ctl *Controller) CreateUser(c *fiber.Ctx) error {
	var candidate NewUser
	if err := c.BodyParser(&candidate); err != nil {
		return ctl.sendError(c, ErrMissingFields)
	}
	if err := candidate.Validate(); err != nil {
		return ctl.sendError(c, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid user payload").
			WithTextCode(TextCodeMissingFields).
			WithCode(goerrors.CodeBadRequest))
	}

	user, err := ctl.store.Create(c.Context(), candidate)
	if err != nil {
		return ctl.sendError(c, err)
	}

	token, err := ctl.codec.Issue(user.UserID, DefaultUserDuration, false)
	if err != nil {
		return ctl.sendError(c, err)
	}
	if err := ctl.tokens.Store(c.Context(), token); err != nil {
		return ctl.sendError(c, err)
	}

	ctl.sink.Post("usercreated", map[string]string{"userid": user.UserID}, token)

	c.Set(HeaderSessionToken, token)
	return c.Status(fiber.StatusCreated).JSON(user)
}

// GetUserInfo returns the caller's record, or an arbitrary record for a
// machine caller naming a target. Zero matches is 204, several is a list.
func (ctl *Controller) GetUserInfo(c *fiber.Ctx) error {
	claims, err := ctl.gate.Authenticate(c.Context(), c.Get(HeaderSessionToken))
	if err != nil {
		return ctl.sendError(c, err)
	}

	target, err := ctl.gate.Authorize(claims, c.Params("userid"))
	if err != nil {
		return ctl.sendError(c, err)
	}

	users, err := ctl.store.Find(c.Context(), Selector{Any: target}, "")
	if err != nil {
		return ctl.sendError(c, err)
	}

	switch len(users) {
	case 0:
		return c.SendStatus(fiber.StatusNoContent)
	case 1:
		return c.JSON(users[0])
	default:
		return c.JSON(users)
	}
}

// UpdateUser applies a field patch to the target record. Setting or
// clearing the delete flag additionally requires the account password; the
// admin key is not honored here.
func (ctl *Controller) UpdateUser(c *fiber.Ctx) error {
	claims, err := ctl.gate.Authenticate(c.Context(), c.Get(HeaderSessionToken))
	if err != nil {
		return ctl.sendError(c, err)
	}

	target, err := ctl.gate.Authorize(claims, c.Params("userid"))
	if err != nil {
		return ctl.sendError(c, err)
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return ctl.sendError(c, ErrEmptyPatch)
	}
	if nested, ok := body["updates"].(map[string]any); ok {
		body = nested
	}

	patch := PatchFromMap(body)
	if patch.TouchesDeleteFlag() {
		if _, err := ctl.gate.AuthorizeDestructive(c.Context(), claims, target, c.Get(HeaderPassword)); err != nil {
			return ctl.sendError(c, err)
		}
	}

	user, err := ctl.store.Update(c.Context(), target, patch)
	if err != nil {
		return ctl.sendError(c, err)
	}

	return c.JSON(user)
}

// DeleteUser removes the target record given the account password or the
// configured admin key, and retires the presented session token.
func (ctl *Controller) DeleteUser(c *fiber.Ctx) error {
	token := c.Get(HeaderSessionToken)
	claims, err := ctl.gate.Authenticate(c.Context(), token)
	if err != nil {
		return ctl.sendError(c, err)
	}

	target, err := ctl.gate.Authorize(claims, c.Params("userid"))
	if err != nil {
		return ctl.sendError(c, err)
	}

	password := c.Get(HeaderPassword)
	if password == "" {
		var body struct {
			Password string `json:"password"`
		}
		if err := c.BodyParser(&body); err == nil {
			password = body.Password
		}
	}

	if err := ctl.store.Delete(c.Context(), target, password, c.Get(HeaderAdminKey)); err != nil {
		return ctl.sendError(c, err)
	}

	if err := ctl.tokens.Remove(c.Context(), token); err != nil {
		ctl.logger.Warn("failed to retire token after delete: %v", err)
	}

	ctl.sink.Post("userdeleted", map[string]string{"userid": target}, token)

	return c.SendStatus(fiber.StatusOK)
}

// Login opens a human session. A matching long-term key on the path grants
// a 30-day token instead of the default hour.
func (ctl *Controller) Login(c *fiber.Ctx) error {
	identifier := c.Get(HeaderUserID)
	password := c.Get(HeaderPassword)
	if identifier == "" || password == "" {
		return ctl.sendError(c, ErrMissingSelector)
	}

	users, err := ctl.store.Find(c.Context(), Selector{Any: identifier}, password)
	if err != nil {
		return ctl.sendError(c, err)
	}
	if len(users) != 1 {
		return ctl.sendError(c, ErrLoginFailed)
	}

	duration := DefaultUserDuration
	if key := c.Params("longtermkey"); key != "" && ctl.cfg.LongTermKey != "" && key == ctl.cfg.LongTermKey {
		duration = LongTermDuration
	}

	token, err := ctl.codec.Issue(users[0].UserID, duration, false)
	if err != nil {
		return ctl.sendError(c, err)
	}
	if err := ctl.tokens.Store(c.Context(), token); err != nil {
		return ctl.sendError(c, err)
	}

	ctl.sink.Post("userlogin", map[string]string{"userid": users[0].UserID}, token)

	c.Set(HeaderSessionToken, token)
	return c.JSON(users[0])
}

// RefreshSession exchanges a valid session token for a fresh one with the
// same subject and duration. Long-term tokens are returned unchanged.
func (ctl *Controller) RefreshSession(c *fiber.Ctx) error {
	presented := c.Get(HeaderSessionToken)
	claims, err := ctl.gate.Authenticate(c.Context(), presented)
	if err != nil {
		return ctl.sendError(c, err)
	}

	token := presented
	if claims.Renewable() {
		token, err = ctl.codec.Issue(claims.Usr, claims.Duration(), claims.Svr)
		if err != nil {
			return ctl.sendError(c, err)
		}
		if err := ctl.tokens.Refresh(c.Context(), token, presented); err != nil {
			return ctl.sendError(c, err)
		}
	}

	c.Set(HeaderSessionToken, token)
	return c.JSON(fiber.Map{"userid": claims.Usr})
}

// ServerLogin opens a machine session against the shared server secret.
func (ctl *Controller) ServerLogin(c *fiber.Ctx) error {
	if ctl.cfg.ServerSecret == "" {
		return ctl.sendError(c, ErrMachineLoginDisabled)
	}

	name := c.Get(HeaderServerName)
	secret := c.Get(HeaderServerSecret)
	if name == "" || secret == "" {
		return ctl.sendError(c, ErrMissingFields)
	}
	if secret != ctl.cfg.ServerSecret {
		return ctl.sendError(c, ErrBadCredentials)
	}

	token, err := ctl.codec.Issue(name, DefaultServerDuration, true)
	if err != nil {
		return ctl.sendError(c, err)
	}
	if err := ctl.tokens.Store(c.Context(), token); err != nil {
		return ctl.sendError(c, err)
	}

	ctl.sink.Post("serverlogin", map[string]string{"server": name}, token)

	c.Set(HeaderSessionToken, token)
	return c.SendStatus(fiber.StatusOK)
}

// CheckToken lets a machine caller verify a third-party token and learn
// its subject. An unverifiable token is indistinguishable from an absent
// one: 404 either way.
func (ctl *Controller) CheckToken(c *fiber.Ctx) error {
	claims, err := ctl.gate.Authenticate(c.Context(), c.Get(HeaderSessionToken))
	if err != nil {
		return ctl.sendError(c, err)
	}
	if err := ctl.gate.RequireServer(claims); err != nil {
		return ctl.sendError(c, err)
	}

	checked, err := ctl.gate.Authenticate(c.Context(), c.Params("token"))
	if err != nil {
		return ctl.sendError(c, ErrUserNotFound)
	}

	return c.JSON(fiber.Map{"userid": checked.Usr, "svr": checked.Svr})
}

// Logout retires the presented token. Always 200: logging out an already
// dead session is not an error.
func (ctl *Controller) Logout(c *fiber.Ctx) error {
	token := c.Get(HeaderSessionToken)
	if token != "" {
		if err := ctl.tokens.Remove(c.Context(), token); err != nil {
			return ctl.sendError(c, err)
		}
		ctl.sink.Post("userlogout", nil, token)
	}
	return c.SendStatus(fiber.StatusOK)
}

// queryValues folds query parameter values into pair entropy.
func queryValues(c *fiber.Ctx) []string {
	var values []string
	for _, v := range c.Queries() {
		values = append(values, v)
	}
	return values
}

// AnonymousPair mints a pair attached to no record. Query parameter values
// are folded into the entropy.
func (ctl *Controller) AnonymousPair(c *fiber.Ctx) error {
	if _, err := ctl.gate.Authenticate(c.Context(), c.Get(HeaderSessionToken)); err != nil {
		return ctl.sendError(c, err)
	}

	return c.JSON(ctl.pairs.Anonymous(queryValues(c)...))
}

// GetNamedPair returns the named pair for the target user, minting it on
// first request. Machine callers only.
func (ctl *Controller) GetNamedPair(c *fiber.Ctx) error {
	claims, err := ctl.gate.Authenticate(c.Context(), c.Get(HeaderSessionToken))
	if err != nil {
		return ctl.sendError(c, err)
	}
	if err := ctl.gate.RequireServer(claims); err != nil {
		return ctl.sendError(c, err)
	}

	pair, err := ctl.pairs.GetOrCreate(c.Context(), c.Params("userid"), c.Params("name"), queryValues(c)...)
	if err != nil {
		return ctl.sendError(c, err)
	}
	return c.JSON(pair)
}

// MintNamedPair generates a fresh pair under the name, replacing any
// existing one. Machine callers only.
func (ctl *Controller) MintNamedPair(c *fiber.Ctx) error {
	claims, err := ctl.gate.Authenticate(c.Context(), c.Get(HeaderSessionToken))
	if err != nil {
		return ctl.sendError(c, err)
	}
	if err := ctl.gate.RequireServer(claims); err != nil {
		return ctl.sendError(c, err)
	}

	pair, err := ctl.pairs.Mint(c.Context(), c.Params("userid"), c.Params("name"), queryValues(c)...)
	if err != nil {
		return ctl.sendError(c, err)
	}
	return c.JSON(pair)
}

// DeleteNamedPair drops the named pair; external references to it are
// orphaned. Machine callers only.
func (ctl *Controller) DeleteNamedPair(c *fiber.Ctx) error {
	claims, err := ctl.gate.Authenticate(c.Context(), c.Get(HeaderSessionToken))
	if err != nil {
		return ctl.sendError(c, err)
	}
	if err := ctl.gate.RequireServer(claims); err != nil {
		return ctl.sendError(c, err)
	}

	if err := ctl.pairs.Remove(c.Context(), c.Params("userid"), c.Params("name")); err != nil {
		return ctl.sendError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
