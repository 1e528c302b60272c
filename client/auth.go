package client

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/techblitz/techblitz-go/internal/util"
	"github.com/techblitz/techblitz-go/session"
	"github.com/techblitz/techblitz-go/validate"
)

// authResponse is the payload shape of the register and login
// endpoints. Validation returns the user record directly instead.
type authResponse struct {
	User *session.User `json:"user"`
}

// errMissingUser covers a 2xx body that decodes cleanly but carries no
// user record. The store must never flip to signed in without one.
var errMissingUser = goerrors.New("response carried no user record", goerrors.CategoryInternal)

// Validate asks the server whether the stored session cookie is still
// good and reconciles the session store with the answer. Any failure,
// including a 401 or an unreachable server, resolves to signed out
// without a notification; that is the normal unauthenticated-visitor
// path, not an error. The loading flag is held for the duration.
func (c *Client) Validate(ctx context.Context) *session.User {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.sessions.SetIsLoading(true)
	defer c.sessions.SetIsLoading(false)

	raw, err := c.call(ctx, http.MethodGet, "/auth/user", nil, true)
	if err != nil {
		if !IsUnauthorized(err) {
			c.log.Warn("session validation failed", "error", err)
		}
		c.sessions.Reset()
		return nil
	}

	user, err := decodeData[*session.User](raw)
	if err != nil || user == nil {
		c.log.Warn("session validation returned a malformed body", "error", err)
		c.sessions.Reset()
		return nil
	}
	c.sessions.SetSession(user)
	c.clearExpiredLatch()
	c.log.Debug("session validated", "user_id", user.ID)
	return c.sessions.User()
}

// SignIn authenticates with an email or username plus password. The
// identifier is normalized and classified by shape; the server decides
// whether the credentials match.
func (c *Client) SignIn(ctx context.Context, identifier, password string) (*session.User, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	identifier = util.NormalizeIdentifier(identifier)
	if identifier == "" || password == "" {
		return nil, goerrors.New("identifier and password are required", goerrors.CategoryValidation)
	}

	body := map[string]string{"password": password}
	if validate.IsEmail(identifier) {
		body["email"] = identifier
	} else {
		body["username"] = identifier
	}

	c.sessions.SetIsLoading(true)
	defer c.sessions.SetIsLoading(false)

	raw, err := c.call(ctx, http.MethodPost, "/auth/login", body, false)
	if err != nil {
		return nil, err
	}
	resp, err := decodeData[authResponse](raw)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, errMissingUser
	}
	c.sessions.SetSession(resp.User)
	c.clearExpiredLatch()
	c.log.Info("signed in", "user_id", resp.User.ID)
	return c.sessions.User(), nil
}

// SignUp registers a new account. On success the server also starts a
// session, so the store flips to signed in immediately.
func (c *Client) SignUp(ctx context.Context, in SignUpInput) (*session.User, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	in.Name = util.NormalizeIdentifier(in.Name)
	in.Username = util.NormalizeIdentifier(in.Username)
	in.Email = util.NormalizeIdentifier(in.Email)
	if err := in.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid sign up input")
	}

	c.sessions.SetIsLoading(true)
	defer c.sessions.SetIsLoading(false)

	raw, err := c.call(ctx, http.MethodPost, "/auth/register", in, false)
	if err != nil {
		return nil, err
	}
	resp, err := decodeData[authResponse](raw)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, errMissingUser
	}
	c.sessions.SetSession(resp.User)
	c.clearExpiredLatch()
	c.log.Info("account created", "user_id", resp.User.ID)
	return c.sessions.User(), nil
}

// SignOut ends the server session and clears local state. Local state is
// cleared even when the server call fails; a stale cookie on the server
// is preferable to a client that believes it is still signed in.
func (c *Client) SignOut(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	_, err := c.call(ctx, http.MethodPost, "/auth/logout", nil, true)
	if err != nil && !IsUnauthorized(err) {
		c.log.Warn("server sign out failed, clearing local session anyway", "error", err)
	}
	c.sessions.Reset()
	c.log.Info("signed out")
	return nil
}
