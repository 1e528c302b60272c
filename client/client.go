// Package client talks to the Techblitz API. It owns the session cookie
// jar, decodes the response envelope and enforces the global expired
// session policy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/techblitz/techblitz-go/notify"
	"github.com/techblitz/techblitz-go/session"
)

// DefaultTimeout bounds every API request.
const DefaultTimeout = 15 * time.Second

// defaultFreePaths are the routes where an expired session is expected
// and must not trigger the global sign-out notification.
var defaultFreePaths = []string{"/signin", "/signup", "/forgot-password", "/reset-password"}

// Client is the authenticated API client. It is safe for concurrent use;
// operations that mutate the signed-in identity are serialized.
type Client struct {
	http       *http.Client
	baseURL    string
	storageURL string
	log        *slog.Logger
	sessions   *session.Store
	notifier   notify.Notifier

	currentPath func() string
	freePaths   map[string]struct{}

	// opMu serializes identity-mutating operations so their read-
	// modify-write of the session store cannot interleave.
	opMu sync.Mutex

	// sessionExpired latches the forced sign-out so a burst of 401s
	// produces exactly one notification.
	sessionExpired atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithNotifier sets the toast sink used by the expired session policy.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Client) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. The caller is
// responsible for giving it a cookie jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithPathProvider supplies the current navigation path, consulted by
// the expired session policy.
func WithPathProvider(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.currentPath = fn
		}
	}
}

// WithFreePaths replaces the set of paths exempt from the expired
// session notification.
func WithFreePaths(paths ...string) Option {
	return func(c *Client) {
		c.freePaths = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			c.freePaths[p] = struct{}{}
		}
	}
}

// WithStorageURL sets the base URL of the storage endpoint used for
// avatar uploads. Defaults to the API base URL.
func WithStorageURL(url string) Option {
	return func(c *Client) { c.storageURL = strings.TrimRight(url, "/") }
}

// New creates a client against baseURL, bound to the given session
// store. Cookies are kept in an in-memory jar.
func New(baseURL string, sessions *session.Store, opts ...Option) (*Client, error) {
	if sessions == nil {
		return nil, goerrors.New("session store is required", goerrors.CategoryBadInput)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "create cookie jar")
	}
	c := &Client{
		http:     &http.Client{Jar: jar, Timeout: DefaultTimeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      slog.Default().With("component", "client"),
		sessions: sessions,
		notifier: notify.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.storageURL == "" {
		c.storageURL = c.baseURL
	}
	if c.freePaths == nil {
		c.freePaths = make(map[string]struct{}, len(defaultFreePaths))
		for _, p := range defaultFreePaths {
			c.freePaths[p] = struct{}{}
		}
	}
	return c, nil
}

// apiEnvelope is the success wrapper every endpoint returns.
type apiEnvelope[T any] struct {
	Data       T      `json:"data"`
	Timestamp  string `json:"timestamp"`
	StatusCode int    `json:"status_code"`
}

// call performs one API request. Request bodies are JSON-encoded; the
// raw success body is returned for the caller to decode. When silent is
// set a 401 is surfaced as an error without engaging the expired
// session policy.
func (c *Client) call(ctx context.Context, method, path string, body any, silent bool) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "encode request body")
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "request failed").
			WithMetadata(map[string]any{"method": method, "path": path})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "read response body")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.StatusCode == 0 {
			apiErr = &APIError{
				ErrorCode:  http.StatusText(resp.StatusCode),
				Message:    strings.TrimSpace(string(raw)),
				StatusCode: resp.StatusCode,
			}
		}
		if apiErr.StatusCode == http.StatusUnauthorized && !silent {
			c.handleUnauthorized()
		}
		c.log.Debug("api error",
			"method", method, "path", path,
			"status", apiErr.StatusCode, "error", apiErr.ErrorCode)
		return nil, wrapAPIError(apiErr)
	}
	return raw, nil
}

// decodeData unwraps the envelope around a success body.
func decodeData[T any](raw []byte) (T, error) {
	var env apiEnvelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		var zero T
		return zero, goerrors.Wrap(err, goerrors.CategoryInternal, "decode response envelope")
	}
	return env.Data, nil
}

// handleUnauthorized enforces the expired session policy: outside the
// auth pages, the first 401 clears the session and notifies once.
// Subsequent 401s are absorbed until the latch resets on a successful
// sign-in or validation.
func (c *Client) handleUnauthorized() {
	if c.currentPath != nil {
		if _, free := c.freePaths[c.currentPath()]; free {
			return
		}
	}
	if !c.sessionExpired.CompareAndSwap(false, true) {
		return
	}
	c.log.Info("session expired, forcing sign out")
	c.sessions.Reset()
	c.notifier.Error("Session expired", "Your current session has expired. Sign in again.")
}

// clearExpiredLatch re-arms the expired session policy after the user
// is known to be signed in again.
func (c *Client) clearExpiredLatch() {
	c.sessionExpired.Store(false)
}
