// Package availability debounces server-side uniqueness checks for
// username and email fields while the user types.
package availability

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/techblitz/techblitz-go/validate"
)

// DefaultQuietPeriod is how long a field must be stable before a check is
// issued.
const DefaultQuietPeriod = 200 * time.Millisecond

// Field names a watched form field.
type Field string

const (
	FieldUsername Field = "username"
	FieldEmail    Field = "email"
)

// UnavailableMessage is the field-level error shown when the server
// reports the value taken.
func (f Field) UnavailableMessage() string {
	switch f {
	case FieldEmail:
		return "Email is no longer available."
	default:
		return "Username is no longer available."
	}
}

// CheckFunc asks the server whether value is still free for field.
// client.CheckAvailability satisfies it.
type CheckFunc func(ctx context.Context, field, value string) (bool, error)

// Result is delivered to the form after a check settles.
type Result struct {
	Value     string
	Available bool
	Err       error
}

// Checker debounces availability checks for a single field. Independent
// fields use independent checkers. Safe for concurrent use.
type Checker struct {
	field   Field
	check   CheckFunc
	deliver func(Result)

	quiet   time.Duration
	current func() string

	mu      sync.Mutex
	pending *handle
	closed  bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithQuietPeriod overrides the debounce window.
func WithQuietPeriod(d time.Duration) Option {
	return func(c *Checker) { c.quiet = d }
}

// WithCurrentValue supplies the signed-in user's own value for the field;
// edits back to it are never checked. Used on edit forms.
func WithCurrentValue(fn func() string) Option {
	return func(c *Checker) { c.current = fn }
}

// NewChecker creates a checker that reports results through deliver.
func NewChecker(field Field, check CheckFunc, deliver func(Result), opts ...Option) *Checker {
	c := &Checker{
		field:   field,
		check:   check,
		deliver: deliver,
		quiet:   DefaultQuietPeriod,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Input records a new field value. The previous pending check, if any, is
// cancelled; only a value that survives the quiet period unchanged is
// sent to the server.
func (c *Checker) Input(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
	if c.closed {
		return
	}

	v := strings.TrimSpace(value)
	if c.skip(v) {
		return
	}
	c.pending = schedule(c.quiet, func() { c.runCheck(v) })
}

// Close cancels any pending check. Further Input calls are ignored, so an
// unmounted form can never receive a late result.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
	c.closed = true
}

func (c *Checker) skip(v string) bool {
	if v == "" {
		return true
	}
	if c.current != nil && v == c.current() {
		return true
	}
	if c.field == FieldEmail && !validate.IsEmail(v) {
		return true
	}
	return false
}

func (c *Checker) runCheck(value string) {
	c.mu.Lock()
	c.pending = nil
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	available, err := c.check(context.Background(), string(c.field), value)

	c.mu.Lock()
	closed = c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.deliver(Result{Value: value, Available: available, Err: err})
}
