// Package recovery tracks the expiry of an outstanding password-recovery
// email and exposes a human-readable remaining time.
package recovery

import (
	"fmt"
	"sync"
	"time"

	"github.com/techblitz/techblitz-go/session"
)

// State is the countdown's current phase.
type State int

const (
	// StateIdle means no recovery email is outstanding; resend is enabled.
	StateIdle State = iota
	// StateCounting means a recovery email is outstanding; resend stays
	// disabled until the expiry passes.
	StateCounting
)

// Countdown is the Idle → Counting → Idle state machine. The expiry is
// persisted through the session store so an outstanding recovery email
// survives a restart.
type Countdown struct {
	mu        sync.Mutex
	sessions  *session.Store
	state     State
	expiry    time.Time
	remaining string
	cancel    chan struct{}

	tick time.Duration
	now  func() time.Time

	onTick   func(remaining string)
	onExpire func()
}

// Option configures a Countdown.
type Option func(*Countdown)

// WithTickInterval overrides the 1s recompute interval. Tests use this to
// avoid real-time waits.
func WithTickInterval(d time.Duration) Option {
	return func(c *Countdown) { c.tick = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Countdown) { c.now = now }
}

// WithOnTick registers a callback for every recomputed remaining time.
func WithOnTick(fn func(remaining string)) Option {
	return func(c *Countdown) { c.onTick = fn }
}

// WithOnExpire registers a callback for the Counting → Idle transition.
func WithOnExpire(fn func()) Option {
	return func(c *Countdown) { c.onExpire = fn }
}

// New creates an idle countdown bound to the session store.
func New(sessions *session.Store, opts ...Option) *Countdown {
	c := &Countdown{
		sessions: sessions,
		tick:     time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resume re-enters Counting from a persisted expiry, if one is still in
// the future. A stale expiry is cleared. Called once at startup.
func (c *Countdown) Resume() {
	expiry, ok := c.sessions.RecoveryExpiry()
	if !ok {
		return
	}
	if !expiry.After(c.now()) {
		c.sessions.ClearRecoveryExpiry()
		return
	}
	c.Start(expiry)
}

// Start stores the expiry and enters Counting. An already-running
// countdown is replaced.
func (c *Countdown) Start(expiry time.Time) {
	c.mu.Lock()
	if c.cancel != nil {
		close(c.cancel)
	}
	c.sessions.SetRecoveryExpiry(expiry)
	c.state = StateCounting
	c.expiry = expiry
	c.remaining = FormatRemaining(expiry.Sub(c.now()))
	cancel := make(chan struct{})
	c.cancel = cancel
	onTick := c.onTick
	remaining := c.remaining
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	go c.run(expiry, cancel)
}

// Stop cancels the ticker without clearing the persisted expiry. Used on
// unmount; Resume picks the countdown back up.
func (c *Countdown) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		close(c.cancel)
		c.cancel = nil
	}
	c.mu.Unlock()
}

// State returns the current phase.
func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Counting reports whether a recovery email is outstanding. While true,
// the resend action and email input stay disabled.
func (c *Countdown) Counting() bool {
	return c.State() == StateCounting
}

// Remaining returns the last formatted remaining time, like "02:05".
func (c *Countdown) Remaining() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// ResendLabel returns the submit-control label: "Resend in MM:SS" while
// counting, or the normal label otherwise.
func (c *Countdown) ResendLabel(normal string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateCounting && c.remaining != "" {
		return "Resend in " + c.remaining
	}
	return normal
}

func (c *Countdown) run(expiry time.Time, cancel chan struct{}) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			left := expiry.Sub(c.now())
			if left <= 0 {
				c.expire(cancel)
				return
			}
			c.mu.Lock()
			c.remaining = FormatRemaining(left)
			onTick := c.onTick
			remaining := c.remaining
			c.mu.Unlock()
			if onTick != nil {
				onTick(remaining)
			}
		}
	}
}

func (c *Countdown) expire(cancel chan struct{}) {
	c.mu.Lock()
	// A replacement Start may already own the countdown.
	if c.cancel != cancel {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	c.state = StateIdle
	c.expiry = time.Time{}
	c.remaining = ""
	onExpire := c.onExpire
	c.mu.Unlock()

	c.sessions.ClearRecoveryExpiry()
	if onExpire != nil {
		onExpire()
	}
}

// FormatRemaining renders a duration as zero-padded "MM:SS". Negative
// durations clamp to "00:00".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
