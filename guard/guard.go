// Package guard makes the routing-level decision between rendering a
// protected subtree and redirecting to sign-in.
package guard

import "github.com/techblitz/techblitz-go/session"

// Decision is the outcome of a guard check.
type Decision int

const (
	// DecisionPending means the session is still being validated; callers
	// must blank-render instead of flashing protected content.
	DecisionPending Decision = iota
	// DecisionAllow renders the requested subtree.
	DecisionAllow
	// DecisionRedirect sends the visitor to sign-in.
	DecisionRedirect
)

// SignInPath is the default redirect target for blocked visitors.
const SignInPath = "/signin"

// Result carries the decision and, for redirects, the navigation target.
type Result struct {
	Decision   Decision
	RedirectTo string
	// ReplaceHistory asks the navigator to replace the current history
	// entry so back-navigation does not return to the blocked page.
	ReplaceHistory bool
}

// Guard reads the session store and gates access to protected paths.
type Guard struct {
	sessions   *session.Store
	redirects  *RedirectMemory
	signInPath string
}

// Option configures a Guard.
type Option func(*Guard)

// WithSignInPath overrides the redirect target.
func WithSignInPath(path string) Option {
	return func(g *Guard) { g.signInPath = path }
}

// New creates a Guard over the given store and redirect memory.
func New(sessions *session.Store, redirects *RedirectMemory, opts ...Option) *Guard {
	g := &Guard{
		sessions:   sessions,
		redirects:  redirects,
		signInPath: SignInPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check decides whether the visitor may see path. A blocked path is
// recorded in redirect memory before the redirect is issued.
func (g *Guard) Check(path string) Result {
	snap := g.sessions.Snapshot()
	if snap.IsLoading {
		return Result{Decision: DecisionPending}
	}
	if snap.IsSignedIn {
		return Result{Decision: DecisionAllow}
	}
	g.redirects.Set(path)
	return Result{
		Decision:       DecisionRedirect,
		RedirectTo:     g.signInPath,
		ReplaceHistory: true,
	}
}
