package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/techblitz/techblitz-go/session"
)

func TestRedirectMemoryLastWriterWins(t *testing.T) {
	m := NewRedirectMemory("")
	m.Set("/settings/profile")
	m.Set("/users/ann.lee")

	assert.Equal(t, "/users/ann.lee", m.ConsumeAndClear())
	assert.Equal(t, DefaultLandingPath, m.ConsumeAndClear(), "second consume returns the default")
	assert.Equal(t, DefaultLandingPath, m.ConsumeAndClear(), "consume is idempotent once cleared")
}

func TestRedirectMemoryCustomDefault(t *testing.T) {
	m := NewRedirectMemory("/home")
	assert.Equal(t, "/home", m.ConsumeAndClear())
}

func TestGuardAllowsSignedIn(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	sessions.SetSession(&session.User{ID: "u-1", Username: "ann.lee"})

	g := New(sessions, NewRedirectMemory(""))
	res := g.Check("/settings/profile")
	assert.Equal(t, DecisionAllow, res.Decision)
}

func TestGuardRedirectsAndRecordsPath(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	redirects := NewRedirectMemory("")
	g := New(sessions, redirects)

	res := g.Check("/settings/profile")
	assert.Equal(t, DecisionRedirect, res.Decision)
	assert.Equal(t, SignInPath, res.RedirectTo)
	assert.True(t, res.ReplaceHistory)

	assert.Equal(t, "/settings/profile", redirects.ConsumeAndClear())
}

func TestGuardPendingWhileLoading(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	sessions.SetSession(&session.User{ID: "u-1"})
	sessions.SetIsLoading(true)

	redirects := NewRedirectMemory("")
	g := New(sessions, redirects)

	res := g.Check("/settings/profile")
	assert.Equal(t, DecisionPending, res.Decision, "no content may flash before validate settles")
	assert.Equal(t, DefaultLandingPath, redirects.ConsumeAndClear(), "pending must not record the path")
}

func TestGuardCustomSignInPath(t *testing.T) {
	sessions := session.NewStore(nil, nil, nil)
	g := New(sessions, NewRedirectMemory(""), WithSignInPath("/login"))

	res := g.Check("/x")
	assert.Equal(t, "/login", res.RedirectTo)
}
