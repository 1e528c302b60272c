package techblitz_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	techblitz "github.com/techblitz/techblitz-go"
	"github.com/techblitz/techblitz-go/apitest"
	"github.com/techblitz/techblitz-go/client"
	"github.com/techblitz/techblitz-go/guard"
	"github.com/techblitz/techblitz-go/recovery"
	"github.com/techblitz/techblitz-go/session"
)

type toastSpy struct {
	mu    sync.Mutex
	calls [][2]string
}

func (s *toastSpy) Info(title, message string)    { s.add(title, message) }
func (s *toastSpy) Success(title, message string) { s.add(title, message) }
func (s *toastSpy) Error(title, message string)   { s.add(title, message) }

func (s *toastSpy) add(title, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, [2]string{title, message})
}

func (s *toastSpy) all() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]string(nil), s.calls...)
}

type harness struct {
	server *apitest.Server
	toasts *toastSpy
	app    *techblitz.App
	path   string
}

func newHarness(t *testing.T, statePath string) *harness {
	t.Helper()
	h := &harness{
		server: apitest.NewServer(),
		toasts: &toastSpy{},
		path:   "/feed",
	}
	t.Cleanup(h.server.Close)
	h.newApp(t, statePath)
	return h
}

// newApp builds a fresh App against the same fake server, simulating a
// process restart when statePath is reused.
func (h *harness) newApp(t *testing.T, statePath string) {
	t.Helper()
	app, err := techblitz.New(techblitz.Config{
		BaseURL:      h.server.API.URL,
		StorageURL:   h.server.Storage.URL,
		StatePath:    statePath,
		StateSecret:  []byte("integration-test-secret"),
		Notifier:     h.toasts,
		PathProvider: func() string { return h.path },
	})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	h.app = app
}

func signUpAnna(t *testing.T, h *harness) {
	t.Helper()
	_, err := h.app.SignUp(context.Background(), client.SignUpInput{
		Name:     "Anna Lee",
		Username: "anna.lee",
		Email:    "anna@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
}

func TestBlockedRouteIsRememberedAcrossSignIn(t *testing.T) {
	h := newHarness(t, "")
	h.app.Start(context.Background())

	res := h.app.Guard.Check("/settings/profile")
	require.Equal(t, guard.DecisionRedirect, res.Decision)
	assert.Equal(t, guard.SignInPath, res.RedirectTo)
	assert.True(t, res.ReplaceHistory)

	h.server.Seed(session.User{Username: "anna.lee", Email: "anna@example.com"}, "correct horse")
	target, err := h.app.SignIn(context.Background(), "anna.lee", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "/settings/profile", target)

	// The slot is single-use; the next sign-in goes to the landing page.
	require.NoError(t, h.app.Client.SignOut(context.Background()))
	target, err = h.app.SignIn(context.Background(), "anna.lee", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, guard.DefaultLandingPath, target)
}

func TestSignUpRedirectsToRememberedRoute(t *testing.T) {
	h := newHarness(t, "")
	h.app.Start(context.Background())

	h.app.Guard.Check("/bookmarks")
	target, err := h.app.SignUp(context.Background(), client.SignUpInput{
		Name:     "Anna Lee",
		Username: "anna.lee",
		Email:    "anna@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "/bookmarks", target)
	assert.Equal(t, guard.DecisionAllow, h.app.Guard.Check("/bookmarks").Decision)
}

func TestPersistedStateRehydratesOptimistically(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")
	h := newHarness(t, statePath)
	h.app.Start(context.Background())
	signUpAnna(t, h)
	require.NoError(t, h.app.Close())

	// A returning visitor sees the persisted "probably signed in" state
	// immediately, before the reconciling validate call returns.
	h.newApp(t, statePath)
	h.app.Sessions.Load()
	assert.True(t, h.app.Sessions.IsSignedIn())
	assert.Equal(t, "anna.lee", h.app.Sessions.User().Username)

	// The cookie jar died with the process, so validation corrects the
	// optimistic state without a notification.
	h.app.Start(context.Background())
	assert.False(t, h.app.Sessions.IsSignedIn())
	assert.Empty(t, h.toasts.all())
}

func TestExpiredSessionForcesSingleSignOutToast(t *testing.T) {
	h := newHarness(t, "")
	h.app.Start(context.Background())
	signUpAnna(t, h)
	h.server.ExpireAll()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.app.Client.Update(context.Background(), client.ProfileUpdate{Name: "Changed"})
		}()
	}
	wg.Wait()

	assert.False(t, h.app.Sessions.IsSignedIn())
	calls := h.toasts.all()
	require.Len(t, calls, 1)
	assert.Equal(t, "Session expired", calls[0][0])

	// Back on the sign-in page, the guard sends the user through again.
	res := h.app.Guard.Check("/settings/profile")
	assert.Equal(t, guard.DecisionRedirect, res.Decision)
}

func TestRecoveryCountdownSurvivesRestart(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.db")
	h := newHarness(t, statePath)
	h.app.Start(context.Background())
	h.server.Seed(session.User{Username: "anna.lee", Email: "anna@example.com"}, "correct horse")

	expiry, err := h.app.Client.ForgotPassword(context.Background(), "anna@example.com")
	require.NoError(t, err)
	h.app.Recovery.Start(expiry)
	assert.Equal(t, recovery.StateCounting, h.app.Recovery.State())
	require.NoError(t, h.app.Close())

	h.newApp(t, statePath)
	h.app.Start(context.Background())
	assert.Equal(t, recovery.StateCounting, h.app.Recovery.State())
	assert.NotEqual(t, "Resend", h.app.Recovery.ResendLabel("Resend"))
}

func TestMemoryOnlyAppRoundTripsState(t *testing.T) {
	h := newHarness(t, "")
	h.app.Start(context.Background())
	signUpAnna(t, h)

	// Load only fires a snapshot when it finds and unseals a stored
	// record, so a reloaded signed-in state proves the memory backend
	// took the write.
	var reloaded bool
	unsub := h.app.Sessions.Subscribe(func(session.Snapshot) { reloaded = true })
	defer unsub()

	h.app.Sessions.Load()
	assert.True(t, reloaded)
	assert.True(t, h.app.Sessions.IsSignedIn())
	assert.Equal(t, "anna.lee", h.app.Sessions.User().Username)
}

func TestFullRecoveryFlow(t *testing.T) {
	h := newHarness(t, "")
	h.app.Start(context.Background())
	h.server.Seed(session.User{Username: "anna.lee", Email: "anna@example.com"}, "old password")

	expiry, err := h.app.Client.ForgotPassword(context.Background(), "anna@example.com")
	require.NoError(t, err)
	assert.True(t, expiry.After(time.Now()))

	token := h.server.IssueResetToken("anna.lee")
	require.NoError(t, h.app.Client.ResetPassword(context.Background(), token, "brand new pass"))

	target, err := h.app.SignIn(context.Background(), "anna@example.com", "brand new pass")
	require.NoError(t, err)
	assert.Equal(t, guard.DefaultLandingPath, target)
}
