// Package techblitz wires the auth client stack together: the persisted
// session store, the API client, the route guard, the redirect memory
// and the recovery countdown. Embedding applications construct one App
// and hand its pieces to their UI layer.
package techblitz

import (
	"context"
	"log/slog"

	goerrors "github.com/goliatone/go-errors"

	"github.com/techblitz/techblitz-go/client"
	"github.com/techblitz/techblitz-go/guard"
	"github.com/techblitz/techblitz-go/internal/util"
	"github.com/techblitz/techblitz-go/notify"
	"github.com/techblitz/techblitz-go/recovery"
	"github.com/techblitz/techblitz-go/session"
	"github.com/techblitz/techblitz-go/storage"
	"github.com/techblitz/techblitz-go/storage/bbolt"
	"github.com/techblitz/techblitz-go/storage/memory"
)

// Config carries everything an App needs. BaseURL is required; the rest
// has working defaults.
type Config struct {
	// BaseURL is the main API endpoint.
	BaseURL string
	// StorageURL is the blob storage endpoint. Defaults to BaseURL.
	StorageURL string
	// StatePath is the bbolt file session state persists to. Empty
	// keeps state in memory only.
	StatePath string
	// StateSecret seals persisted state at rest. Required when
	// StatePath is set.
	StateSecret []byte
	// Logger receives structured logs. Defaults to slog.Default.
	Logger *slog.Logger
	// Notifier receives user-facing toasts. Defaults to logging them.
	Notifier notify.Notifier
	// PathProvider reports the current navigation path for the expired
	// session policy.
	PathProvider func() string
	// LandingPath is where consumed redirects fall back to.
	LandingPath string
}

// App is the assembled auth stack.
type App struct {
	Sessions  *session.Store
	Client    *client.Client
	Guard     *guard.Guard
	Redirects *guard.RedirectMemory
	Recovery  *recovery.Countdown

	log    *slog.Logger
	closer func() error
}

// New assembles an App from cfg.
func New(cfg Config, clientOpts ...client.Option) (*App, error) {
	if cfg.BaseURL == "" {
		return nil, goerrors.New("base URL is required", goerrors.CategoryBadInput)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}

	var (
		repo   storage.Repository
		sealer *storage.Sealer
		closer func() error
	)
	if cfg.StatePath != "" {
		if len(cfg.StateSecret) == 0 {
			return nil, goerrors.New("state secret is required when persisting state", goerrors.CategoryBadInput)
		}
		store, err := bbolt.NewRepositoryFromFile(cfg.StatePath, nil)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "open state file")
		}
		sealer, err = storage.NewSealer(cfg.StateSecret)
		if err != nil {
			store.Close()
			return nil, err
		}
		repo = store
		closer = store.Close
	} else {
		// Memory-only mode still seals its records; without a caller
		// secret the key is ephemeral and dies with the process.
		secret := cfg.StateSecret
		if len(secret) == 0 {
			var err error
			secret, err = util.RandomBytes(util.KeySize)
			if err != nil {
				return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "generate ephemeral state secret")
			}
		}
		var err error
		sealer, err = storage.NewSealer(secret)
		if err != nil {
			return nil, err
		}
		repo = memory.NewRepository()
	}

	sessions := session.NewStore(repo, sealer, logger)

	opts := append([]client.Option{
		client.WithLogger(logger),
		client.WithNotifier(notifier),
	}, clientOpts...)
	if cfg.StorageURL != "" {
		opts = append(opts, client.WithStorageURL(cfg.StorageURL))
	}
	if cfg.PathProvider != nil {
		opts = append(opts, client.WithPathProvider(cfg.PathProvider))
	}
	apiClient, err := client.New(cfg.BaseURL, sessions, opts...)
	if err != nil {
		if closer != nil {
			closer()
		}
		return nil, err
	}

	landing := cfg.LandingPath
	if landing == "" {
		landing = guard.DefaultLandingPath
	}
	redirects := guard.NewRedirectMemory(landing)

	return &App{
		Sessions:  sessions,
		Client:    apiClient,
		Guard:     guard.New(sessions, redirects),
		Redirects: redirects,
		Recovery:  recovery.New(sessions),
		log:       logger.With("component", "app"),
		closer:    closer,
	}, nil
}

// Start loads persisted state, reconciles it with the server and
// resumes a pending recovery countdown. The optimistic persisted state
// is visible to the UI until validation returns.
func (a *App) Start(ctx context.Context) {
	a.Sessions.Load()
	a.Client.Validate(ctx)
	a.Recovery.Resume()
	a.log.Debug("started", "signed_in", a.Sessions.IsSignedIn())
}

// SignIn authenticates and returns the path the user should land on:
// the route that originally bounced them to the sign-in page, or the
// default landing path.
func (a *App) SignIn(ctx context.Context, identifier, password string) (string, error) {
	if _, err := a.Client.SignIn(ctx, identifier, password); err != nil {
		return "", err
	}
	return a.Redirects.ConsumeAndClear(), nil
}

// SignUp registers an account and returns the post-signup destination,
// honoring a remembered blocked route the same way SignIn does.
func (a *App) SignUp(ctx context.Context, in client.SignUpInput) (string, error) {
	if _, err := a.Client.SignUp(ctx, in); err != nil {
		return "", err
	}
	return a.Redirects.ConsumeAndClear(), nil
}

// Close stops the countdown and releases the state file.
func (a *App) Close() error {
	a.Recovery.Stop()
	if a.closer != nil {
		return a.closer()
	}
	return nil
}
