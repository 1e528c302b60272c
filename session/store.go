package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/techblitz/techblitz-go/storage"
)

// stateKey is the repository key the auth state is persisted under.
const stateKey = "auth-store"

// Snapshot is an immutable view of the store handed to subscribers and
// readers.
type Snapshot struct {
	User       *User
	IsSignedIn bool
	IsLoading  bool
}

// persistedState is the durable subset of the store. IsLoading is
// deliberately absent: a restart must never resume mid-validation.
type persistedState struct {
	User                 *User `json:"user"`
	IsSignedIn           bool  `json:"is_signed_in"`
	RecoveryExpiryMillis int64 `json:"recovery_expiry_millis,omitempty"`
}

// Store holds the process-wide session state. All mutations are
// synchronous, total, and last-write-wins; the user and signed-in flag
// are sealed and persisted on every change so a returning visitor sees an
// optimistic "probably signed in" state before the reconciling validate
// call returns. The store itself never touches the network.
type Store struct {
	mu             sync.RWMutex
	user           *User
	isSignedIn     bool
	isLoading      bool
	recoveryExpiry time.Time

	repo   storage.Repository
	sealer *storage.Sealer
	logger *slog.Logger

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// NewStore creates a session store. repo and sealer may both be nil for a
// memory-only store that forgets everything on exit.
func NewStore(repo storage.Repository, sealer *storage.Sealer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(noopWriter{}, nil))
	}
	return &Store{
		repo:   repo,
		sealer: sealer,
		logger: logger.With("component", "session-store"),
		subs:   make(map[int]func(Snapshot)),
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Load rehydrates persisted state. Best effort: a missing, unreadable, or
// tampered record starts the store signed out instead of failing.
func (s *Store) Load() {
	if s.repo == nil || s.sealer == nil {
		return
	}
	env, err := s.repo.Get(stateKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read persisted session", "error", err)
		}
		return
	}
	data, err := s.sealer.Open(stateKey, env)
	if err != nil {
		s.logger.Warn("failed to unseal persisted session, starting signed out", "error", err)
		return
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("failed to decode persisted session, starting signed out", "error", err)
		return
	}

	s.mu.Lock()
	s.user = state.User
	s.isSignedIn = state.IsSignedIn
	if state.RecoveryExpiryMillis > 0 {
		s.recoveryExpiry = time.UnixMilli(state.RecoveryExpiryMillis)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SetUser replaces the current user record.
func (s *Store) SetUser(u *User) {
	s.mu.Lock()
	s.user = u.Clone()
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SetIsSignedIn replaces the signed-in flag.
func (s *Store) SetIsSignedIn(v bool) {
	s.mu.Lock()
	s.isSignedIn = v
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SetIsLoading marks whether a reconciling validate round-trip is in
// flight. Never persisted.
func (s *Store) SetIsLoading(v bool) {
	s.mu.Lock()
	s.isLoading = v
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// SetSession moves the store to the signed-in shape in one mutation.
func (s *Store) SetSession(u *User) {
	s.mu.Lock()
	s.user = u.Clone()
	s.isSignedIn = true
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Reset moves the store to the signed-out shape. The recovery expiry is
// left alone: an outstanding recovery email survives a sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	s.user = nil
	s.isSignedIn = false
	s.persistLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// User returns a copy of the current user, or nil when signed out.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// IsSignedIn reports the current authentication belief. It is a cached
// hint, not proof: callers gating protected content must also consult
// IsLoading.
func (s *Store) IsSignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSignedIn
}

// IsLoading reports whether a validate round-trip is outstanding.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// Snapshot returns a consistent view of all three fields.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// SetRecoveryExpiry persists the absolute expiry of an outstanding
// password-recovery email.
func (s *Store) SetRecoveryExpiry(t time.Time) {
	s.mu.Lock()
	s.recoveryExpiry = t
	s.persistLocked()
	s.mu.Unlock()
}

// ClearRecoveryExpiry removes the stored expiry.
func (s *Store) ClearRecoveryExpiry() {
	s.mu.Lock()
	s.recoveryExpiry = time.Time{}
	s.persistLocked()
	s.mu.Unlock()
}

// RecoveryExpiry returns the stored expiry and whether one is set.
func (s *Store) RecoveryExpiry() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recoveryExpiry, !s.recoveryExpiry.IsZero()
}

// Subscribe registers fn to run after every mutation. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		User:       s.user.Clone(),
		IsSignedIn: s.isSignedIn,
		IsLoading:  s.isLoading,
	}
}

// persistLocked seals and writes the durable fields. Persistence failures
// are logged, never surfaced: mutations are total.
func (s *Store) persistLocked() {
	if s.repo == nil || s.sealer == nil {
		return
	}
	state := persistedState{
		User:       s.user,
		IsSignedIn: s.isSignedIn,
	}
	if !s.recoveryExpiry.IsZero() {
		state.RecoveryExpiryMillis = s.recoveryExpiry.UnixMilli()
	}
	data, err := json.Marshal(state)
	if err != nil {
		s.logger.Warn("failed to encode session state", "error", err)
		return
	}
	env, err := s.sealer.Seal(stateKey, data)
	if err != nil {
		s.logger.Warn("failed to seal session state", "error", err)
		return
	}
	if err := s.repo.Put(stateKey, env); err != nil {
		s.logger.Warn("failed to persist session state", "error", err)
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
