// Package memory provides a thread-safe in-memory implementation of
// storage.Repository. Suitable for tests and ephemeral sessions.
package memory

import (
	"sync"

	"github.com/techblitz/techblitz-go/internal/util"
	"github.com/techblitz/techblitz-go/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
type Repository struct {
	mu   sync.RWMutex
	data map[string]*storage.Envelope
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]*storage.Envelope)}
}

func cloneEnvelope(env *storage.Envelope) *storage.Envelope {
	if env == nil {
		return nil
	}
	return &storage.Envelope{
		Ver:        env.Ver,
		Scheme:     env.Scheme,
		Nonce:      util.CopyBytes(env.Nonce),
		Ciphertext: util.CopyBytes(env.Ciphertext),
	}
}

func (r *Repository) Put(key string, envelope *storage.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = cloneEnvelope(envelope)
	return nil
}

func (r *Repository) Get(key string) (*storage.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	env, ok := r.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneEnvelope(env), nil
}

func (r *Repository) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
	return nil
}
