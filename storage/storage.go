// Package storage provides the persistence layer for client state: a small
// keyed repository of sealed records, the local analogue of the browser's
// persisted auth store.
package storage

import "errors"

// ErrNotFound is returned when no record exists under the requested key.
var ErrNotFound = errors.New("record not found")

// Repository stores sealed state records by key.
type Repository interface {
	Put(key string, envelope *Envelope) error
	Get(key string) (*Envelope, error)
	Delete(key string) error
}
