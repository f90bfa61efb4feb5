// Package storage provides abstractions for the client's local persistence:
// the session credential and the last successfully fetched snapshots.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/chama/internal/models"
)

// ErrNotFound is returned when a cached snapshot does not exist.
var ErrNotFound = errors.New("not found")

// SessionStore persists the single active session.
type SessionStore interface {
	// SaveSession replaces the persisted session.
	SaveSession(ctx context.Context, session *models.Session) error

	// LoadSession returns the persisted session, or nil when there is none.
	LoadSession(ctx context.Context) (*models.Session, error)

	// ClearSession removes every persisted session field.
	ClearSession(ctx context.Context) error
}

// SnapshotCache keeps the last good snapshot per view so it can be shown
// when the backend is unreachable.
type SnapshotCache interface {
	// PutSnapshot stores the encoded snapshot under key.
	PutSnapshot(ctx context.Context, key string, data []byte) error

	// GetSnapshot returns the encoded snapshot and when it was stored.
	// Returns ErrNotFound if the key is absent.
	GetSnapshot(ctx context.Context, key string) ([]byte, time.Time, error)
}

// Store defines the full local storage backend.
// This abstraction allows swapping storage backends (SQLite, in-memory)
// without changing the session or view layers.
type Store interface {
	SessionStore
	SnapshotCache

	// Close releases any resources held by the store.
	Close() error
}
