// Package memory provides an in-process storage.Store backed by go-cache.
// Sessions expire together with their token; snapshots expire after a TTL.
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/storage"
)

const sessionKey = "session"

var _ storage.Store = (*Store)(nil)

type snapshotEntry struct {
	data      []byte
	fetchedAt time.Time
}

// Store implements storage.Store in memory.
type Store struct {
	sessions  *cache.Cache
	snapshots *cache.Cache
	ttl       time.Duration
}

// New creates a memory store. snapshotTTL <= 0 keeps snapshots until Close.
func New(snapshotTTL time.Duration) *Store {
	ttl := snapshotTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Store{
		sessions:  cache.New(cache.NoExpiration, time.Minute),
		snapshots: cache.New(ttl, time.Minute),
		ttl:       ttl,
	}
}

// SaveSession stores a copy of session until its token expires.
func (s *Store) SaveSession(_ context.Context, session *models.Session) error {
	if session == nil {
		s.sessions.Delete(sessionKey)
		return nil
	}

	expiry := cache.NoExpiration
	if session.ExpiresAt > 0 {
		expiry = time.Until(time.Unix(session.ExpiresAt, 0))
		if expiry <= 0 {
			s.sessions.Delete(sessionKey)
			return nil
		}
	}

	cp := *session
	if session.User != nil {
		u := *session.User
		cp.User = &u
	}
	s.sessions.Set(sessionKey, &cp, expiry)
	return nil
}

// LoadSession returns a copy of the stored session, or nil.
func (s *Store) LoadSession(_ context.Context) (*models.Session, error) {
	v, ok := s.sessions.Get(sessionKey)
	if !ok {
		return nil, nil
	}
	cp := *v.(*models.Session)
	if cp.User != nil {
		u := *cp.User
		cp.User = &u
	}
	return &cp, nil
}

// ClearSession removes the stored session.
func (s *Store) ClearSession(_ context.Context) error {
	s.sessions.Delete(sessionKey)
	return nil
}

// PutSnapshot stores data under key.
func (s *Store) PutSnapshot(_ context.Context, key string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.snapshots.Set(key, snapshotEntry{data: buf, fetchedAt: time.Now()}, cache.DefaultExpiration)
	return nil
}

// GetSnapshot returns the snapshot stored under key.
func (s *Store) GetSnapshot(_ context.Context, key string) ([]byte, time.Time, error) {
	v, ok := s.snapshots.Get(key)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("snapshot %s: %w", key, storage.ErrNotFound)
	}
	e := v.(snapshotEntry)
	return e.data, e.fetchedAt, nil
}

// Close drops all entries.
func (s *Store) Close() error {
	s.sessions.Flush()
	s.snapshots.Flush()
	return nil
}
