// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	sealer *storage.Sealer
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithSealer encrypts the session token at rest.
func WithSealer(s *storage.Sealer) Option {
	return func(st *SQLiteStore) {
		st.sealer = s
	}
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession replaces the persisted session.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *models.Session) error {
	if session == nil {
		return s.ClearSession(ctx)
	}

	token, err := s.sealer.Seal(session.Token)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}

	var userJSON interface{} = nil
	if session.User != nil {
		b, err := json.Marshal(session.User)
		if err != nil {
			return fmt.Errorf("failed to encode user: %w", err)
		}
		userJSON = string(b)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token, user_id, is_admin, group_id, user_json, expires_at, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   token = excluded.token,
		   user_id = excluded.user_id,
		   is_admin = excluded.is_admin,
		   group_id = excluded.group_id,
		   user_json = excluded.user_json,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		token, session.UserID, session.IsAdmin, session.GroupID, userJSON, session.ExpiresAt, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// LoadSession returns the persisted session or nil when none is stored.
func (s *SQLiteStore) LoadSession(ctx context.Context) (*models.Session, error) {
	session := &models.Session{}
	var token string
	var userJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT token, user_id, is_admin, group_id, user_json, expires_at FROM sessions WHERE id = 1",
	).Scan(&token, &session.UserID, &session.IsAdmin, &session.GroupID, &userJSON, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session.Token, err = s.sealer.Open(token)
	if err != nil {
		return nil, fmt.Errorf("failed to open token: %w", err)
	}

	if userJSON.Valid && userJSON.String != "" {
		session.User = &models.User{}
		if err := json.Unmarshal([]byte(userJSON.String), session.User); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
	}

	return session, nil
}

// ClearSession deletes the persisted session.
func (s *SQLiteStore) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// PutSnapshot stores the encoded snapshot under key.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, data, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`,
		key, data, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the encoded snapshot and when it was stored.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, key string) ([]byte, time.Time, error) {
	var data []byte
	var fetchedAt int64

	err := s.db.QueryRowContext(ctx,
		"SELECT data, fetched_at FROM snapshots WHERE key = ?",
		key,
	).Scan(&data, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, fmt.Errorf("snapshot %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return data, time.UnixMilli(fetchedAt), nil
}
