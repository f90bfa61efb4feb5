package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/storage"
)

func TestSQLiteStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "chama-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	store, err := New(filepath.Join(tempDir, "state", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	t.Run("LoadSession on empty store returns nil", func(t *testing.T) {
		session, err := store.LoadSession(ctx)
		if err != nil {
			t.Fatalf("LoadSession failed: %v", err)
		}
		if session != nil {
			t.Errorf("expected nil session, got %+v", session)
		}
	})

	t.Run("SaveSession then LoadSession", func(t *testing.T) {
		original := &models.Session{
			Token:   "tok-1",
			UserID:  3,
			IsAdmin: true,
			GroupID: 9,
			User:    &models.User{ID: 3, Name: "Akinyi", GroupID: 9, IsAdmin: true},
		}
		if err := store.SaveSession(ctx, original); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		loaded, err := store.LoadSession(ctx)
		if err != nil {
			t.Fatalf("LoadSession failed: %v", err)
		}
		if loaded.Token != "tok-1" || loaded.UserID != 3 || !loaded.IsAdmin || loaded.GroupID != 9 {
			t.Errorf("unexpected session: %+v", loaded)
		}
		if loaded.User == nil || loaded.User.Name != "Akinyi" {
			t.Errorf("expected cached user 'Akinyi', got %+v", loaded.User)
		}
	})

	t.Run("SaveSession replaces the previous row", func(t *testing.T) {
		if err := store.SaveSession(ctx, &models.Session{Token: "tok-2", UserID: 4}); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
		loaded, err := store.LoadSession(ctx)
		if err != nil {
			t.Fatalf("LoadSession failed: %v", err)
		}
		if loaded.Token != "tok-2" || loaded.User != nil || loaded.IsAdmin {
			t.Errorf("expected replaced session, got %+v", loaded)
		}
	})

	t.Run("ClearSession removes it", func(t *testing.T) {
		if err := store.ClearSession(ctx); err != nil {
			t.Fatalf("ClearSession failed: %v", err)
		}
		loaded, err := store.LoadSession(ctx)
		if err != nil {
			t.Fatalf("LoadSession failed: %v", err)
		}
		if loaded != nil {
			t.Errorf("expected nil after clear, got %+v", loaded)
		}
	})

	t.Run("snapshots", func(t *testing.T) {
		if _, _, err := store.GetSnapshot(ctx, "admin:1"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		if err := store.PutSnapshot(ctx, "admin:1", []byte(`{"group_id":1}`)); err != nil {
			t.Fatalf("PutSnapshot failed: %v", err)
		}
		if err := store.PutSnapshot(ctx, "admin:1", []byte(`{"group_id":2}`)); err != nil {
			t.Fatalf("PutSnapshot overwrite failed: %v", err)
		}

		data, at, err := store.GetSnapshot(ctx, "admin:1")
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if string(data) != `{"group_id":2}` {
			t.Errorf("expected latest snapshot, got %s", data)
		}
		if at.IsZero() {
			t.Error("expected fetched_at to be set")
		}
	})
}

func TestSQLiteStore_SealedToken(t *testing.T) {
	dir := t.TempDir()
	sealer, err := storage.NewSealer("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	store, err := New(filepath.Join(dir, "sealed.db"), WithSealer(sealer))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveSession(ctx, &models.Session{Token: "plain-token", UserID: 1}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	var raw string
	if err := store.db.QueryRowContext(ctx, "SELECT token FROM sessions WHERE id = 1").Scan(&raw); err != nil {
		t.Fatalf("raw select failed: %v", err)
	}
	if raw == "plain-token" {
		t.Error("token stored in plaintext despite sealer")
	}

	loaded, err := store.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.Token != "plain-token" {
		t.Errorf("expected 'plain-token', got '%s'", loaded.Token)
	}
}
