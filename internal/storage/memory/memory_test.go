package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/storage"
)

func TestStore_Session(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	defer s.Close()

	got, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	in := &models.Session{Token: "t", UserID: 1, User: &models.User{ID: 1, Name: "Otieno"}}
	require.NoError(t, s.SaveSession(ctx, in))

	in.User.Name = "mutated"
	got, err = s.LoadSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Otieno", got.User.Name, "store must keep its own copy")

	require.NoError(t, s.ClearSession(ctx))
	got, err = s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SessionAlreadyExpired(t *testing.T) {
	ctx := context.Background()
	s := New(0)

	past := time.Now().Add(-time.Minute).Unix()
	require.NoError(t, s.SaveSession(ctx, &models.Session{Token: "t", ExpiresAt: past}))

	got, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	s := New(time.Hour)

	_, _, err := s.GetSnapshot(ctx, "k")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.PutSnapshot(ctx, "k", []byte("v1")))
	data, at, err := s.GetSnapshot(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)
	assert.False(t, at.IsZero())
}
