package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/auth"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/storage/memory"
	"github.com/mmynk/chama/pkg/logging"
)

type fakeAPI struct {
	mu       sync.Mutex
	login    func(email, password string) (*models.AuthResponse, error)
	register func(req models.RegisterRequest) (*models.AuthResponse, error)
	logouts  int
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (*models.AuthResponse, error) {
	return f.login(email, password)
}

func (f *fakeAPI) Register(_ context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return f.register(req)
}

func (f *fakeAPI) GoogleLogin(_ context.Context, idToken string) (*models.AuthResponse, error) {
	return f.login(idToken, "")
}

func (f *fakeAPI) Logout(context.Context) error {
	f.mu.Lock()
	f.logouts++
	f.mu.Unlock()
	return nil
}

func issue(t *testing.T, user *models.User, ttl time.Duration) string {
	t.Helper()
	token, err := auth.NewJWTManager("test-secret", ttl).Generate(user)
	require.NoError(t, err)
	return token
}

func newStore(t *testing.T, api API, opts ...Option) (*Store, *memory.Store) {
	t.Helper()
	persist := memory.New(0)
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return New(persist, api, opts...), persist
}

func TestLogin_PersistsSession(t *testing.T) {
	user := &models.User{ID: 4, Name: "Otieno", IsAdmin: true, GroupID: 2}
	token := issue(t, user, time.Hour)
	api := &fakeAPI{login: func(email, password string) (*models.AuthResponse, error) {
		return &models.AuthResponse{AccessToken: token, User: user}, nil
	}}

	s, persist := newStore(t, api)
	sess, err := s.Login(context.Background(), "otieno@example.com", "pw")
	require.NoError(t, err)

	assert.Equal(t, token, sess.Token)
	assert.True(t, sess.IsAdmin)
	assert.Equal(t, int64(2), sess.GroupID)
	assert.NotZero(t, sess.ExpiresAt)
	assert.Equal(t, token, s.Token())

	stored, err := persist.LoadSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, token, stored.Token)
}

func TestLogin_FailureReasons(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason apperr.AuthReason
	}{
		{"invalid", &apperr.AuthError{Reason: apperr.ReasonInvalidCredentials}, apperr.ReasonInvalidCredentials},
		{"unverified", &apperr.AuthError{Reason: apperr.ReasonUnverifiedAccount}, apperr.ReasonUnverifiedAccount},
		{"network", &apperr.NetworkError{Op: "POST /login", Cause: errors.New("connection refused")}, apperr.ReasonNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{login: func(string, string) (*models.AuthResponse, error) { return nil, tt.err }}
			s, _ := newStore(t, api)

			sess, err := s.Login(context.Background(), "a@b.co", "pw")
			assert.Nil(t, sess)

			var authErr *apperr.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.wantReason, authErr.Reason)
			assert.Nil(t, s.Current())
		})
	}
}

func TestLogin_NoToken(t *testing.T) {
	api := &fakeAPI{login: func(string, string) (*models.AuthResponse, error) {
		return &models.AuthResponse{Message: "ok"}, nil
	}}
	s, _ := newStore(t, api)

	_, err := s.Login(context.Background(), "a@b.co", "pw")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestCurrent_ExpiredTokenIsAbsent(t *testing.T) {
	user := &models.User{ID: 1}
	token := issue(t, user, time.Hour)
	api := &fakeAPI{login: func(string, string) (*models.AuthResponse, error) {
		return &models.AuthResponse{AccessToken: token, User: user}, nil
	}}

	now := time.Now()
	s, _ := newStore(t, api, WithClock(func() time.Time { return now }))
	_, err := s.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	require.NotNil(t, s.Current())

	now = now.Add(2 * time.Hour)
	assert.Nil(t, s.Current())
	assert.Empty(t, s.Token())
}

func TestLogout_ClearsEverything(t *testing.T) {
	user := &models.User{ID: 1}
	api := &fakeAPI{login: func(string, string) (*models.AuthResponse, error) {
		return &models.AuthResponse{AccessToken: "opaque-token", User: user}, nil
	}}
	s, persist := newStore(t, api)

	_, err := s.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)

	var changes []*models.Session
	unsubscribe := s.OnChange(func(sess *models.Session) { changes = append(changes, sess) })
	defer unsubscribe()

	require.NoError(t, s.Logout(context.Background()))

	assert.Nil(t, s.Current())
	assert.Equal(t, 1, api.logouts)
	stored, err := persist.LoadSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0])
}

func TestInvalidate_SkipsBackend(t *testing.T) {
	api := &fakeAPI{login: func(string, string) (*models.AuthResponse, error) {
		return &models.AuthResponse{AccessToken: "opaque-token", User: &models.User{ID: 1}}, nil
	}}
	s, _ := newStore(t, api)
	_, err := s.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)

	s.Invalidate()

	assert.Nil(t, s.Current())
	assert.Zero(t, api.logouts)
}

func TestRestore(t *testing.T) {
	persist := memory.New(0)
	user := &models.User{ID: 6, GroupID: 3}
	token := issue(t, user, time.Hour)
	require.NoError(t, persist.SaveSession(context.Background(), &models.Session{Token: token, UserID: 6, GroupID: 3}))

	s := New(persist, &fakeAPI{}, WithLogger(logging.Discard()))
	require.NoError(t, s.Restore(context.Background()))

	sess := s.Current()
	require.NotNil(t, sess)
	assert.Equal(t, int64(3), sess.GroupID)
}

func TestRegister_WithoutTokenStoresNothing(t *testing.T) {
	api := &fakeAPI{register: func(req models.RegisterRequest) (*models.AuthResponse, error) {
		return &models.AuthResponse{Message: "Check your email to verify your account"}, nil
	}}
	s, _ := newStore(t, api)

	resp, sess, err := s.Register(context.Background(), models.RegisterRequest{Name: "N", Email: "n@x.co", Password: "pw"})
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, "Check your email to verify your account", resp.Message)
	assert.Nil(t, s.Current())
}

func TestRegister_Validation(t *testing.T) {
	s, _ := newStore(t, &fakeAPI{})
	_, _, err := s.Register(context.Background(), models.RegisterRequest{Email: "n@x.co"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUpdateUser(t *testing.T) {
	api := &fakeAPI{login: func(string, string) (*models.AuthResponse, error) {
		return &models.AuthResponse{AccessToken: "opaque-token", User: &models.User{ID: 1}}, nil
	}}
	s, _ := newStore(t, api)
	_, err := s.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)

	require.NoError(t, s.UpdateUser(context.Background(), &models.User{ID: 1, GroupID: 8, IsAdmin: true}))

	sess := s.Current()
	assert.Equal(t, int64(8), sess.GroupID)
	assert.True(t, sess.IsAdmin)
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	api := &fakeAPI{login: func(string, string) (*models.AuthResponse, error) {
		return &models.AuthResponse{AccessToken: "opaque-token", User: &models.User{ID: 1, Name: "A"}}, nil
	}}
	s, _ := newStore(t, api)
	_, err := s.Login(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)

	s.Current().User.Name = "mutated"
	assert.Equal(t, "A", s.Current().User.Name)
}
