// Package session owns the authenticated identity of the client.
//
// The Store holds the single active session in memory, mirrors it into a
// storage.SessionStore, and is read synchronously by route guards and the
// gateway on every request. It is the only state shared across views.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/auth"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/storage"
)

// ErrNoToken is returned when the backend accepted a login but sent no token.
var ErrNoToken = errors.New("backend response carried no access token")

// API is the part of the backend the session needs.
type API interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	GoogleLogin(ctx context.Context, idToken string) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
}

// Store is the session store. The zero value is not usable; call New.
type Store struct {
	mu      sync.RWMutex
	current *models.Session

	persist storage.SessionStore
	api     API
	logger  *slog.Logger
	now     func() time.Time

	listenerMu sync.Mutex
	listeners  map[int]func(*models.Session)
	nextID     int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a session store persisting to persist and authenticating
// against api. Call Restore to pick up a previously saved session.
func New(persist storage.SessionStore, api API, opts ...Option) *Store {
	s := &Store{
		persist:   persist,
		api:       api,
		logger:    slog.Default(),
		now:       time.Now,
		listeners: make(map[int]func(*models.Session)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAPI replaces the backend used for login and logout. The gateway and the
// session reference each other, so one side is wired after construction.
func (s *Store) SetAPI(api API) {
	s.mu.Lock()
	s.api = api
	s.mu.Unlock()
}

// Restore loads the persisted session. An expired session is discarded.
func (s *Store) Restore(ctx context.Context) error {
	sess, err := s.persist.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if sess != nil && s.expired(sess) {
		s.logger.Info("Discarding expired session", "user_id", sess.UserID)
		if err := s.persist.ClearSession(ctx); err != nil {
			return fmt.Errorf("failed to clear expired session: %w", err)
		}
		sess = nil
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.notify(sess)
	return nil
}

// Current returns a copy of the active session, or nil when anonymous.
// A session whose token has expired is cleared and reported as absent.
func (s *Store) Current() *models.Session {
	s.mu.RLock()
	sess := s.current
	s.mu.RUnlock()

	if sess == nil {
		return nil
	}
	if s.expired(sess) {
		s.logger.Info("Session token expired", "user_id", sess.UserID)
		s.Invalidate()
		return nil
	}
	return clone(sess)
}

// Token returns the bearer credential of the active session, or "".
func (s *Store) Token() string {
	if sess := s.Current(); sess != nil {
		return sess.Token
	}
	return ""
}

// Login authenticates with email and password and persists the session.
//
// Failures are *apperr.AuthError with ReasonInvalidCredentials (401),
// ReasonUnverifiedAccount (403) or ReasonNetwork (backend unreachable).
// Other backend rejections are returned as *apperr.RemoteError.
func (s *Store) Login(ctx context.Context, email, password string) (*models.Session, error) {
	resp, err := s.backend().Login(ctx, email, password)
	if err != nil {
		return nil, loginError(err)
	}
	return s.establish(ctx, resp)
}

// LoginWithGoogle exchanges a Google ID token and persists the session.
func (s *Store) LoginWithGoogle(ctx context.Context, idToken string) (*models.Session, error) {
	resp, err := s.backend().GoogleLogin(ctx, idToken)
	if err != nil {
		return nil, loginError(err)
	}
	return s.establish(ctx, resp)
}

// Register creates an account. The backend usually requires email
// verification first; a session is only stored when a token comes back.
func (s *Store) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, *models.Session, error) {
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return nil, nil, apperr.Validation("", "Name, email and password are required.")
	}

	resp, err := s.backend().Register(ctx, req)
	if err != nil {
		return nil, nil, loginError(err)
	}
	if resp.AccessToken == "" {
		return resp, nil, nil
	}

	sess, err := s.establish(ctx, resp)
	if err != nil {
		return resp, nil, err
	}
	return resp, sess, nil
}

// Logout tells the backend (best effort) and clears every persisted field.
func (s *Store) Logout(ctx context.Context) error {
	if s.Token() != "" {
		if err := s.backend().Logout(ctx); err != nil {
			s.logger.Warn("Backend logout failed", "error", err)
		}
	}
	return s.clear(ctx)
}

// Invalidate drops the session without contacting the backend. The gateway
// calls it on every 401.
func (s *Store) Invalidate() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.clear(ctx); err != nil {
		s.logger.Error("Failed to clear session", "error", err)
	}
}

// UpdateUser refreshes the cached profile, for example after the user joined
// a group or was promoted to admin.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return nil
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	next := clone(s.current)
	u := *user
	next.User = &u
	next.UserID = user.ID
	next.IsAdmin = user.IsAdmin
	next.GroupID = user.GroupID
	s.current = next
	s.mu.Unlock()

	if err := s.persist.SaveSession(ctx, next); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.notify(next)
	return nil
}

// OnChange registers fn to run after every login, logout or invalidation.
// It receives the new session, nil when anonymous.
func (s *Store) OnChange(fn func(*models.Session)) (unsubscribe func()) {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *Store) establish(ctx context.Context, resp *models.AuthResponse) (*models.Session, error) {
	if resp == nil || resp.AccessToken == "" {
		return nil, ErrNoToken
	}

	sess := &models.Session{Token: resp.AccessToken}
	if resp.User != nil {
		u := *resp.User
		sess.User = &u
		sess.UserID = u.ID
		sess.IsAdmin = u.IsAdmin
		sess.GroupID = u.GroupID
	}
	if info, err := auth.Inspect(resp.AccessToken); err == nil && !info.ExpiresAt.IsZero() {
		sess.ExpiresAt = info.ExpiresAt.Unix()
	}

	if err := s.persist.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info("Logged in", "user_id", sess.UserID, "is_admin", sess.IsAdmin, "group_id", sess.GroupID)
	s.notify(sess)
	return clone(sess), nil
}

func (s *Store) clear(ctx context.Context) error {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.mu.Unlock()

	if err := s.persist.ClearSession(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if had {
		s.logger.Info("Logged out")
		s.notify(nil)
	}
	return nil
}

func (s *Store) expired(sess *models.Session) bool {
	if sess.ExpiresAt == 0 {
		return false
	}
	return !s.now().Before(time.Unix(sess.ExpiresAt, 0))
}

func (s *Store) backend() API {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.api
}

func (s *Store) notify(sess *models.Session) {
	s.listenerMu.Lock()
	fns := make([]func(*models.Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(clone(sess))
	}
}

// loginError maps a gateway failure of an auth endpoint to the login taxonomy.
func loginError(err error) error {
	var authErr *apperr.AuthError
	var netErr *apperr.NetworkError

	switch {
	case errors.As(err, &authErr):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.As(err, &netErr):
		return &apperr.AuthError{Reason: apperr.ReasonNetwork, Cause: err}
	}
	return err
}

func clone(sess *models.Session) *models.Session {
	if sess == nil {
		return nil
	}
	c := *sess
	if sess.User != nil {
		u := *sess.User
		c.User = &u
	}
	return &c
}
