package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/chama/internal/models"
)

type memUsers struct {
	mu       sync.Mutex
	accounts map[string]*Account
	nextID   int64
}

func (m *memUsers) CreateAccount(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accounts == nil {
		m.accounts = make(map[string]*Account)
	}
	m.nextID++
	a.ID = m.nextID
	m.accounts[a.Email] = a
	return nil
}

func (m *memUsers) GetAccountByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return a, nil
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.Generate(&models.User{ID: 42, IsAdmin: true, GroupID: 7})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID failed: %v", err)
	}
	if id != 42 {
		t.Errorf("user id: expected 42, got %d", id)
	}
	if !claims.IsAdmin || claims.GroupID != 7 {
		t.Errorf("claims: expected admin of group 7, got admin=%v group=%d", claims.IsAdmin, claims.GroupID)
	}
}

func TestJWTManager_RejectsForeignSecret(t *testing.T) {
	token, err := NewJWTManager("a", time.Hour).Generate(&models.User{ID: 1})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := NewJWTManager("b", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	token, err := NewJWTManager("s", -time.Minute).Generate(&models.User{ID: 5})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	info, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Subject != "5" {
		t.Errorf("subject: expected '5', got '%s'", info.Subject)
	}
	if !info.Expired(time.Now()) {
		t.Error("expected token to be expired")
	}

	if _, err := Inspect("opaque-token"); !errors.Is(err, ErrOpaqueToken) {
		t.Errorf("expected ErrOpaqueToken, got %v", err)
	}
	if _, err := Inspect(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()
	a := NewPasswordAuthenticator(&memUsers{})

	req := models.RegisterRequest{Name: "Wanjiru", Email: "w@example.com", Phone: "254700000001", Password: "supersecret"}
	account, err := a.Register(ctx, req)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if account.ID == 0 {
		t.Error("expected account id to be assigned")
	}

	if _, err := a.Register(ctx, req); !errors.Is(err, ErrEmailExists) {
		t.Errorf("duplicate register: expected ErrEmailExists, got %v", err)
	}

	weak := req
	weak.Email = "other@example.com"
	weak.Password = "short"
	if _, err := a.Register(ctx, weak); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("weak password: expected ErrWeakPassword, got %v", err)
	}

	if _, err := a.Authenticate(ctx, "w@example.com", "supersecret"); err != nil {
		t.Errorf("Authenticate failed: %v", err)
	}
	if _, err := a.Authenticate(ctx, "w@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
}
