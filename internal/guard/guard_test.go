package guard

import (
	"testing"

	"github.com/mmynk/chama/internal/models"
)

func TestResolve(t *testing.T) {
	member := &models.Session{Token: "t", UserID: 1}
	admin := &models.Session{Token: "t", UserID: 2, IsAdmin: true}

	tests := []struct {
		name         string
		path         string
		sess         *models.Session
		wantAllowed  bool
		wantRedirect string
	}{
		{"anonymous public", "/login", nil, true, ""},
		{"anonymous landing", "/", nil, true, ""},
		{"anonymous protected", "/dashboard", nil, false, LoginPath},
		{"anonymous admin", "/admin", nil, false, LoginPath},
		{"anonymous unknown", "/somewhere", nil, false, LoginPath},
		{"empty token is anonymous", "/dashboard", &models.Session{UserID: 1}, false, LoginPath},
		{"member protected", "/contribute", member, true, ""},
		{"member admin", "/admin/dashboard", member, false, DashboardPath},
		{"member admin subpath", "/admin/withdrawals", member, false, DashboardPath},
		{"admin admin", "/admin/dashboard", admin, true, ""},
		{"admin protected", "/notifications", admin, true, ""},
		{"query and trailing slash", "/admin/?tab=loans", member, false, DashboardPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Resolve(tt.path, tt.sess)
			if d.Allowed != tt.wantAllowed {
				t.Errorf("allowed: expected %v, got %v", tt.wantAllowed, d.Allowed)
			}
			if d.Redirect != tt.wantRedirect {
				t.Errorf("redirect: expected %q, got %q", tt.wantRedirect, d.Redirect)
			}
		})
	}
}

func TestStateOf(t *testing.T) {
	if got := StateOf(nil); got != Anonymous {
		t.Errorf("nil session: expected %v, got %v", Anonymous, got)
	}
	if got := StateOf(&models.Session{Token: "t"}); got != AuthenticatedNonAdmin {
		t.Errorf("member: expected %v, got %v", AuthenticatedNonAdmin, got)
	}
	if got := StateOf(&models.Session{Token: "t", IsAdmin: true}); got != AuthenticatedAdmin {
		t.Errorf("admin: expected %v, got %v", AuthenticatedAdmin, got)
	}
}
