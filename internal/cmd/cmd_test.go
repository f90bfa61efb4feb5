package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/mmynk/chama/internal/devserver"
	"github.com/mmynk/chama/pkg/logging"
)

// TestRootSubcommands tests that every top-level command is registered
func TestRootSubcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{
		"login", "logout", "register", "whoami", "group", "contribute", "borrow", "repay",
		"summary", "loans", "transactions", "withdrawal", "admin", "notifications", "dashboard", "route",
	}
	for _, name := range want {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("command %q not found", name)
		}
	}
}

func findCmd(t *testing.T, path ...string) *cobra.Command {
	t.Helper()
	c, _, err := NewRootCmd().Find(path)
	if err != nil {
		t.Fatalf("command %v not found: %v", path, err)
	}
	return c
}

// TestFlags tests that commands expose the flags their help text promises
func TestFlags(t *testing.T) {
	tests := []struct {
		path []string
		flag string
	}{
		{[]string{"login"}, "email"},
		{[]string{"login"}, "google-token"},
		{[]string{"register"}, "phone"},
		{[]string{"withdrawal", "request"}, "reason"},
		{[]string{"admin", "loan-policy"}, "rate"},
		{[]string{"admin", "loan-policy"}, "method"},
		{[]string{"dashboard"}, "member"},
		{[]string{"dashboard"}, "offline"},
		{[]string{"group", "join"}, "id"},
		{[]string{"route"}, "all"},
	}
	for _, tt := range tests {
		c := findCmd(t, tt.path...)
		if c.Flags().Lookup(tt.flag) == nil {
			t.Errorf("flag %q not found on %v", tt.flag, tt.path)
		}
	}
	if NewRootCmd().PersistentFlags().Lookup("config") == nil {
		t.Error("persistent flag 'config' not found")
	}
}

// TestWithdrawAlias tests that "withdraw" resolves to the withdrawal command
func TestWithdrawAlias(t *testing.T) {
	if c := findCmd(t, "withdraw", "request"); c.Name() != "request" {
		t.Errorf("expected withdraw request to resolve, got %q", c.Name())
	}
}

type cli struct {
	t *testing.T
}

// newCLI points the client at a fresh development backend with a persistent
// local database shared by every invocation.
func newCLI(t *testing.T) *cli {
	t.Helper()
	srv := devserver.New(devserver.Options{Secret: "test-secret", Logger: logging.Discard()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	t.Setenv("CHAMA_BASE_URL", ts.URL)
	t.Setenv("CHAMA_DB_PATH", filepath.Join(t.TempDir(), "state.db"))
	t.Setenv("CHAMA_SESSION_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
	return &cli{t: t}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("chama %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestCLI_SessionLifecycle(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("register", "--name", "Akinyi", "--email", "akinyi@example.com", "--phone", "254700000001", "--password", "password123")
	if !strings.Contains(out, "User registered successfully.") {
		t.Errorf("register output = %q", out)
	}

	out = c.mustRun("route", "/admin/dashboard", "/login")
	if !strings.Contains(out, "redirects to /login") {
		t.Errorf("anonymous route output = %q, want a login redirect", out)
	}

	if _, err := c.run("contribute", "100"); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("contribute before login: expected ErrNotLoggedIn, got %v", err)
	}

	if _, err := c.run("login", "--email", "akinyi@example.com", "--password", "wrong-password"); err == nil {
		t.Error("expected login with a wrong password to fail")
	} else if got := Message(err); got != "Invalid credentials" {
		t.Errorf("Message() = %q, want %q", got, "Invalid credentials")
	}

	out = c.mustRun("login", "--email", "akinyi@example.com", "--password", "password123")
	if !strings.Contains(out, "Logged in as Akinyi") {
		t.Errorf("login output = %q", out)
	}

	out = c.mustRun("whoami")
	if !strings.Contains(out, "Group:  none") {
		t.Errorf("whoami before joining = %q", out)
	}

	out = c.mustRun("logout")
	if !strings.Contains(out, "Logged out.") {
		t.Errorf("logout output = %q", out)
	}
	if _, err := c.run("whoami"); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("whoami after logout: expected ErrNotLoggedIn, got %v", err)
	}
}

func TestCLI_GroupAndFinance(t *testing.T) {
	c := newCLI(t)
	c.mustRun("register", "--name", "Akinyi", "--email", "akinyi@example.com", "--phone", "254700000001", "--password", "password123")
	c.mustRun("login", "--email", "akinyi@example.com", "--password", "password123")

	if _, err := c.run("contribute", "100"); !errors.Is(err, ErrNoGroup) {
		t.Errorf("contribute outside a group: expected ErrNoGroup, got %v", err)
	}

	out := c.mustRun("group", "create", "Umoja")
	if !strings.Contains(out, "Group created successfully") {
		t.Errorf("group create output = %q", out)
	}

	out = c.mustRun("whoami")
	if !strings.Contains(out, "Role:   admin") {
		t.Errorf("whoami after creating a group = %q", out)
	}

	out = c.mustRun("route", "/admin/dashboard")
	if !strings.Contains(out, "renders") {
		t.Errorf("admin route output = %q", out)
	}

	c.mustRun("admin", "daily-amount", "100")

	out = c.mustRun("contribute", "250")
	if !strings.Contains(out, "Contribution successful!") {
		t.Errorf("contribute output = %q", out)
	}

	_, err := c.run("contribute", "abc")
	if err == nil {
		t.Fatal("expected an invalid amount to fail")
	}
	if Message(err) == "" || strings.Contains(Message(err), "Something went wrong") {
		t.Errorf("Message() = %q, want the validation text", Message(err))
	}

	out = c.mustRun("summary")
	if !strings.Contains(out, "Umoja") || !strings.Contains(out, "250.00") {
		t.Errorf("summary output = %q", out)
	}

	out = c.mustRun("transactions")
	if !strings.Contains(out, "+250.00") {
		t.Errorf("transactions output = %q", out)
	}

	out = c.mustRun("admin", "loan-policy")
	if !strings.Contains(out, "No loan policy set.") {
		t.Errorf("loan-policy output = %q", out)
	}
	c.mustRun("admin", "loan-policy", "--rate", "10", "--method", "reducing")
	out = c.mustRun("admin", "loan-policy")
	if !strings.Contains(out, "reducing") {
		t.Errorf("loan-policy after saving = %q", out)
	}

	out = c.mustRun("withdrawal", "request", "50", "--reason", "Stationery")
	if !strings.Contains(out, "Withdrawal id:") {
		t.Errorf("withdrawal request output = %q", out)
	}
	out = c.mustRun("withdrawal", "list")
	if !strings.Contains(out, "Stationery") {
		t.Errorf("withdrawal list output = %q", out)
	}
}

func TestMessage(t *testing.T) {
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}
	if got := Message(ErrAdminOnly); got != ErrAdminOnly.Error() {
		t.Errorf("Message(ErrAdminOnly) = %q", got)
	}
	be := &bannerError{text: "Contribution failed", err: errors.New("boom")}
	if got := Message(be); got != "Contribution failed" {
		t.Errorf("Message(banner) = %q", got)
	}
}
