package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/chama/internal/config"
	"github.com/mmynk/chama/internal/gateway"
	"github.com/mmynk/chama/internal/guard"
	"github.com/mmynk/chama/internal/metrics"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/session"
	"github.com/mmynk/chama/internal/storage"
	"github.com/mmynk/chama/internal/storage/memory"
	"github.com/mmynk/chama/internal/storage/sqlite"
	"github.com/mmynk/chama/pkg/logging"
)

// snapshotTTL bounds cached snapshots when no database is configured.
const snapshotTTL = 24 * time.Hour

var (
	ErrNotLoggedIn = errors.New("not logged in, run `chama login` first")
	ErrAdminOnly   = errors.New("only the group admin can do this")
	ErrNoGroup     = errors.New("you are not in a group yet, create or join one first")
)

// app holds the wired client for one command invocation.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   storage.Store
	api     *gateway.Client
	session *session.Store

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	logFile *os.File
}

// newApp loads the configuration and wires the client. Logs go to logOut,
// or to LogFile when logOut is nil.
func newApp(ctx context.Context, cfgPath string, debug bool, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, metrics: metrics.Nop()}
	if logOut == nil {
		a.logFile, err = os.OpenFile(LogFile(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logOut = a.logFile
	}

	level := logging.LevelFromString(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	logger := logging.New(logOut, level)
	a.logger = logger
	if cfg.MetricsAddr != "" {
		a.registry, a.metrics = metrics.NewRegistry()
	}

	a.store, err = openStore(cfg)
	if err != nil {
		a.closeLog()
		return nil, err
	}

	a.session = session.New(a.store, nil, session.WithLogger(logger))
	a.api = gateway.New(cfg.BaseURL,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithTokenSource(a.session.Token),
		gateway.WithUnauthorizedHandler(a.session.Invalidate),
		gateway.WithMetrics(a.metrics),
		gateway.WithLogger(logger),
	)
	a.session.SetAPI(a.api)

	if err := a.session.Restore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func openStore(cfg config.Config) (storage.Store, error) {
	if cfg.DBPath == "" {
		return memory.New(snapshotTTL), nil
	}

	sealer, err := storage.NewSealer(cfg.SessionKey)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.DBPath, sqlite.WithSealer(sealer))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.DBPath, err)
	}
	return store, nil
}

// LogFile is where commands that take over the terminal write their logs.
func LogFile() string {
	return filepath.Join(os.TempDir(), "chama.log")
}

func (a *app) Close() error {
	defer a.closeLog()
	return a.store.Close()
}

func (a *app) closeLog() {
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// authorize resolves the screen path behind a command for the current
// session.
func (a *app) authorize(path string) (*models.Session, error) {
	sess := a.session.Current()
	d := guard.Resolve(path, sess)
	switch {
	case d.Allowed:
		return sess, nil
	case d.Redirect == guard.LoginPath:
		return nil, ErrNotLoggedIn
	default:
		return nil, ErrAdminOnly
	}
}

// refreshProfile pulls the profile so that group membership and admin
// status changed on the server are reflected in the session.
func (a *app) refreshProfile(ctx context.Context) (*models.Session, error) {
	user, err := a.api.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if err := a.session.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	sess := a.session.Current()
	if sess == nil {
		return nil, ErrNotLoggedIn
	}
	return sess, nil
}

// groupOf returns the session's group, refreshing the profile when the
// session predates joining one.
func (a *app) groupOf(ctx context.Context, sess *models.Session) (*models.Session, error) {
	if sess.GroupID != 0 {
		return sess, nil
	}
	sess, err := a.refreshProfile(ctx)
	if err != nil {
		return nil, err
	}
	if sess.GroupID == 0 {
		return nil, ErrNoGroup
	}
	return sess, nil
}
