// Package livesync keeps a view consistent with server state that other
// clients mutate concurrently.
//
// A Synchronizer fetches a full snapshot on start, re-fetches when one of its
// realtime events arrives, and replaces the snapshot wholesale on every
// successful fetch. Event bursts are coalesced by a trailing debounce window,
// every fetch carries a sequence token so that late responses from
// superseded fetches are dropped, and actions initiated locally may apply an
// optimistic Overlay until a snapshot fetched after the action lands.
package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmynk/chama/internal/metrics"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/realtime"
	"github.com/mmynk/chama/internal/storage"
)

// DefaultDebounce is the coalescing window for event-triggered re-fetches.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Mutate after Close.
var ErrClosed = errors.New("synchronizer closed")

// Events is the subset of a realtime channel a synchronizer listens to.
type Events interface {
	OnAny(fn realtime.Listener) (unsubscribe func())
	OnState(fn func(realtime.State)) (unsubscribe func())
}

// FetchFunc loads one full snapshot.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config describes one synchronized view.
type Config[T any] struct {
	// Name labels logs and metrics, e.g. "admin_dashboard".
	Name string

	// Fetch loads the snapshot. It must honor ctx cancellation.
	Fetch FetchFunc[T]

	// Events lists the realtime event names that invalidate the snapshot.
	Events []string

	// Channel delivers realtime events. Nil disables live updates.
	Channel Events

	// Debounce is the coalescing window. Defaults to DefaultDebounce.
	Debounce time.Duration

	// MaxWait bounds how long a continuous burst can postpone the re-fetch.
	// Defaults to five windows.
	MaxWait time.Duration

	// Cache, when set, receives every snapshot under CacheKey and serves the
	// last one if the backend cannot be reached on start.
	Cache    storage.SnapshotCache
	CacheKey string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Mutation is a locally initiated action.
type Mutation struct {
	// Run performs the backend call.
	Run func(ctx context.Context) error

	// Overlay entries are merged into the view when Run succeeds. Each stays
	// until a snapshot from a fetch issued after it lands.
	Overlay Overlay

	// Refetch requests an immediate re-fetch when Run succeeds.
	Refetch bool
}

// Synchronizer keeps a View[T] fresh. Create it with New and call Start.
type Synchronizer[T any] struct {
	cfg    Config[T]
	logger *slog.Logger

	mu       sync.Mutex
	view     View[T]
	rev      uint64
	seq      uint64
	// markedAt records the sequence token current when each overlay key was
	// applied.
	markedAt map[string]uint64
	inflight context.CancelFunc
	timer    *time.Timer
	burstAt  time.Time
	started  bool
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	unsub    []func()

	// notifyMu serializes subscriber callbacks and lets Close wait for the
	// one in progress.
	notifyMu  sync.Mutex
	published uint64
	isClosed  atomic.Bool
	subs      map[int]func(View[T])
	nextSub   int
}

// New creates a synchronizer. It does nothing until Start.
func New[T any](cfg Config[T]) *Synchronizer[T] {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 5 * cfg.Debounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CacheKey == "" {
		cfg.CacheKey = cfg.Name
	}

	return &Synchronizer[T]{
		cfg:    cfg,
		logger: cfg.Logger.With("view", cfg.Name),
		view:   View[T]{Live: cfg.Channel != nil},
		subs:   make(map[int]func(View[T])),
	}
}

// Start subscribes to the realtime events and issues the initial fetch. The
// view is Loading until it resolves. A failed initial fetch is not retried
// automatically.
func (s *Synchronizer[T]) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if ch := s.cfg.Channel; ch != nil {
		unsubEvents := ch.OnAny(func(ev models.Event) {
			if slices.Contains(s.cfg.Events, ev.Name) {
				s.Invalidate(ev.Name)
			}
		})
		unsubState := ch.OnState(s.onState)

		s.mu.Lock()
		s.unsub = append(s.unsub, unsubEvents, unsubState)
		closed := s.closed
		s.mu.Unlock()
		if closed {
			unsubEvents()
			unsubState()
			return
		}
	}

	s.Refresh()
}

// View returns the current state.
func (s *Synchronizer[T]) View() View[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.clone()
}

// Subscribe registers fn for every state change. fn runs on a background
// goroutine, one call at a time, and never after Close returns. It may call
// View; other methods must be called from another goroutine.
func (s *Synchronizer[T]) Subscribe(fn func(View[T])) (unsubscribe func()) {
	s.notifyMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.notifyMu.Unlock()

	return func() {
		s.notifyMu.Lock()
		delete(s.subs, id)
		s.notifyMu.Unlock()
	}
}

// Invalidate schedules a re-fetch after the debounce window. Calls arriving
// while one is scheduled push it back, up to MaxWait after the first.
func (s *Synchronizer[T]) Invalidate(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.started {
		return
	}

	now := time.Now()
	if s.timer != nil {
		s.cfg.Metrics.EventCoalesced(s.cfg.Name)
		wait := s.cfg.Debounce
		if deadline := s.burstAt.Add(s.cfg.MaxWait); now.Add(wait).After(deadline) {
			wait = max(deadline.Sub(now), 0)
		}
		s.timer.Reset(wait)
		return
	}

	s.logger.Debug("Re-fetch scheduled", "reason", reason)
	s.burstAt = now
	s.timer = time.AfterFunc(s.cfg.Debounce, s.Refresh)
}

// Refresh fetches immediately, superseding any scheduled or in-flight fetch.
func (s *Synchronizer[T]) Refresh() {
	s.mu.Lock()
	if s.closed || !s.started {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.inflight != nil {
		s.inflight()
	}

	s.seq++
	token := s.seq
	ctx, cancel := context.WithCancel(s.ctx)
	s.inflight = cancel
	s.view.Loading = true
	view, rev := s.bump()
	s.mu.Unlock()

	s.publish(view, rev)
	go s.fetch(ctx, cancel, token)
}

// Mutate runs m.Run and, on success, applies its overlay and optional
// re-fetch. On failure the view is left untouched and the error returned.
func (s *Synchronizer[T]) Mutate(ctx context.Context, m Mutation) error {
	if s.isClosed.Load() {
		return ErrClosed
	}
	if err := m.Run(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	var view View[T]
	var rev uint64
	if len(m.Overlay) > 0 {
		if s.view.Overlay == nil {
			s.view.Overlay = make(Overlay, len(m.Overlay))
		}
		if s.markedAt == nil {
			s.markedAt = make(map[string]uint64, len(m.Overlay))
		}
		for k, v := range m.Overlay {
			s.view.Overlay[k] = v
			s.markedAt[k] = s.seq
		}
		view, rev = s.bump()
	}
	s.mu.Unlock()

	if rev != 0 {
		s.publish(view, rev)
	}
	if m.Refetch {
		s.Refresh()
	}
	return nil
}

// Close cancels the scheduled and in-flight fetches and detaches from the
// realtime channel. No state change or subscriber callback happens after it
// returns. Close is idempotent.
func (s *Synchronizer[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.isClosed.Store(true)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}

	// Wait for a callback in progress.
	s.notifyMu.Lock()
	s.notifyMu.Unlock()
	s.logger.Debug("Synchronizer closed")
}

func (s *Synchronizer[T]) fetch(ctx context.Context, cancel context.CancelFunc, token uint64) {
	defer cancel()

	start := time.Now()
	snap, err := s.cfg.Fetch(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	if s.closed || token != s.seq {
		s.mu.Unlock()
		s.cfg.Metrics.StaleResponse(s.cfg.Name)
		s.logger.Debug("Discarded superseded fetch", "token", token)
		return
	}
	s.inflight = nil
	s.view.Loading = false

	if err != nil {
		s.view.Err = err
		loaded := s.view.Loaded
		view, rev := s.bump()
		s.mu.Unlock()

		s.cfg.Metrics.ObserveFetch(s.cfg.Name, "error", elapsed)
		s.logger.Warn("Fetch failed", "token", token, "loaded", loaded, "error", err)
		s.publish(view, rev)
		if !loaded {
			s.fallbackToCache(token)
		}
		return
	}

	s.view.Snapshot = snap
	s.view.Loaded = true
	s.view.Err = nil
	s.settleOverlay(token)
	s.view.Version = token
	s.view.FetchedAt = time.Now()
	s.view.Stale = false
	view, rev := s.bump()
	s.mu.Unlock()

	s.cfg.Metrics.ObserveFetch(s.cfg.Name, "ok", elapsed)
	s.publish(view, rev)
	s.persist(snap)
}

// settleOverlay drops the overlay entries a snapshot from fetch token
// supersedes. Entries applied while that fetch was in flight survive it,
// since its data may predate them. Callers hold mu.
func (s *Synchronizer[T]) settleOverlay(token uint64) {
	for k, at := range s.markedAt {
		if at < token {
			delete(s.view.Overlay, k)
			delete(s.markedAt, k)
		}
	}
	if len(s.view.Overlay) == 0 {
		s.view.Overlay = nil
	}
}

func (s *Synchronizer[T]) onState(state realtime.State) {
	switch state {
	case realtime.StateLost:
		s.setLive(false)
	case realtime.StateRestored:
		s.setLive(true)
		// Events missed while disconnected are unrecoverable.
		s.Refresh()
	}
}

func (s *Synchronizer[T]) setLive(live bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.view.Live = live
	view, rev := s.bump()
	s.mu.Unlock()
	s.publish(view, rev)
}

// bump records a state change and returns the view to publish. Callers hold mu.
func (s *Synchronizer[T]) bump() (View[T], uint64) {
	s.rev++
	return s.view.clone(), s.rev
}

func (s *Synchronizer[T]) publish(view View[T], rev uint64) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if s.isClosed.Load() || rev <= s.published {
		return
	}
	s.published = rev

	for _, fn := range s.subs {
		fn(view)
	}
}

func (s *Synchronizer[T]) persist(snap T) {
	if s.cfg.Cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("Failed to encode snapshot", "error", err)
		return
	}
	if err := s.cfg.Cache.PutSnapshot(s.ctx, s.cfg.CacheKey, data); err != nil {
		s.logger.Warn("Failed to cache snapshot", "error", err)
	}
}

// fallbackToCache shows the last cached snapshot when nothing was loaded yet.
// The fetch error stays set so the view reports it.
func (s *Synchronizer[T]) fallbackToCache(token uint64) {
	if s.cfg.Cache == nil {
		return
	}

	snap, fetchedAt, err := s.loadCached()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to read cached snapshot", "error", err)
		}
		return
	}

	s.mu.Lock()
	if s.closed || token != s.seq || s.view.Loaded {
		s.mu.Unlock()
		return
	}
	s.view.Snapshot = snap
	s.view.Loaded = true
	s.view.Stale = true
	s.view.FetchedAt = fetchedAt
	view, rev := s.bump()
	s.mu.Unlock()

	s.logger.Info("Showing cached snapshot", "fetched_at", fetchedAt)
	s.publish(view, rev)
}

func (s *Synchronizer[T]) loadCached() (T, time.Time, error) {
	var snap T
	data, fetchedAt, err := s.cfg.Cache.GetSnapshot(s.ctx, s.cfg.CacheKey)
	if err != nil {
		return snap, time.Time{}, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, time.Time{}, fmt.Errorf("failed to decode cached snapshot: %w", err)
	}
	return snap, fetchedAt, nil
}
