// Package realtime maintains the push subscription to a group's event room.
//
// A Channel dials the backend's WebSocket endpoint, announces the group with
// a join_group frame and dispatches every `{"event": ..., "data": ...}` frame
// to the registered listeners. Events are invalidation hints: listeners are
// expected to re-fetch, never to patch state from the payload.
//
// When the socket drops the channel reports StateLost, reconnects with
// exponential backoff, re-joins the room and reports StateRestored. Events
// emitted while disconnected are lost; listeners should re-fetch on restore.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/net/websocket"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/metrics"
	"github.com/mmynk/chama/internal/models"
)

// ErrClosed is returned by operations on a disconnected channel.
var ErrClosed = errors.New("realtime channel closed")

// State is the connection state reported to OnState listeners.
type State int

const (
	StateConnected State = iota
	StateLost
	StateRestored
	StateClosed
)

// String returns the pseudo-event name of the state.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateLost:
		return "connection_lost"
	case StateRestored:
		return "connection_restored"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Listener receives an event. Listeners run on the channel's reader
// goroutine and must not block.
type Listener func(models.Event)

// Options configures Connect.
type Options struct {
	// Token returns the bearer credential for each (re)connect.
	Token func() string

	// Origin is sent in the handshake. Defaults to the endpoint's http origin.
	Origin string

	// ReconnectInitial and ReconnectMax bound the reconnect backoff.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Channel is a live subscription to one group's events.
type Channel struct {
	endpoint string
	groupID  int64
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	conn      *websocket.Conn
	listeners map[string]map[int]Listener
	any       map[int]Listener
	states    map[int]func(State)
	nextID    int

	// dispatchMu is held for reading while listeners run and for writing by
	// Disconnect, so no listener runs after Disconnect returns.
	dispatchMu sync.RWMutex
	closed     bool

	cancel context.CancelFunc
	done   chan struct{}
}

// Connect dials endpoint and joins the room of groupID. The first dial is
// synchronous; later drops are retried in the background until Disconnect or
// until ctx is canceled.
func Connect(ctx context.Context, endpoint string, groupID int64, opts Options) (*Channel, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 500 * time.Millisecond
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30 * time.Second
	}

	c := &Channel{
		endpoint:  endpoint,
		groupID:   groupID,
		opts:      opts,
		logger:    opts.Logger.With("group_id", groupID),
		metrics:   opts.Metrics,
		listeners: make(map[string]map[int]Listener),
		any:       make(map[int]Listener),
		states:    make(map[int]func(State)),
		done:      make(chan struct{}),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect realtime channel: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.setConn(conn)
	c.metrics.SetRealtimeConnected(true)
	c.logger.Info("Realtime channel connected", "endpoint", endpoint)

	go func() {
		select {
		case <-ctx.Done():
			c.Disconnect()
		case <-c.done:
		}
	}()
	go c.run(runCtx, conn)

	return c, nil
}

// GroupID returns the joined group.
func (c *Channel) GroupID() int64 {
	return c.groupID
}

// On registers fn for events named event. Multiple listeners per event are
// allowed; their relative order is unspecified.
func (c *Channel) On(event string, fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	if c.listeners[event] == nil {
		c.listeners[event] = make(map[int]Listener)
	}
	c.listeners[event][id] = fn

	return func() {
		c.mu.Lock()
		delete(c.listeners[event], id)
		c.mu.Unlock()
	}
}

// OnAny registers fn for every event.
func (c *Channel) OnAny(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.any[id] = fn

	return func() {
		c.mu.Lock()
		delete(c.any, id)
		c.mu.Unlock()
	}
}

// OnState registers fn for connection state changes.
func (c *Channel) OnState(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.states[id] = fn

	return func() {
		c.mu.Lock()
		delete(c.states, id)
		c.mu.Unlock()
	}
}

// Disconnect closes the subscription. It is idempotent, and once it returns
// no listener runs again. It must not be called from a listener.
func (c *Channel) Disconnect() {
	c.dispatchMu.Lock()
	if c.closed {
		c.dispatchMu.Unlock()
		return
	}
	c.closed = true
	c.dispatchMu.Unlock()

	c.cancel()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = websocket.JSON.Send(conn, c.frame(models.EventLeaveGroup))
		_ = conn.Close()
	}

	<-c.done
	c.metrics.SetRealtimeConnected(false)
	c.logger.Info("Realtime channel disconnected")
}

// Done is closed once the channel has shut down.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) run(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.ReconnectInitial
	bo.MaxInterval = c.opts.ReconnectMax
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2

	for {
		err := c.readLoop(conn)
		if ctx.Err() != nil || c.isClosed() {
			return
		}

		c.logger.Warn("Realtime channel lost", "error", err)
		c.metrics.SetRealtimeConnected(false)
		c.emitState(StateLost)

		conn = c.reconnect(ctx, bo)
		if conn == nil {
			return
		}
		bo.Reset()
		c.metrics.SetRealtimeConnected(true)
		c.logger.Info("Realtime channel restored")
		c.emitState(StateRestored)
	}
}

func (c *Channel) reconnect(ctx context.Context, bo *backoff.ExponentialBackOff) *websocket.Conn {
	for {
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = c.opts.ReconnectMax
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		c.metrics.RealtimeReconnect()
		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Debug("Realtime reconnect failed", "error", err, "retry_in", wait)
			continue
		}

		// Disconnect cancels ctx before it takes the connection under mu.
		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		c.conn = conn
		c.mu.Unlock()
		return conn
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) error {
	for {
		var ev models.Event
		if err := websocket.JSON.Receive(conn, &ev); err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrRealtimeDisconnected, err)
		}
		if ev.Name == "" || ev.Name == models.EventJoined {
			continue
		}
		if ev.GroupID == 0 {
			ev.GroupID = c.groupID
		}
		c.metrics.RealtimeEvent(ev.Name)
		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev models.Event) {
	c.dispatchMu.RLock()
	defer c.dispatchMu.RUnlock()
	if c.closed {
		return
	}

	c.mu.Lock()
	fns := make([]Listener, 0, len(c.listeners[ev.Name])+len(c.any))
	for _, fn := range c.listeners[ev.Name] {
		fns = append(fns, fn)
	}
	for _, fn := range c.any {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Channel) emitState(s State) {
	c.dispatchMu.RLock()
	defer c.dispatchMu.RUnlock()
	if c.closed {
		return
	}

	c.mu.Lock()
	fns := make([]func(State), 0, len(c.states))
	for _, fn := range c.states {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	origin := c.opts.Origin
	if origin == "" {
		origin = httpOrigin(c.endpoint)
	}

	cfg, err := websocket.NewConfig(c.endpoint, origin)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime endpoint %q: %w", c.endpoint, err)
	}
	cfg.Header = http.Header{}
	if c.opts.Token != nil {
		if token := c.opts.Token(); token != "" {
			cfg.Header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := websocket.JSON.Send(conn, c.frame(models.EventJoinGroup)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to join group room: %w", err)
	}
	return conn, nil
}

func (c *Channel) frame(name string) models.Event {
	data, _ := json.Marshal(map[string]int64{"group_id": c.groupID})
	return models.Event{Name: name, GroupID: c.groupID, Data: data}
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) isClosed() bool {
	c.dispatchMu.RLock()
	defer c.dispatchMu.RUnlock()
	return c.closed
}

// httpOrigin maps ws(s)://host/path to http(s)://host.
func httpOrigin(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "http://localhost/"
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host + "/"
}
