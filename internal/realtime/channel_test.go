package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/mmynk/chama/internal/metrics"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/pkg/logging"
)

type roomServer struct {
	srv   *httptest.Server
	joins chan models.Event
	conns chan *websocket.Conn
	auth  chan string
}

func newRoomServer(t *testing.T) *roomServer {
	t.Helper()
	rs := &roomServer{
		joins: make(chan models.Event, 8),
		conns: make(chan *websocket.Conn, 8),
		auth:  make(chan string, 8),
	}
	rs.srv = httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		rs.auth <- ws.Request().Header.Get("Authorization")

		var join models.Event
		if err := websocket.JSON.Receive(ws, &join); err != nil {
			return
		}
		rs.joins <- join
		rs.conns <- ws

		for {
			var ev models.Event
			if err := websocket.JSON.Receive(ws, &ev); err != nil {
				return
			}
		}
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *roomServer) endpoint() string {
	return "ws" + strings.TrimPrefix(rs.srv.URL, "http")
}

func (rs *roomServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-rs.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func testOptions() Options {
	return Options{
		Token:            func() string { return "tok" },
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
		Logger:           logging.Discard(),
		Metrics:          metrics.Nop(),
	}
}

func TestConnect_JoinsGroupRoom(t *testing.T) {
	rs := newRoomServer(t)

	ch, err := Connect(context.Background(), rs.endpoint(), 42, testOptions())
	require.NoError(t, err)
	defer ch.Disconnect()

	assert.Equal(t, "Bearer tok", <-rs.auth)
	join := <-rs.joins
	assert.Equal(t, models.EventJoinGroup, join.Name)
	assert.Equal(t, int64(42), join.GroupID)
	assert.JSONEq(t, `{"group_id": 42}`, string(join.Data))
}

func TestOn_DispatchesByName(t *testing.T) {
	rs := newRoomServer(t)
	ch, err := Connect(context.Background(), rs.endpoint(), 1, testOptions())
	require.NoError(t, err)
	defer ch.Disconnect()
	server := rs.nextConn(t)

	withdrawals := make(chan models.Event, 4)
	everything := make(chan models.Event, 4)
	ch.On(models.EventWithdrawalCreated, func(ev models.Event) { withdrawals <- ev })
	ch.OnAny(func(ev models.Event) { everything <- ev })

	require.NoError(t, websocket.JSON.Send(server, models.Event{Name: models.EventContributionMade}))
	require.NoError(t, websocket.JSON.Send(server, models.Event{Name: models.EventWithdrawalCreated, Data: []byte(`{"id":7}`)}))

	select {
	case ev := <-withdrawals:
		assert.Equal(t, int64(1), ev.GroupID)
		assert.JSONEq(t, `{"id":7}`, string(ev.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("withdrawal listener not called")
	}

	var names []string
	for range 2 {
		select {
		case ev := <-everything:
			names = append(names, ev.Name)
		case <-time.After(2 * time.Second):
			t.Fatal("any listener not called")
		}
	}
	assert.ElementsMatch(t, []string{models.EventContributionMade, models.EventWithdrawalCreated}, names)
}

func TestUnsubscribe(t *testing.T) {
	rs := newRoomServer(t)
	ch, err := Connect(context.Background(), rs.endpoint(), 1, testOptions())
	require.NoError(t, err)
	defer ch.Disconnect()
	server := rs.nextConn(t)

	var removed atomic.Int32
	kept := make(chan struct{}, 1)
	unsubscribe := ch.On(models.EventLoanApproved, func(models.Event) { removed.Add(1) })
	ch.On(models.EventLoanApproved, func(models.Event) { kept <- struct{}{} })
	unsubscribe()

	require.NoError(t, websocket.JSON.Send(server, models.Event{Name: models.EventLoanApproved}))

	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		t.Fatal("remaining listener not called")
	}
	assert.Zero(t, removed.Load())
}

func TestDisconnect_StopsDispatch(t *testing.T) {
	rs := newRoomServer(t)
	ch, err := Connect(context.Background(), rs.endpoint(), 1, testOptions())
	require.NoError(t, err)
	server := rs.nextConn(t)

	var calls atomic.Int32
	ch.OnAny(func(models.Event) { calls.Add(1) })

	ch.Disconnect()
	ch.Disconnect()

	select {
	case <-ch.Done():
	default:
		t.Fatal("channel not done after Disconnect")
	}

	_ = websocket.JSON.Send(server, models.Event{Name: models.EventContributionMade})
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestReconnect_RejoinsAndReportsState(t *testing.T) {
	rs := newRoomServer(t)
	ch, err := Connect(context.Background(), rs.endpoint(), 9, testOptions())
	require.NoError(t, err)
	defer ch.Disconnect()

	first := rs.nextConn(t)
	<-rs.joins

	var mu sync.Mutex
	var states []State
	restored := make(chan struct{}, 1)
	ch.OnState(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
		if s == StateRestored {
			restored <- struct{}{}
		}
	})

	require.NoError(t, first.Close())

	select {
	case <-restored:
	case <-time.After(3 * time.Second):
		t.Fatal("channel did not reconnect")
	}

	join := <-rs.joins
	assert.Equal(t, models.EventJoinGroup, join.Name)
	assert.Equal(t, int64(9), join.GroupID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateLost, StateRestored}, states)
}

func TestConnect_FailsFast(t *testing.T) {
	_, err := Connect(context.Background(), "ws://127.0.0.1:1/realtime", 1, testOptions())
	assert.Error(t, err)
}

func TestConnect_ContextCancelDisconnects(t *testing.T) {
	rs := newRoomServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := Connect(ctx, rs.endpoint(), 1, testOptions())
	require.NoError(t, err)
	cancel()

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel still running after context cancel")
	}
}
