package devserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/config"
	"github.com/mmynk/chama/internal/gateway"
	"github.com/mmynk/chama/internal/guard"
	"github.com/mmynk/chama/internal/livesync"
	"github.com/mmynk/chama/internal/metrics"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/internal/pages"
	"github.com/mmynk/chama/internal/realtime"
	"github.com/mmynk/chama/internal/session"
	"github.com/mmynk/chama/internal/storage/memory"
	"github.com/mmynk/chama/pkg/logging"
)

func (h *harness) connect(t *testing.T, u *user, groupID int64) *realtime.Channel {
	t.Helper()
	ch, err := realtime.Connect(context.Background(), config.DeriveRealtimeURL(h.ts.URL), groupID, realtime.Options{
		Token:            u.Token,
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
		Logger:           logging.Discard(),
		Metrics:          metrics.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(ch.Disconnect)

	require.Eventually(t, func() bool { return h.srv.Hub().Clients(groupID) > 0 }, 2*time.Second, 5*time.Millisecond)
	return ch
}

func memberTotal(v livesync.View[models.GroupSnapshot], memberID int64) float64 {
	for _, m := range v.Snapshot.Members {
		if m.ID == memberID {
			return m.TotalContributed
		}
	}
	return -1
}

func TestLiveAdminDashboard_FollowsMemberActivity(t *testing.T) {
	h := setupTestServer(t)
	ctx := context.Background()
	admin := h.signup(t, "Akinyi", "akinyi@example.com")
	member := h.signup(t, "Baraka", "baraka@example.com")
	groupID := h.group(t, admin, member)

	p := pages.NewAdminDashboard(admin.Client, groupID, pages.Options{
		Channel:  h.connect(t, admin, groupID),
		Cache:    memory.New(time.Minute),
		Debounce: 20 * time.Millisecond,
		Logger:   logging.Discard(),
		Metrics:  metrics.Nop(),
	})
	p.Start(ctx)
	defer p.Close()

	require.Eventually(t, func() bool { return p.View().Loaded }, 2*time.Second, 5*time.Millisecond)
	v := p.View()
	assert.True(t, v.Live)
	assert.Equal(t, 0.0, memberTotal(v, member.ID))

	_, err := member.Contribute(ctx, 500)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return memberTotal(p.View(), member.ID) == 500 }, 2*time.Second, 10*time.Millisecond)

	req, err := member.RequestWithdrawal(ctx, 100, "Medical bill")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap := p.View().Snapshot
		_, ok := snap.Withdrawal(req.WithdrawalID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	vote, err := p.VoteWithdrawal(ctx, req.WithdrawalID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, vote.TotalApprovals)

	// Two of two members approved, so the withdrawal leaves the list once
	// the broadcast lands.
	_, err = member.ApproveWithdrawal(ctx, req.WithdrawalID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v := p.View()
		_, pending := v.Snapshot.Withdrawal(req.WithdrawalID)
		return !pending && !v.Overlay.Has(pages.VoteKey(req.WithdrawalID))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLiveAdminDashboard_RecoversAfterDrop(t *testing.T) {
	h := setupTestServer(t)
	ctx := context.Background()
	admin := h.signup(t, "Akinyi", "akinyi@example.com")
	member := h.signup(t, "Baraka", "baraka@example.com")
	groupID := h.group(t, admin, member)

	ch := h.connect(t, admin, groupID)
	states := make(chan realtime.State, 8)
	ch.OnState(func(s realtime.State) {
		select {
		case states <- s:
		default:
		}
	})

	p := pages.NewAdminDashboard(admin.Client, groupID, pages.Options{
		Channel:  ch,
		Debounce: 20 * time.Millisecond,
		Logger:   logging.Discard(),
	})
	p.Start(ctx)
	defer p.Close()
	require.Eventually(t, func() bool { return p.View().Loaded }, 2*time.Second, 5*time.Millisecond)

	h.srv.Hub().DropAll()
	_, err := member.Contribute(ctx, 250)
	require.NoError(t, err)

	waitState := func(want realtime.State) {
		t.Helper()
		for {
			select {
			case s := <-states:
				if s == want {
					return
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for %s", want)
			}
		}
	}
	waitState(realtime.StateLost)
	waitState(realtime.StateRestored)

	require.Eventually(t, func() bool {
		v := p.View()
		return v.Live && memberTotal(v, member.ID) == 250
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return h.srv.Hub().Clients(groupID) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveMemberDashboard(t *testing.T) {
	h := setupTestServer(t)
	ctx := context.Background()
	admin := h.signup(t, "Akinyi", "akinyi@example.com")
	member := h.signup(t, "Baraka", "baraka@example.com")
	groupID := h.group(t, admin, member)

	p := pages.NewMemberDashboard(member.Client, groupID, pages.Options{
		Channel:  h.connect(t, member, groupID),
		Debounce: 20 * time.Millisecond,
		Logger:   logging.Discard(),
	})
	p.Start(ctx)
	defer p.Close()
	require.Eventually(t, func() bool { return p.View().Loaded }, 2*time.Second, 5*time.Millisecond)

	_, err := admin.PostAnnouncement(ctx, groupID, "AGM", "Saturday")
	require.NoError(t, err)
	_, err = admin.Contribute(ctx, 1000)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v := p.View()
		return len(v.Snapshot.Announcements) == 1 && v.Snapshot.Summary.GroupTotalContributions == 1000
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_InvalidatedOnRevokedToken(t *testing.T) {
	h := setupTestServer(t)
	ctx := context.Background()

	var st *session.Store
	gw := gateway.New(h.ts.URL,
		gateway.WithTokenSource(func() string { return st.Token() }),
		gateway.WithUnauthorizedHandler(func() { st.Invalidate() }),
		gateway.WithLogger(logging.Discard()),
	)
	st = session.New(memory.New(time.Minute), gw, session.WithLogger(logging.Discard()))

	resp, sess, err := st.Register(ctx, models.RegisterRequest{Name: "Akinyi", Email: "akinyi@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, "User registered successfully.", resp.Message)

	sess, err = st.Login(ctx, "akinyi@example.com", testPassword)
	require.NoError(t, err)
	assert.Positive(t, sess.ExpiresAt)
	assert.True(t, guard.Resolve("/dashboard", st.Current()).Allowed)
	assert.Equal(t, guard.DashboardPath, guard.Resolve("/admin", st.Current()).Redirect)

	_, err = gw.CreateGroup(ctx, "Umoja")
	require.NoError(t, err)
	profile, err := gw.GetProfile(ctx)
	require.NoError(t, err)
	require.NoError(t, st.UpdateUser(ctx, profile))
	assert.True(t, guard.Resolve("/admin", st.Current()).Allowed)

	h.srv.State().Revoke(st.Token())
	_, err = gw.GetProfile(ctx)
	assert.True(t, apperr.IsAuth(err))
	assert.Nil(t, st.Current())
	assert.Equal(t, guard.LoginPath, guard.Resolve("/dashboard", st.Current()).Redirect)
}
