package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/metrics"
	"github.com/mmynk/chama/internal/models"
	"github.com/mmynk/chama/pkg/logging"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithLogger(logging.Discard()), WithMetrics(metrics.Nop())}, opts...)
	return New(srv.URL, opts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestContribute_SendsAmountWithBearer(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("POST /contribute", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Contribution successful!"})
	})

	c := newTestClient(t, mux, WithTokenSource(func() string { return "tok-1" }))
	resp, err := c.Contribute(context.Background(), 500)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, map[string]any{"amount": float64(500)}, gotBody)
	assert.Equal(t, "Contribution successful!", resp.Message)
}

func TestRemoteError_MessageVerbatimAndNoRetry(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /contribute", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Insufficient funds"})
	})

	c := newTestClient(t, mux)
	_, err := c.Contribute(context.Background(), 500)

	var remoteErr *apperr.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusBadRequest, remoteErr.Status)
	assert.Equal(t, "Insufficient funds", remoteErr.Message)
	assert.Equal(t, "Insufficient funds", apperr.UserMessage(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestServerError_NotRetried(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /withdrawal/request", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	c := newTestClient(t, mux)
	_, err := c.RequestWithdrawal(context.Background(), 1000, "school fees")

	var remoteErr *apperr.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), remoteErr.Message)
	assert.Equal(t, int32(1), hits.Load())
}

func TestUnauthorized_RunsHookAndReturnsAuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /notifications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Token has expired"})
	})

	var invalidated atomic.Bool
	c := newTestClient(t, mux,
		WithTokenSource(func() string { return "stale" }),
		WithUnauthorizedHandler(func() { invalidated.Store(true) }),
	)

	_, err := c.Notifications(context.Background())

	var authErr *apperr.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, apperr.ReasonExpired, authErr.Reason)
	assert.True(t, invalidated.Load())
	assert.True(t, apperr.IsAuth(err))
}

func TestLogin_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantReason apperr.AuthReason
	}{
		{"wrong password", http.StatusUnauthorized, apperr.ReasonInvalidCredentials},
		{"unverified", http.StatusForbidden, apperr.ReasonUnverifiedAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
				assert.Empty(t, r.Header.Get("Authorization"))
				writeJSON(w, tt.status, map[string]string{"error": "nope"})
			})

			var invalidated atomic.Bool
			c := newTestClient(t, mux,
				WithTokenSource(func() string { return "old" }),
				WithUnauthorizedHandler(func() { invalidated.Store(true) }),
			)
			_, err := c.Login(context.Background(), "a@b.co", "pw")

			var authErr *apperr.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.wantReason, authErr.Reason)
			assert.Equal(t, "nope", authErr.Message)
			assert.False(t, invalidated.Load(), "login failures must not invalidate the session")
		})
	}
}

func TestLogin_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wanjiru@example.com", body["email"])
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "jwt",
			"user":         map[string]any{"id": 3, "name": "Wanjiru", "is_admin": true, "group_id": 9},
		})
	})

	c := newTestClient(t, mux)
	resp, err := c.Login(context.Background(), "wanjiru@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", resp.AccessToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, int64(3), resp.User.ID)
	assert.True(t, resp.User.IsAdmin)
	assert.Equal(t, int64(9), resp.User.GroupID)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithLogger(logging.Discard()))
	_, err := c.GetProfile(context.Background())

	var netErr *apperr.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestCanceledContext(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/profile", func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	c := newTestClient(t, mux)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetProfile(ctx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, apperr.KindCanceled, apperr.KindOf(err))
}

func TestAdminDashboard_AdaptsWithdrawals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/groups/7/admin_dashboard", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"group_id": 7,
			"group_name": "Umoja",
			"join_code": "X1Y2",
			"daily_contribution_amount": 50,
			"required_so_far": 900,
			"month": "October 2026",
			"members": [{"member_id": 1, "name": "Akinyi", "total_contributed": 900, "required_so_far": 900, "status": "met"}],
			"pending_loans": [{"loan_id": 4, "member_id": 1, "member_name": "Akinyi", "amount": 300, "date": "2026-10-01"}],
			"pending_withdrawals": [
				{"withdrawal_id": "12", "transaction_id": 30, "amount": "1500", "requested_by": "Akinyi", "approvals": 1, "rejections": 0, "date": "2026-10-02"},
				{"id": 13, "amount": 200, "reason": "fuel", "requested_by": "Baraka"}
			],
			"pending_join_requests": [{"id": 5, "user_id": 8, "user_name": "Chebet", "date": "2026-10-03"}]
		}`)
	})

	c := newTestClient(t, mux)
	snap, err := c.AdminDashboard(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, "Umoja", snap.GroupName)
	assert.Equal(t, "X1Y2", snap.JoinCode)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, "met", snap.Members[0].Status)
	require.Len(t, snap.PendingLoans, 1)
	assert.Equal(t, int64(4), snap.PendingLoans[0].ID)

	require.Len(t, snap.PendingWithdrawals, 2)
	w, ok := snap.Withdrawal(12)
	require.True(t, ok)
	assert.Equal(t, 1500.0, w.Amount)
	assert.Equal(t, int64(30), w.TransactionID)
	assert.Equal(t, 1, w.Approvals)

	w, ok = snap.Withdrawal(13)
	require.True(t, ok)
	assert.Equal(t, "fuel", w.Reason)

	require.Len(t, snap.PendingJoinRequests, 1)
	assert.Equal(t, "Chebet", snap.PendingJoinRequests[0].UserName)
}

func TestGroupWithdrawals_EmptyPlaceholder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /withdrawals/group", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No withdrawals found"})
	})

	c := newTestClient(t, mux)
	ws, err := c.GroupWithdrawals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestVoteAndCancel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /withdrawal/approve/12", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Vote recorded", "total_approvals": 2, "total_rejections": 0, "status": "pending",
		})
	})
	mux.HandleFunc("POST /withdrawal/reject/12", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "You have already voted"})
	})
	mux.HandleFunc("POST /withdrawals/12/cancel", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "cancelled", "amount": 1500, "requested_by": "Akinyi"})
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	vote, err := c.ApproveWithdrawal(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 2, vote.TotalApprovals)
	assert.Equal(t, "pending", vote.Status)

	_, err = c.RejectWithdrawal(ctx, 12)
	assert.Equal(t, "You have already voted", apperr.UserMessage(err))

	cancelResp, err := c.CancelWithdrawal(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, cancelResp.Amount)
	assert.Equal(t, "Akinyi", cancelResp.RequestedBy)
}

func TestLoanPolicy_NotFoundIsNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/groups/3/loan_policy", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No loan policy set"})
	})

	c := newTestClient(t, mux)
	policy, err := c.LoanPolicy(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, policy)
}

func TestCreateLoanPolicy_EchoesPolicy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/groups/3/loan_policy", func(w http.ResponseWriter, r *http.Request) {
		var p models.LoanPolicy
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		writeJSON(w, http.StatusCreated, p)
	})

	c := newTestClient(t, mux)
	policy, err := c.CreateLoanPolicy(context.Background(), 3, models.LoanPolicy{InterestRate: 10, Method: models.LoanMethodFlat})
	require.NoError(t, err)
	assert.Equal(t, 10.0, policy.InterestRate)
	assert.Equal(t, models.LoanMethodFlat, policy.Method)
}

func TestUploadProfilePhoto_Multipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /user/profile/photo", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		f, hdr, err := r.FormFile("photo")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "avatar.png", hdr.Filename)
		assert.Equal(t, "PNGDATA", string(data))
		writeJSON(w, http.StatusOK, map[string]string{"profile_photo": "https://cdn.example/avatar.png"})
	})

	c := newTestClient(t, mux)
	url, err := c.UploadProfilePhoto(context.Background(), "avatar.png", strings.NewReader("PNGDATA"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/avatar.png", url)
}

func TestMyLoans_Adapted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /loans/my", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"loans": [{"loan_id": 2, "principal": 1000, "interest_rate": 10, "interest_frequency": "monthly", "outstanding": "1100", "accrued_balance": 1105.5}]}`)
	})

	c := newTestClient(t, mux)
	loans, err := c.MyLoans(context.Background())
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, int64(2), loans[0].ID)
	assert.Equal(t, 1100.0, loans[0].Outstanding)
	assert.Equal(t, 1105.5, loans[0].AccruedBalance)
}

func TestAnnouncements_RoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /group/5/announcements", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "title": "AGM", "message": "Saturday 10am", "created_at": "2026-10-10"}})
	})
	mux.HandleFunc("POST /group/5/announcements", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AGM", body["title"])
		writeJSON(w, http.StatusCreated, map[string]string{"message": "Announcement created successfully"})
	})

	c := newTestClient(t, mux)
	list, err := c.Announcements(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Saturday 10am", list[0].Message)

	resp, err := c.PostAnnouncement(context.Background(), 5, "AGM", "Saturday 10am")
	require.NoError(t, err)
	assert.Equal(t, "Announcement created successfully", resp.Message)
}

func TestWithTimeout_LeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{}
	c := New("http://localhost", WithHTTPClient(shared), WithTimeout(3*time.Second))

	assert.Zero(t, shared.Timeout, "caller's client must not be modified")
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	assert.NotSame(t, shared, c.httpClient)

	d := New("http://localhost", WithTimeout(time.Second))
	assert.Equal(t, time.Second, d.httpClient.Timeout)
}
