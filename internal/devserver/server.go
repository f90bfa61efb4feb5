// Package devserver is an in-process development backend speaking the same
// JSON REST and WebSocket contract as the production chama API.
//
// It keeps everything in memory and implements only the bookkeeping the
// client needs to be exercised end to end: accounts with bcrypt passwords
// and JWTs, groups with join requests, contributions, loans with admin
// approval, voted withdrawals, announcements and notifications. Every
// mutation is broadcast to the group's realtime room.
package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/mmynk/chama/internal/auth"
	"github.com/mmynk/chama/internal/middleware"
)

// Options configures a Server.
type Options struct {
	// Secret signs the issued JWTs.
	Secret string

	// TokenTTL is the lifetime of issued tokens. Defaults to 24h.
	TokenTTL time.Duration

	Logger *slog.Logger
}

// Server is the development backend.
type Server struct {
	state  *State
	jwt    *auth.JWTManager
	authn  auth.Authenticator
	hub    *Hub
	logger *slog.Logger
	router *mux.Router
}

// event is a realtime broadcast queued by a handler.
type event struct {
	groupID int64
	name    string
	data    any
}

// New creates a server with an empty state.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Secret == "" {
		opts.Secret = "chama-dev-secret"
	}

	state := NewState()
	s := &Server{
		state:  state,
		jwt:    auth.NewJWTManager(opts.Secret, opts.TokenTTL),
		authn:  auth.NewPasswordAuthenticator(state),
		hub:    NewHub(opts.Logger, state.IsMember),
		logger: opts.Logger,
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler with request logging.
func (s *Server) Handler() http.Handler {
	return middleware.Logging(s.logger)(s.router)
}

// Hub exposes the realtime hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// State exposes the database.
func (s *Server) State() *State {
	return s.state
}

// JWT exposes the token manager.
func (s *Server) JWT() *auth.JWTManager {
	return s.jwt
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, errorf(http.StatusNotFound, "Not found"))
	})

	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/google", s.handleGoogleLogin).Methods(http.MethodPost)

	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.RequireAuth(s.jwt), s.rejectRevoked)

	api.Handle("/realtime", s.hub.Handler()).Methods(http.MethodGet)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	api.HandleFunc("/user/profile", s.handleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/user/profile", s.handleUpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/user/delete", s.handleDeleteAccount).Methods(http.MethodDelete)
	api.HandleFunc("/user/profile/photo", s.handleUploadPhoto).Methods(http.MethodPost)
	api.HandleFunc("/change_password", s.handleChangePassword).Methods(http.MethodPut)
	api.HandleFunc("/user/account_summary", s.handleAccountSummary).Methods(http.MethodGet)

	api.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	api.HandleFunc("/group/create", s.handleCreateGroup).Methods(http.MethodPost)
	api.HandleFunc("/group/join", s.handleJoinGroup).Methods(http.MethodPost)
	api.HandleFunc("/group/join/code", s.handleJoinByCode).Methods(http.MethodPost)
	api.HandleFunc("/group/join/{verb:approve|reject}/{id:[0-9]+}", s.handleDecideJoin).Methods(http.MethodPost)
	api.HandleFunc("/group/leave", s.handleLeaveGroup).Methods(http.MethodPost)
	api.HandleFunc("/group/members", s.handleGroupMembers).Methods(http.MethodGet)
	api.HandleFunc("/group/{id:[0-9]+}/announcements", s.handleListAnnouncements).Methods(http.MethodGet)
	api.HandleFunc("/group/{id:[0-9]+}/announcements", s.handlePostAnnouncement).Methods(http.MethodPost)
	api.HandleFunc("/group/{id:[0-9]+}/announcements/{announcement_id:[0-9]+}", s.handleDeleteAnnouncement).Methods(http.MethodDelete)

	api.HandleFunc("/contribute", s.handleContribute).Methods(http.MethodPost)
	api.HandleFunc("/borrow", s.handleBorrow).Methods(http.MethodPost)
	api.HandleFunc("/repay", s.handleRepay).Methods(http.MethodPost)
	api.HandleFunc("/loans/my", s.handleMyLoans).Methods(http.MethodGet)
	api.HandleFunc("/transactions/user", s.handleTransactions).Methods(http.MethodGet)
	api.HandleFunc("/withdrawal/request", s.handleRequestWithdrawal).Methods(http.MethodPost)
	api.HandleFunc("/withdrawal/{verb:approve|reject}/{id:[0-9]+}", s.handleVoteWithdrawal).Methods(http.MethodPost)
	api.HandleFunc("/withdrawals/{id:[0-9]+}/cancel", s.handleCancelWithdrawal).Methods(http.MethodPost)
	api.HandleFunc("/withdrawals/group", s.handleGroupWithdrawals).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin/groups/{id:[0-9]+}").Subrouter()
	admin.HandleFunc("/admin_dashboard", s.handleAdminDashboard).Methods(http.MethodGet)
	admin.HandleFunc("/set_daily_amount", s.handleSetDailyAmount).Methods(http.MethodPost)
	admin.HandleFunc("/loan_policy", s.handleGetLoanPolicy).Methods(http.MethodGet)
	admin.HandleFunc("/loan_policy", s.handleWriteLoanPolicy).Methods(http.MethodPost, http.MethodPut)
	admin.HandleFunc("/loans/{loan_id:[0-9]+}/approve", s.handleApproveLoan).Methods(http.MethodPost)

	api.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/mark-all-read", s.handleMarkAllRead).Methods(http.MethodPut)
	api.HandleFunc("/notifications/{id:[0-9]+}/mark-read", s.handleMarkRead).Methods(http.MethodPut)
	api.HandleFunc("/notifications/unread-count", s.handleUnreadCount).Methods(http.MethodGet)

	s.router = r
}

// rejectRevoked answers 401 for tokens presented to /logout before.
func (s *Server) rejectRevoked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
		if s.state.Revoked(token) {
			writeError(w, errorf(http.StatusUnauthorized, "Token has been revoked"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// commit runs fn under the state lock, then broadcasts the events it queued.
func (s *Server) commit(fn func(emit func(groupID int64, name string, data any)) error) error {
	var events []event
	err := s.state.tx(func() error {
		return fn(func(groupID int64, name string, data any) {
			events = append(events, event{groupID: groupID, name: name, data: data})
		})
	})
	if err != nil {
		return err
	}
	for _, ev := range events {
		s.hub.Broadcast(ev.groupID, ev.name, ev.data)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.status, map[string]string{"error": apiErr.msg})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

// decode reads a JSON object body. An empty body decodes to an empty map.
func decode(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if r.Body == nil || r.ContentLength == 0 {
		return body, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errorf(http.StatusBadRequest, "Invalid JSON body")
	}
	return body, nil
}

// positiveAmount reads body[key] the way the production backend does: any
// number or numeric string, strictly positive.
func positiveAmount(body map[string]any, key string) (float64, error) {
	amount, err := cast.ToFloat64E(body[key])
	if err != nil || amount <= 0 {
		return 0, errorf(http.StatusBadRequest, "Invalid amount")
	}
	return amount, nil
}

func stringField(body map[string]any, key string) string {
	return cast.ToString(body[key])
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(pathVar(r, name), 10, 64)
	return id
}
