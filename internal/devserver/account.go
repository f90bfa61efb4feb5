package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmynk/chama/internal/auth"
	"github.com/mmynk/chama/internal/calculator"
	"github.com/mmynk/chama/internal/middleware"
	"github.com/mmynk/chama/internal/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req := models.RegisterRequest{
		Name:     strings.TrimSpace(stringField(body, "name")),
		Email:    strings.TrimSpace(stringField(body, "email")),
		Phone:    strings.TrimSpace(stringField(body, "phone")),
		Password: stringField(body, "password"),
	}
	s.logger.Info("Register request", "email", req.Email)

	if !strings.Contains(req.Email, "@") && req.Email != "" {
		writeError(w, errorf(http.StatusBadRequest, "Invalid email format"))
		return
	}

	account, err := s.authn.Register(r.Context(), req)
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		writeError(w, errorf(http.StatusBadRequest, "Missing required fields"))
		return
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, errorf(http.StatusBadRequest, "%s", err.Error()))
		return
	case errors.Is(err, auth.ErrEmailExists):
		writeError(w, errorf(http.StatusConflict, "User with email or phone already exists"))
		return
	case err != nil:
		s.logger.Error("Registration failed", "email", req.Email, "error", err)
		writeError(w, err)
		return
	}

	s.logger.Info("User registered", "user_id", account.ID, "email", account.Email)
	writeMessage(w, http.StatusCreated, "User registered successfully.")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	email, password := stringField(body, "email"), stringField(body, "password")
	if email == "" || password == "" {
		writeError(w, errorf(http.StatusBadRequest, "Missing required fields"))
		return
	}

	account, err := s.authn.Authenticate(r.Context(), email, password)
	if err != nil {
		s.logger.Warn("Login failed", "email", email, "error", err)
		writeError(w, errorf(http.StatusUnauthorized, "Invalid credentials"))
		return
	}
	if !account.IsVerified {
		writeError(w, errorf(http.StatusForbidden, "Please verify your email before logging in."))
		return
	}

	user, err := s.state.User(account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := s.jwt.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		writeError(w, err)
		return
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, models.AuthResponse{AccessToken: token, User: user})
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, _ *http.Request) {
	writeError(w, errorf(http.StatusBadRequest, "Google sign-in is not available on the development server"))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r.Header.Get("Authorization"))
	s.state.Revoke(token)
	s.logger.Info("User logged out", "user_id", middleware.GetUserID(r.Context()))
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.state.User(middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(body) == 0 {
		writeError(w, errorf(http.StatusBadRequest, "No input data"))
		return
	}

	var user models.User
	err = s.state.tx(func() error {
		account, err := s.state.account(userID)
		if err != nil {
			return err
		}
		if name := strings.TrimSpace(stringField(body, "name")); name != "" {
			account.Name = name
		}
		if phone := strings.TrimSpace(stringField(body, "phone")); phone != "" {
			account.Phone = phone
		}
		if email := strings.TrimSpace(stringField(body, "email")); email != "" && !strings.EqualFold(email, account.Email) {
			key := strings.ToLower(email)
			if _, taken := s.state.emails[key]; taken {
				return errorf(http.StatusConflict, "Email already in use")
			}
			delete(s.state.emails, strings.ToLower(account.Email))
			s.state.emails[key] = account.ID
			account.Email = email
		}
		user = s.state.profile(account)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Profile updated successfully", "user": user})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	err := s.state.tx(func() error {
		account, err := s.state.account(userID)
		if err != nil {
			return err
		}
		if g, ok := s.state.groups[account.GroupID]; ok && g.AdminID == userID && len(s.state.members(g.ID)) > 1 {
			return errorf(http.StatusBadRequest, "Admins cannot delete their account while the group has members")
		}
		delete(s.state.emails, strings.ToLower(account.Email))
		delete(s.state.accounts, userID)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Account deleted", "user_id", userID)
	writeMessage(w, http.StatusOK, "Account deleted successfully")
}

var photoExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if err := r.ParseMultipartForm(5 << 20); err != nil {
		writeError(w, errorf(http.StatusBadRequest, "No file part"))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, errorf(http.StatusBadRequest, "No file part"))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		writeError(w, errorf(http.StatusBadRequest, "No selected file"))
		return
	}
	if !photoExtensions[strings.ToLower(filepath.Ext(name))] {
		writeError(w, errorf(http.StatusBadRequest, "Invalid file type"))
		return
	}

	url := fmt.Sprintf("/user/profile/photo/%d_%s", userID, name)
	err = s.state.tx(func() error {
		account, err := s.state.account(userID)
		if err != nil {
			return err
		}
		account.ProfilePhoto = url
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":       "Profile photo uploaded successfully",
		"profile_photo": url,
	})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	oldPassword, newPassword := stringField(body, "old_password"), stringField(body, "new_password")
	if oldPassword == "" || newPassword == "" {
		writeError(w, errorf(http.StatusBadRequest, "Both old and new passwords required"))
		return
	}
	if err := s.authn.ValidateCredential(newPassword); err != nil {
		writeError(w, errorf(http.StatusBadRequest, "%s", err.Error()))
		return
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		writeError(w, err)
		return
	}

	err = s.state.tx(func() error {
		account, err := s.state.account(userID)
		if err != nil {
			return err
		}
		if !auth.CheckPassword(account.PasswordHash, oldPassword) {
			return errorf(http.StatusUnauthorized, "Old password is incorrect")
		}
		account.PasswordHash = hash
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

func (s *Server) handleAccountSummary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var summary models.AccountSummary
	err := s.state.tx(func() error {
		account, g, err := s.state.memberOf(userID)
		if err != nil {
			return err
		}
		now := s.state.now()
		start := monthStart(now)

		var groupMonthly float64
		for _, m := range s.state.members(g.ID) {
			groupMonthly += s.state.contributed(m.ID, g.ID, start)
		}
		ledger := s.state.ledger(g.ID)
		userTotal := s.state.contributed(account.ID, g.ID, time.Time{})
		share := calculator.MemberShare(ledger, userTotal)
		monthly := s.state.contributed(account.ID, g.ID, start)
		required := calculator.RequiredSoFar(g.Daily, now.Day())

		summary = models.AccountSummary{
			GroupName:                 g.Name,
			Month:                     now.Format("January 2006"),
			DailyAmount:               g.Daily,
			MonthlyContributed:        monthly,
			RequiredSoFar:             required,
			PendingAmount:             calculator.PendingAmount(required, monthly),
			OutstandingLoan:           s.state.outstanding(account.ID),
			GroupTotalContributions:   ledger.Contributions,
			GroupMonthlyContributions: groupMonthly,
			AdjustedGroupFunds:        ledger.AdjustedFunds(),
			UserTotalContributions:    userTotal,
			PercentageShare:           share.Percentage,
			LoanLimit:                 share.LoanLimit,
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
