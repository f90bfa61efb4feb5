package devserver

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/mmynk/chama/internal/middleware"
	"github.com/mmynk/chama/internal/models"
)

func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	var groups []models.Group
	_ = s.state.tx(func() error {
		for _, g := range s.state.groups {
			groups = append(groups, models.Group{ID: g.ID, Name: g.Name})
		}
		return nil
	})
	slices.SortFunc(groups, func(a, b models.Group) int { return int(a.ID - b.ID) })
	if groups == nil {
		groups = []models.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name := strings.TrimSpace(stringField(body, "group_name"))

	var groupID int64
	err = s.state.tx(func() error {
		account, err := s.state.account(userID)
		if err != nil {
			return err
		}
		if account.GroupID != 0 {
			return errorf(http.StatusBadRequest, "You are already in a group")
		}
		if name == "" {
			return errorf(http.StatusBadRequest, "Group name is required")
		}

		g := &group{ID: s.state.nextID(), Name: name, JoinCode: newJoinCode(), AdminID: userID}
		s.state.groups[g.ID] = g
		account.GroupID = g.ID
		groupID = g.ID
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.logger.Info("Group created", "group_id", groupID, "admin_id", userID)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Group created successfully", "group_id": groupID})
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	groupID, err := cast.ToInt64E(body["group_id"])
	if err != nil || groupID == 0 {
		writeError(w, errorf(http.StatusBadRequest, "Group ID is required"))
		return
	}
	s.requestJoin(w, r, func() (*group, error) {
		g, ok := s.state.groups[groupID]
		if !ok {
			return nil, errorf(http.StatusNotFound, "Invalid group ID")
		}
		return g, nil
	})
}

func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(stringField(body, "join_code")))
	if code == "" {
		writeError(w, errorf(http.StatusBadRequest, "Join code is required"))
		return
	}
	s.requestJoin(w, r, func() (*group, error) {
		for _, g := range s.state.groups {
			if g.JoinCode == code {
				return g, nil
			}
		}
		return nil, errorf(http.StatusNotFound, "Invalid join code")
	})
}

// requestJoin files a join request for the group chosen by find, which runs
// under the state lock.
func (s *Server) requestJoin(w http.ResponseWriter, r *http.Request, find func() (*group, error)) {
	userID := middleware.GetUserID(r.Context())

	var requestID int64
	err := s.commit(func(emit func(int64, string, any)) error {
		account, err := s.state.account(userID)
		if err != nil {
			return err
		}
		if account.GroupID != 0 {
			return errorf(http.StatusBadRequest, "You are already in a group")
		}
		g, err := find()
		if err != nil {
			return err
		}
		for _, jr := range s.state.joins {
			if jr.UserID == userID && jr.Status == statusPending {
				return errorf(http.StatusBadRequest, "You already have a pending join request")
			}
		}

		jr := &joinRequest{ID: s.state.nextID(), UserID: userID, GroupID: g.ID, Status: statusPending, Date: s.state.now()}
		s.state.joins[jr.ID] = jr
		requestID = jr.ID
		s.state.notify(g.AdminID, g.ID, "Join request", fmt.Sprintf("%s has requested to join %s", account.Name, g.Name))
		emit(g.ID, models.EventJoinRequestUpdated, map[string]any{"join_request_id": jr.ID, "status": statusPending})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Join request sent. Awaiting admin approval",
		"join_request_id": requestID,
	})
}

func (s *Server) handleDecideJoin(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	requestID := pathID(r, "id")
	approve := pathVar(r, "verb") == "approve"

	var message string
	err := s.commit(func(emit func(int64, string, any)) error {
		jr, ok := s.state.joins[requestID]
		if !ok || jr.Status != statusPending {
			return errorf(http.StatusNotFound, "Join request not found or already processed")
		}
		g, err := s.state.adminOf(userID, jr.GroupID)
		if err != nil {
			return err
		}
		applicant, err := s.state.account(jr.UserID)
		if err != nil {
			return err
		}

		if !approve {
			jr.Status = statusRejected
			message = "Join request rejected"
			s.state.notify(applicant.ID, 0, "Join request", fmt.Sprintf("Your request to join %s was rejected", g.Name))
			emit(g.ID, models.EventJoinRequestUpdated, map[string]any{"join_request_id": jr.ID, "status": jr.Status})
			return nil
		}

		if applicant.GroupID != 0 {
			jr.Status = statusRejected
			return errorf(http.StatusBadRequest, "User is already in a group")
		}
		jr.Status = statusApproved
		applicant.GroupID = g.ID
		message = applicant.Name + " has been added to the group"
		s.state.notify(applicant.ID, g.ID, "Join request", fmt.Sprintf("You have been added to %s", g.Name))
		s.state.notifyGroup(g.ID, applicant.ID, "Member joined", applicant.Name+" joined the group")
		emit(g.ID, models.EventJoinRequestUpdated, map[string]any{"join_request_id": jr.ID, "status": jr.Status})
		emit(g.ID, models.EventMemberJoined, map[string]any{"member_id": applicant.ID, "name": applicant.Name})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Join request decided", "request_id", requestID, "approved", approve)
	writeMessage(w, http.StatusOK, message)
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	err := s.commit(func(emit func(int64, string, any)) error {
		account, g, err := s.state.memberOf(userID)
		if err != nil {
			return err
		}
		if g.AdminID == userID {
			return errorf(http.StatusBadRequest, "Admins cannot leave the group directly. Assign a new admin first")
		}
		account.GroupID = 0
		s.state.notify(g.AdminID, g.ID, "Member left", account.Name+" left the group")
		emit(g.ID, models.EventMemberLeft, map[string]any{"member_id": account.ID})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "You have left the group.")
}

func (s *Server) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var members []models.GroupMember
	err := s.state.tx(func() error {
		_, g, err := s.state.memberOf(userID)
		if err != nil {
			return err
		}
		for _, m := range s.state.members(g.ID) {
			members = append(members, models.GroupMember{ID: m.ID, Name: m.Name, IsAdmin: m.ID == g.AdminID, GroupID: g.ID})
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID := pathID(r, "id")

	var out []models.Announcement
	err := s.state.tx(func() error {
		if account, err := s.state.account(userID); err != nil || account.GroupID != groupID {
			return errorf(http.StatusForbidden, "Unauthorized")
		}
		out = slices.Clone(s.state.announcements[groupID])
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	slices.Reverse(out)
	if out == nil {
		out = []models.Announcement{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePostAnnouncement(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID := pathID(r, "id")
	body, err := decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	title := strings.TrimSpace(stringField(body, "title"))
	message := strings.TrimSpace(stringField(body, "message"))
	if title == "" || message == "" {
		writeError(w, errorf(http.StatusBadRequest, "Title and message are required"))
		return
	}

	err = s.commit(func(emit func(int64, string, any)) error {
		g, err := s.state.adminOf(userID, groupID)
		if err != nil {
			return err
		}
		a := models.Announcement{
			ID:        s.state.nextID(),
			Title:     title,
			Message:   message,
			CreatedAt: s.state.now().Format(time.RFC3339),
		}
		s.state.announcements[g.ID] = append(s.state.announcements[g.ID], a)
		s.state.notifyGroup(g.ID, userID, "Announcement", title)
		emit(g.ID, models.EventAnnouncementCreated, a)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Announcement created successfully")
}

func (s *Server) handleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID := pathID(r, "id")
	announcementID := pathID(r, "announcement_id")

	err := s.commit(func(emit func(int64, string, any)) error {
		g, err := s.state.adminOf(userID, groupID)
		if err != nil {
			return err
		}
		list := s.state.announcements[g.ID]
		i := slices.IndexFunc(list, func(a models.Announcement) bool { return a.ID == announcementID })
		if i < 0 {
			return errorf(http.StatusNotFound, "Announcement not found")
		}
		s.state.announcements[g.ID] = slices.Delete(list, i, i+1)
		emit(g.ID, models.EventAnnouncementDeleted, map[string]int64{"id": announcementID})
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Announcement deleted")
}
