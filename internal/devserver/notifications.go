package devserver

import (
	"net/http"

	"github.com/mmynk/chama/internal/middleware"
	"github.com/mmynk/chama/internal/models"
)

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	out := []models.Notification{}
	_ = s.state.tx(func() error {
		for i := len(s.state.notifications) - 1; i >= 0; i-- {
			if n := s.state.notifications[i]; n.UserID == userID {
				out = append(out, n.Notification)
			}
		}
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	_ = s.state.tx(func() error {
		for _, n := range s.state.notifications {
			if n.UserID == userID {
				n.IsRead = true
			}
		}
		return nil
	})
	writeMessage(w, http.StatusOK, "All notifications marked as read")
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := pathID(r, "id")

	err := s.state.tx(func() error {
		for _, n := range s.state.notifications {
			if n.ID == id && n.UserID == userID {
				n.IsRead = true
				return nil
			}
		}
		return errorf(http.StatusNotFound, "Notification not found")
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Notification marked as read")
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var count int
	_ = s.state.tx(func() error {
		for _, n := range s.state.notifications {
			if n.UserID == userID && !n.IsRead {
				count++
			}
		}
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
