package devserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/mmynk/chama/internal/middleware"
	"github.com/mmynk/chama/internal/models"
)

// Hub fans group events out to the sockets that joined the group's room.
type Hub struct {
	logger    *slog.Logger
	authorize func(userID, groupID int64) bool

	mu    sync.Mutex
	rooms map[int64]map[*websocket.Conn]struct{}
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a hub. authorize decides whether a user may join a room.
func NewHub(logger *slog.Logger, authorize func(userID, groupID int64) bool) *Hub {
	return &Hub{
		logger:    logger,
		authorize: authorize,
		rooms:     make(map[int64]map[*websocket.Conn]struct{}),
		conns:     make(map[*websocket.Conn]struct{}),
	}
}

// Handler serves the socket. It must sit behind middleware.RequireAuth.
func (h *Hub) Handler() websocket.Handler {
	return func(ws *websocket.Conn) {
		userID := middleware.GetUserID(ws.Request().Context())
		h.track(ws)
		defer h.drop(ws)

		for {
			var frame models.Event
			if err := websocket.JSON.Receive(ws, &frame); err != nil {
				if err != io.EOF {
					h.logger.Debug("Socket read failed", "user_id", userID, "error", err)
				}
				return
			}

			groupID := frame.GroupID
			if groupID == 0 && len(frame.Data) > 0 {
				var data struct {
					GroupID int64 `json:"group_id"`
				}
				_ = json.Unmarshal(frame.Data, &data)
				groupID = data.GroupID
			}

			switch frame.Name {
			case models.EventJoinGroup:
				if !h.authorize(userID, groupID) {
					h.logger.Warn("Join refused", "user_id", userID, "group_id", groupID)
					return
				}
				h.join(ws, groupID)
				_ = websocket.JSON.Send(ws, models.Event{Name: models.EventJoined, GroupID: groupID})
				h.logger.Info("Socket joined room", "user_id", userID, "group_id", groupID)
			case models.EventLeaveGroup:
				h.leave(ws, groupID)
			}
		}
	}
}

// Broadcast sends an event to every socket in the group's room.
func (h *Hub) Broadcast(groupID int64, name string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to encode event", "event", name, "error", err)
		return
	}
	ev := models.Event{Name: name, GroupID: groupID, Data: raw}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.rooms[groupID] {
		if err := websocket.JSON.Send(ws, ev); err != nil {
			h.logger.Debug("Socket write failed", "group_id", groupID, "error", err)
		}
	}
	h.logger.Debug("Event broadcast", "event", name, "group_id", groupID, "sockets", len(h.rooms[groupID]))
}

// Clients counts the sockets in a room.
func (h *Hub) Clients(groupID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[groupID])
}

// DropAll closes every socket. Clients see a lost connection.
func (h *Hub) DropAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for ws := range h.conns {
		conns = append(conns, ws)
	}
	h.mu.Unlock()

	for _, ws := range conns {
		_ = ws.Close()
	}
}

func (h *Hub) track(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[ws] = struct{}{}
}

func (h *Hub) join(ws *websocket.Conn, groupID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[groupID]
	if !ok {
		room = make(map[*websocket.Conn]struct{})
		h.rooms[groupID] = room
	}
	room[ws] = struct{}{}
}

func (h *Hub) leave(ws *websocket.Conn, groupID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[groupID], ws)
}

func (h *Hub) drop(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, ws)
	for _, room := range h.rooms {
		delete(room, ws)
	}
	_ = ws.Close()
}
