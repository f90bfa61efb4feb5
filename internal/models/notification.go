package models

// Notification is a persisted, per-user message shown on the notifications page.
type Notification struct {
	ID      int64  `json:"id"`
	GroupID int64  `json:"group_id"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Date    string `json:"date"`
	IsRead  bool   `json:"is_read"`
}

// UnreadCount counts unread notifications.
func UnreadCount(ns []Notification) int {
	n := 0
	for _, x := range ns {
		if !x.IsRead {
			n++
		}
	}
	return n
}
