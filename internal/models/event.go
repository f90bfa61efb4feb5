package models

import "encoding/json"

// Realtime event names emitted by the backend, one room per group.
const (
	EventMemberJoined        = "member_joined"
	EventMemberLeft          = "member_left"
	EventContributionMade    = "contribution_made"
	EventLoanApproved        = "loan_approved"
	EventLoanStatusChanged   = "loan_status_changed"
	EventWithdrawalCreated   = "withdrawal_created"
	EventWithdrawalUpdated   = "withdrawal_updated"
	EventAnnouncementCreated = "announcement_created"
	EventAnnouncementDeleted = "announcement_deleted"
	EventJoinRequestUpdated  = "join_request_updated"
	EventNotificationCreated = "notification_created"
)

// Control frames exchanged on the realtime socket. They are not change events.
const (
	EventJoinGroup  = "join_group"
	EventLeaveGroup = "leave_group"
	EventJoined     = "joined"
)

// GroupEvents lists every change category that invalidates a group snapshot.
var GroupEvents = []string{
	EventMemberJoined,
	EventMemberLeft,
	EventContributionMade,
	EventLoanApproved,
	EventLoanStatusChanged,
	EventWithdrawalCreated,
	EventWithdrawalUpdated,
	EventAnnouncementCreated,
	EventAnnouncementDeleted,
	EventJoinRequestUpdated,
}

// Event is a change signal received over the realtime channel.
//
// Data is whatever the backend chose to attach; it carries no consistency
// guarantee and is kept raw so consumers cannot mistake it for a diff.
type Event struct {
	Name    string          `json:"event"`
	GroupID int64           `json:"group_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
