package pages

import (
	"context"

	"github.com/mmynk/chama/internal/livesync"
	"github.com/mmynk/chama/internal/models"
)

// NotificationsAPI is the backend surface of the notifications page.
type NotificationsAPI interface {
	Notifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) (*models.MessageResponse, error)
	MarkAllNotificationsRead(ctx context.Context) (*models.MessageResponse, error)
}

// NotificationEvents are the group events that usually come with a new
// notification.
var NotificationEvents = []string{
	models.EventNotificationCreated,
	models.EventContributionMade,
	models.EventLoanApproved,
	models.EventWithdrawalCreated,
	models.EventWithdrawalUpdated,
	models.EventAnnouncementCreated,
	models.EventJoinRequestUpdated,
}

// NotificationsPage lists the current user's notifications.
type NotificationsPage struct {
	*livesync.Synchronizer[[]models.Notification]

	api NotificationsAPI
}

// NewNotificationsPage creates the page for a member of groupID.
func NewNotificationsPage(api NotificationsAPI, groupID int64, opts Options) *NotificationsPage {
	p := &NotificationsPage{api: api}
	p.Synchronizer = livesync.New(syncConfig(opts, "notifications", cacheKey("notifications", groupID), p.fetch, NotificationEvents))
	return p
}

func (p *NotificationsPage) fetch(ctx context.Context) ([]models.Notification, error) {
	ns, err := p.api.Notifications(ctx)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		ns = []models.Notification{}
	}
	return ns, nil
}

// MarkRead marks one notification as read.
func (p *NotificationsPage) MarkRead(ctx context.Context, id int64) error {
	return p.Mutate(ctx, livesync.Mutation{
		Run: func(ctx context.Context) error {
			_, err := p.api.MarkNotificationRead(ctx, id)
			return err
		},
		Overlay: livesync.Overlay{NotificationKey(id): MarkRead},
		Refetch: true,
	})
}

// MarkAllRead marks every notification as read.
func (p *NotificationsPage) MarkAllRead(ctx context.Context) error {
	return p.Mutate(ctx, livesync.Mutation{
		Run: func(ctx context.Context) error {
			_, err := p.api.MarkAllNotificationsRead(ctx)
			return err
		},
		Overlay: livesync.Overlay{allReadKey: MarkRead},
		Refetch: true,
	})
}

// IsRead reports whether n shows as read, counting local marks.
func IsRead(v livesync.View[[]models.Notification], n models.Notification) bool {
	return n.IsRead || v.Overlay.Has(allReadKey) || v.Overlay.Has(NotificationKey(n.ID))
}

// Unread counts unread notifications, counting local marks.
func Unread(v livesync.View[[]models.Notification]) int {
	if v.Overlay.Has(allReadKey) {
		return 0
	}
	if len(v.Overlay) == 0 {
		return models.UnreadCount(v.Snapshot)
	}
	n := 0
	for _, x := range v.Snapshot {
		if !IsRead(v, x) {
			n++
		}
	}
	return n
}
