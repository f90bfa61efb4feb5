// Package pages instantiates the live synchronizer for each dashboard-like
// screen and exposes the screen's intents.
//
// Each page pairs a fetch function that assembles the screen's snapshot with
// the realtime events that invalidate it. Intents go through
// Synchronizer.Mutate so that a successful action can mark the view
// optimistically until the next snapshot replaces it.
package pages

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/mmynk/chama/internal/livesync"
	"github.com/mmynk/chama/internal/metrics"
	"github.com/mmynk/chama/internal/storage"
)

// Options are shared by every page.
type Options struct {
	// Channel delivers realtime events. Nil disables live updates.
	Channel livesync.Events

	// Cache keeps the last snapshot of each page.
	Cache storage.SnapshotCache

	Debounce time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

func syncConfig[T any](opts Options, name, cacheKey string, fetch func(context.Context) (T, error), events []string) livesync.Config[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return livesync.Config[T]{
		Name:     name,
		Fetch:    fetch,
		Events:   events,
		Channel:  opts.Channel,
		Debounce: opts.Debounce,
		Cache:    opts.Cache,
		CacheKey: cacheKey,
		Logger:   logger,
		Metrics:  opts.Metrics,
	}
}

// Overlay keys. Values are the marker shown until the next snapshot.
const (
	MarkApproved  = "approved"
	MarkRejected  = "rejected"
	MarkCancelled = "cancelled"
	MarkDeleted   = "deleted"
	MarkRead      = "read"
)

// LoanKey marks a pending loan.
func LoanKey(id int64) string { return "loan:" + strconv.FormatInt(id, 10) }

// VoteKey marks the local user's vote on a withdrawal.
func VoteKey(id int64) string { return "vote:" + strconv.FormatInt(id, 10) }

// WithdrawalKey marks a withdrawal request.
func WithdrawalKey(id int64) string { return "withdrawal:" + strconv.FormatInt(id, 10) }

// JoinKey marks a join request.
func JoinKey(id int64) string { return "join:" + strconv.FormatInt(id, 10) }

// AnnouncementKey marks an announcement.
func AnnouncementKey(id int64) string { return "announcement:" + strconv.FormatInt(id, 10) }

// NotificationKey marks a notification.
func NotificationKey(id int64) string { return "notification:" + strconv.FormatInt(id, 10) }

// allReadKey marks every notification as read.
const allReadKey = "notifications:all"

// parallel runs fns concurrently and returns the first error in argument
// order.
func parallel(fns ...func() error) error {
	errs := make([]error, len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func cacheKey(page string, groupID int64) string {
	return fmt.Sprintf("%s:%d", page, groupID)
}
