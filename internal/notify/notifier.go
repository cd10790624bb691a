// Package notify schedules local workout reminders.
//
// CronNotifier keeps the pending reminders in a robfig/cron scheduler with one-shot schedules and hands them to a
// Sink when they fire. Pending reminders live in memory only.
package notify

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/robfig/cron/v3"
)

// ErrTriggerInPast is returned when the requested reminder would fire before now.
var ErrTriggerInPast = errors.NewSentinel("notification trigger time is in the past")

// Request asks for a reminder for the session of WorkoutName/DayName on Date at At.
type Request struct {
	WorkoutName string
	DayName     string
	Date        day.Day
	At          TimeOfDay
}

// Title is the reminder headline.
func (r Request) Title() string {
	return r.WorkoutName + ": " + r.DayName
}

// Body is the reminder text.
func (r Request) Body() string {
	return "Time for your workout: " + r.DayName
}

// Notification is a scheduled reminder.
type Notification struct {
	ID      string
	Request Request
	FireAt  time.Time
}

// Sink delivers reminders when they fire.
type Sink interface {
	Deliver(ctx context.Context, n Notification)
}

// LogSink delivers reminders by logging them.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, n Notification) {
	s.Logger.LogAttrs(ctx, slog.LevelInfo, "workout reminder",
		slog.String("notification_id", n.ID),
		slog.String("title", n.Request.Title()),
		slog.String("body", n.Request.Body()),
		slog.String("workout_date", n.Request.Date.String()))
}

// onceAt is a cron.Schedule that activates exactly once.
type onceAt time.Time

func (o onceAt) Next(t time.Time) time.Time {
	if at := time.Time(o); t.Before(at) {
		return at
	}
	// The zero time tells cron the entry never runs again.
	return time.Time{}
}

type pending struct {
	entryID      cron.EntryID
	notification Notification
}

// CronNotifier schedules one-shot reminders on a cron scheduler.
type CronNotifier struct {
	cron    *cron.Cron
	sink    Sink
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
	pending map[string]pending
}

// NewCronNotifier creates a notifier delivering to sink. Call Start to begin firing reminders.
func NewCronNotifier(logger *slog.Logger, sink Sink) *CronNotifier {
	return &CronNotifier{
		cron:    cron.New(cron.WithLocation(day.Location())),
		sink:    sink,
		logger:  logger,
		now:     time.Now,
		mu:      sync.Mutex{},
		pending: make(map[string]pending),
	}
}

// Start runs the scheduler in its own goroutine.
func (n *CronNotifier) Start() {
	n.cron.Start()
}

// Stop stops the scheduler and waits for running deliveries to finish or ctx to be done.
func (n *CronNotifier) Stop(ctx context.Context) {
	select {
	case <-n.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Schedule registers a reminder and returns its id.
func (n *CronNotifier) Schedule(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, "schedule notification")
	}
	fireAt := req.At.On(req.Date)
	if !fireAt.After(n.now()) {
		return "", errors.Wrap(ErrTriggerInPast, "schedule notification",
			slog.Time("fire_at", fireAt))
	}

	notification := Notification{ID: uuid.NewString(), Request: req, FireAt: fireAt}

	n.mu.Lock()
	defer n.mu.Unlock()
	entryID := n.cron.Schedule(onceAt(fireAt), cron.FuncJob(func() { n.fire(notification.ID) }))
	n.pending[notification.ID] = pending{entryID: entryID, notification: notification}

	n.logger.LogAttrs(ctx, slog.LevelDebug, "scheduled notification",
		slog.String("notification_id", notification.ID), slog.Time("fire_at", fireAt))
	return notification.ID, nil
}

// Cancel removes a pending reminder. Cancelling an unknown or already delivered reminder is a no-op.
func (n *CronNotifier) Cancel(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "cancel notification", slog.String("notification_id", id))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.pending[id]
	if !ok {
		return nil
	}
	n.cron.Remove(p.entryID)
	delete(n.pending, id)
	n.logger.LogAttrs(ctx, slog.LevelDebug, "cancelled notification", slog.String("notification_id", id))
	return nil
}

// Pending returns the reminders that have not fired yet, earliest first.
func (n *CronNotifier) Pending() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	notifications := make([]Notification, 0, len(n.pending))
	for _, id := range slices.Sorted(maps.Keys(n.pending)) {
		notifications = append(notifications, n.pending[id].notification)
	}
	slices.SortStableFunc(notifications, func(a, b Notification) int {
		return a.FireAt.Compare(b.FireAt)
	})
	return notifications
}

func (n *CronNotifier) fire(id string) {
	n.mu.Lock()
	p, ok := n.pending[id]
	if ok {
		n.cron.Remove(p.entryID)
		delete(n.pending, id)
	}
	n.mu.Unlock()
	if !ok {
		return
	}
	n.sink.Deliver(context.Background(), p.notification)
}
