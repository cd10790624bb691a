package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/myrjola/repsched/internal/testhelpers"
	"go.uber.org/goleak"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []Notification
}

func (s *recordingSink) Deliver(_ context.Context, n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, n)
}

func newTestNotifier(t *testing.T, now time.Time) (*CronNotifier, *recordingSink) {
	t.Helper()
	sink := &recordingSink{mu: sync.Mutex{}, delivered: nil}
	n := NewCronNotifier(testhelpers.NewLogger(testhelpers.NewWriter(t)), sink)
	n.now = func() time.Time { return now }
	return n, sink
}

func TestCronNotifier_ScheduleAndCancel(t *testing.T) {
	ctx := t.Context()
	today := day.Date(2024, time.June, 10)
	n, _ := newTestNotifier(t, today.Time().Add(8*time.Hour))

	req := Request{WorkoutName: "PPL", DayName: "Push", Date: today, At: TimeOfDay{Hour: 18, Minute: 30}}
	id, err := n.Schedule(ctx, req)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if id == "" {
		t.Fatal("expected a notification id")
	}

	want := []Notification{{ID: id, Request: req, FireAt: today.Time().Add(18*time.Hour + 30*time.Minute)}}
	if diff := cmp.Diff(want, n.Pending()); diff != "" {
		t.Errorf("Pending() mismatch (-want +got):\n%s", diff)
	}

	if err = n.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := n.Pending(); len(got) != 0 {
		t.Errorf("expected no pending notifications after cancel, got %v", got)
	}
	if err = n.Cancel(ctx, id); err != nil {
		t.Errorf("second Cancel: %v", err)
	}
}

func TestCronNotifier_TriggerInPast(t *testing.T) {
	today := day.Date(2024, time.June, 10)
	n, _ := newTestNotifier(t, today.Time().Add(19*time.Hour))

	_, err := n.Schedule(t.Context(),
		Request{WorkoutName: "PPL", DayName: "Push", Date: today, At: TimeOfDay{Hour: 18, Minute: 0}})
	if !errors.Is(err, ErrTriggerInPast) {
		t.Errorf("Schedule() error = %v, want %v", err, ErrTriggerInPast)
	}
	if got := n.Pending(); len(got) != 0 {
		t.Errorf("expected nothing pending, got %v", got)
	}
}

func TestCronNotifier_CancelledContext(t *testing.T) {
	today := day.Date(2024, time.June, 10)
	n, _ := newTestNotifier(t, today.Time())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := n.Schedule(ctx, Request{Date: today, At: TimeOfDay{Hour: 9, Minute: 0}}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestCronNotifier_Fire(t *testing.T) {
	ctx := t.Context()
	today := day.Date(2024, time.June, 10)
	n, sink := newTestNotifier(t, today.Time())

	first, err := n.Schedule(ctx, Request{WorkoutName: "PPL", DayName: "Pull", Date: today.AddDays(1),
		At: TimeOfDay{Hour: 7, Minute: 0}})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	second, err := n.Schedule(ctx, Request{WorkoutName: "PPL", DayName: "Push", Date: today,
		At: TimeOfDay{Hour: 7, Minute: 0}})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	pendingIDs := make([]string, 0, 2)
	for _, p := range n.Pending() {
		pendingIDs = append(pendingIDs, p.ID)
	}
	if diff := cmp.Diff([]string{second, first}, pendingIDs); diff != "" {
		t.Errorf("Pending() order mismatch (-want +got):\n%s", diff)
	}

	n.fire(second)
	n.fire(second)

	if len(sink.delivered) != 1 || sink.delivered[0].ID != second {
		t.Fatalf("expected exactly one delivery of %s, got %v", second, sink.delivered)
	}
	if got := n.Pending(); len(got) != 1 || got[0].ID != first {
		t.Errorf("expected only %s pending, got %v", first, got)
	}
}

func TestOnceAt(t *testing.T) {
	at := time.Date(2024, time.June, 10, 18, 0, 0, 0, time.UTC)
	schedule := onceAt(at)
	if got := schedule.Next(at.Add(-time.Minute)); !got.Equal(at) {
		t.Errorf("Next() before activation = %v, want %v", got, at)
	}
	if got := schedule.Next(at); !got.IsZero() {
		t.Errorf("Next() after activation = %v, want zero time", got)
	}
}

func TestCronNotifier_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	n, _ := newTestNotifier(t, time.Now())
	n.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n.Stop(ctx)
}
