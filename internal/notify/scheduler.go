package notify

import (
	"context"
	"sync"
	"time"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// Notifier delivers a reminder. Delivery is fire-and-forget; errors are
// logged by the scheduler and never retried.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// WallClock is the real time source.
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

func (WallClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type pending struct {
	reminder Reminder
	stop     func() bool
}

// Scheduler keeps one timer per event id.
type Scheduler struct {
	notifier Notifier
	lead     time.Duration
	loc      *time.Location
	clock    Clock

	mu      sync.Mutex
	pending map[model.EventID]*pending
	stopped bool
}

// NewScheduler returns a scheduler announcing events within lead of
// their start. A nil clock uses the wall clock.
func NewScheduler(n Notifier, lead time.Duration, loc *time.Location, clock Clock) *Scheduler {
	if clock == nil {
		clock = WallClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		notifier: n,
		lead:     ClampLead(lead),
		loc:      loc,
		clock:    clock,
		pending:  make(map[model.EventID]*pending),
	}
}

// Sync brings the pending timers in line with events. Reminders already
// pending for the same event and instant are left alone, changed ones
// are rescheduled and those whose event is gone or moved are cancelled.
// It returns the number of newly armed timers.
func (s *Scheduler) Sync(events []model.Event) int {
	now := s.clock.Now()
	plan := Plan(events, now, s.lead, s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0
	}

	want := make(map[model.EventID]Reminder, len(plan))
	for _, r := range plan {
		if r.EventID == "" {
			continue
		}
		want[r.EventID] = r
	}

	// A due timer may not have run yet; keep it while its event is
	// unchanged.
	current := make(map[model.EventID]model.Event, len(events))
	for _, ev := range events {
		current[ev.ID] = ev
	}
	for id, p := range s.pending {
		if _, ok := want[id]; ok {
			continue
		}
		if ev, ok := current[id]; ok && !p.reminder.FireAt.After(now) {
			if r, ok := reminderFor(ev, s.loc); ok && r.same(p.reminder) {
				continue
			}
		}
		p.stop()
		delete(s.pending, id)
		appLog.Debug("notify: reminder cancelled", "event_id", id)
	}

	armed := 0
	for _, r := range want {
		if old, ok := s.pending[r.EventID]; ok {
			if old.reminder.same(r) {
				continue
			}
			old.stop()
		}
		s.arm(r, r.FireAt.Sub(now))
		armed++
	}
	return armed
}

// arm registers a timer for r; s.mu must be held.
func (s *Scheduler) arm(r Reminder, delay time.Duration) {
	p := &pending{reminder: r}
	p.stop = s.clock.AfterFunc(delay, func() { s.fire(p) })
	s.pending[r.EventID] = p
	appLog.Debug("notify: reminder armed", "event_id", r.EventID, "fire_at", r.FireAt.Format(time.RFC3339))
}

func (s *Scheduler) fire(p *pending) {
	s.mu.Lock()
	if s.pending[p.reminder.EventID] != p {
		s.mu.Unlock()
		return
	}
	delete(s.pending, p.reminder.EventID)
	s.mu.Unlock()

	if err := s.notifier.Notify(context.Background(), p.reminder); err != nil {
		appLog.Warn("notify: delivery failed", "event_id", p.reminder.EventID, "err", err)
		return
	}
	appLog.Info("notify: reminder sent", "event_id", p.reminder.EventID, "title", p.reminder.Title)
}

// Pending returns the reminders waiting to fire, in no particular order.
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reminder, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p.reminder)
	}
	return out
}

// Stop cancels every pending reminder. Later Syncs do nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.pending {
		p.stop()
		delete(s.pending, id)
	}
	s.stopped = true
}
