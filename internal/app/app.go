// Package app hosts the calendar: it applies commands to the current
// state, persists each result and keeps reminders in step with the
// collection.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"evcal/internal/calendar"
	"evcal/internal/csvio"
	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/notify"
	"evcal/internal/query"
	"evcal/internal/store"
)

type Options struct {
	Location  *time.Location
	WeekStart time.Weekday

	// Notifier enables reminders; nil disables them.
	Notifier notify.Notifier
	Lead     time.Duration

	// Clock drives reminders and "today"; nil means the wall clock.
	Clock notify.Clock
}

// App serializes all commands behind one mutex.
type App struct {
	repo      *store.Repository
	loc       *time.Location
	weekStart time.Weekday
	clock     notify.Clock
	sched     *notify.Scheduler

	mu    sync.Mutex
	state calendar.State
	cron  *cron.Cron
}

// New loads the stored state and arms reminders for it.
func New(repo *store.Repository, opts Options) *App {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = notify.WallClock{}
	}

	a := &App{
		repo:      repo,
		loc:       opts.Location,
		weekStart: opts.WeekStart,
		clock:     opts.Clock,
		state:     repo.Load(),
	}
	if opts.Notifier != nil {
		a.sched = notify.NewScheduler(opts.Notifier, opts.Lead, opts.Location, opts.Clock)
		a.sched.Sync(a.state.Events)
	}
	appLog.Info("calendar loaded",
		"events", len(a.state.Events),
		"view", a.state.View,
		"theme", a.state.Theme,
		"reminders", a.sched != nil,
	)
	return a
}

// State returns the current state. The returned value is never mutated.
func (a *App) State() calendar.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) Location() *time.Location { return a.loc }

func (a *App) WeekStart() time.Weekday { return a.weekStart }

// Now is the current time in the calendar's zone.
func (a *App) Now() time.Time { return a.clock.Now().In(a.loc) }

// commit installs next, persists it and re-syncs reminders; a.mu must be
// held. The in-memory state advances even when saving fails.
func (a *App) commit(next calendar.State) error {
	a.state = next
	var err error
	if serr := a.repo.Save(next); serr != nil {
		appLog.Error("persist state failed", serr)
		err = fmt.Errorf("persist: %w", serr)
	}
	if a.sched != nil {
		a.sched.Sync(next.Events)
	}
	return err
}

// AddEvent expands draft and appends the instances.
func (a *App) AddEvent(draft model.Draft) ([]model.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, created, err := a.state.AddEvent(draft)
	if err != nil {
		return nil, err
	}
	appLog.Info("event added", "title", draft.Title, "instances", len(created))
	return created, a.commit(next)
}

func (a *App) EditEvent(id model.EventID, draft model.Draft) (model.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.state.EditEvent(id, draft)
	if err != nil {
		return model.Event{}, err
	}
	ev, _ := next.Find(id)
	appLog.Info("event edited", "id", id)
	return ev, a.commit(next)
}

func (a *App) DeleteEvent(id model.EventID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.state.DeleteEvent(id)
	if err != nil {
		return err
	}
	appLog.Info("event deleted", "id", id)
	return a.commit(next)
}

func (a *App) SetView(v calendar.View) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.state.SetView(v)
	if err != nil {
		return err
	}
	return a.commit(next)
}

func (a *App) SetTheme(t calendar.Theme) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.state.SetTheme(t)
	if err != nil {
		return err
	}
	return a.commit(next)
}

// ImportCSV appends the accepted rows of a CSV document.
func (a *App) ImportCSV(r io.Reader) (csvio.Result, error) {
	res, err := csvio.Import(r)
	if err != nil {
		return res, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	appLog.Info("csv import", "accepted", res.Accepted, "rejected", res.Rejected)
	if res.Accepted == 0 {
		return res, nil
	}
	return res, a.commit(a.state.ImportEvents(res.Events))
}

// ImportResult reports an iCalendar import.
type ImportResult struct {
	Created  []model.Event `json:"created"`
	Rejected int           `json:"rejected"`
}

// ImportICS adds every VEVENT of an iCalendar document as a draft, so
// daily and weekly rules are expanded like manual entries.
func (a *App) ImportICS(r io.Reader) (ImportResult, error) {
	drafts, err := ics.ParseDrafts(r, a.loc)
	if err != nil {
		return ImportResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	res := ImportResult{Created: make([]model.Event, 0)}
	next := a.state
	for _, d := range drafts {
		n, created, err := next.AddEvent(d)
		if err != nil {
			if !errors.Is(err, model.ErrInvalidEvent) {
				return res, err
			}
			res.Rejected++
			continue
		}
		next = n
		res.Created = append(res.Created, created...)
	}
	appLog.Info("ics import", "created", len(res.Created), "rejected", res.Rejected)
	if len(res.Created) == 0 {
		return res, nil
	}
	return res, a.commit(next)
}

// ImportICSURL downloads a calendar with f and imports it.
func (a *App) ImportICSURL(ctx context.Context, f *ics.Fetcher, url string) (ImportResult, error) {
	feed, err := f.Fetch(ctx, url)
	if err != nil {
		return ImportResult{}, err
	}
	return a.ImportICS(bytes.NewReader(feed.Body))
}

// Filtered returns the events matching q in collection order.
func (a *App) Filtered(q string) []model.Event {
	return query.FilterEvents(a.State().Events, q)
}

// ExportCSV writes the events matching q.
func (a *App) ExportCSV(w io.Writer, q string, includeIDs bool) error {
	return csvio.Export(w, a.Filtered(q), csvio.ExportOptions{IncludeID: includeIDs})
}

// ExportICS writes the events matching q as iCalendar.
func (a *App) ExportICS(w io.Writer, q string) error {
	return ics.Export(w, a.Filtered(q), a.loc)
}

// Rescan re-plans reminders without a collection change and returns
// the number of newly armed reminders.
func (a *App) Rescan() int {
	if a.sched == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sched.Sync(a.state.Events)
}

// StartReminderScan runs Rescan on the cron spec (e.g. "@every 1m").
func (a *App) StartReminderScan(spec string) error {
	if a.sched == nil {
		return nil
	}

	c := cron.New(cron.WithLocation(a.loc))
	if _, err := c.AddFunc(spec, func() {
		if n := a.Rescan(); n > 0 {
			appLog.Debug("reminder scan armed reminders", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("reminder scan %q: %w", spec, err)
	}

	a.mu.Lock()
	if a.cron != nil {
		a.cron.Stop()
	}
	a.cron = c
	a.mu.Unlock()

	c.Start()
	appLog.Info("reminder scan started", "spec", spec)
	return nil
}

// Close stops the reminder scan and cancels pending reminders.
func (a *App) Close() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
}
