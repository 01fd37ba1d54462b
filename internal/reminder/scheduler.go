package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/eatmefirst/internal/lifecycle"
	"github.com/erazemk/eatmefirst/internal/model"
)

// lastSentKey is the settings key holding the date of the last reminder run.
const lastSentKey = "reminder_last_sent"

// Source lists active items expiring on or before a date.
type Source interface {
	ExpiringBy(ctx context.Context, threshold model.Date) ([]model.Item, error)
}

// State remembers the last run across restarts.
type State interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Observer counts reminder runs by outcome.
type Observer interface {
	ObserveReminder(outcome string)
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithHour sets the local hour of day the reminder fires.
func WithHour(hour int) Option {
	return func(s *Scheduler) { s.hour = hour }
}

// WithThreshold sets how many days ahead items are included.
func WithThreshold(days int) Option {
	return func(s *Scheduler) { s.threshold = days }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithState persists the last run date so a restart does not send twice.
func WithState(state State) Option {
	return func(s *Scheduler) { s.state = state }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// Scheduler sends one reminder a day at a fixed hour.
type Scheduler struct {
	source    Source
	notifier  Notifier
	log       *slog.Logger
	hour      int
	threshold int
	now       func() time.Time
	state     State
	observer  Observer

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastSent model.Date
}

// NewScheduler creates a scheduler reading from source and delivering through
// notifier. A nil notifier drops reminders.
func NewScheduler(source Source, notifier Notifier, log *slog.Logger, opts ...Option) *Scheduler {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	s := &Scheduler{
		source:    source,
		notifier:  notifier,
		log:       log.With("component", "reminder"),
		hour:      9,
		threshold: lifecycle.DefaultExpiringSoonDays,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the scheduler in the background until Stop or ctx is done. If
// today's reminder time has already passed without a run, it fires at once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("reminder scheduler already running")
		return
	}

	s.loadLastSent(ctx)

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(childCtx, s.done)

	s.log.Info("reminder scheduler started", "hour", s.hour, "threshold_days", s.threshold)
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	s.log.Info("reminder scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		wait := s.NextRun(s.now()).Sub(s.now())
		if s.due(s.now()) {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("sending reminder", "error", err)
			// Skip to the next slot.
			s.markSent(ctx, lifecycle.Today(s.now()))
		}
	}
}

// NextRun returns the next reminder time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// due reports whether today's slot has passed without a run.
func (s *Scheduler) due(now time.Time) bool {
	s.mu.Lock()
	last := s.lastSent
	s.mu.Unlock()

	today := lifecycle.Today(now)
	return now.Hour() >= s.hour && !last.Equal(today)
}

// RunOnce composes and delivers today's reminder. It reports whether a
// reminder was sent; nothing is sent when no item is expiring.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	now := s.now()
	today := lifecycle.Today(now)

	items, err := s.source.ExpiringBy(ctx, today.AddDays(s.threshold))
	if err != nil {
		s.observe("failed")
		return false, fmt.Errorf("listing expiring items: %w", err)
	}

	r, ok := Compose(Group(items, now))
	if !ok {
		s.log.Debug("nothing expiring, no reminder sent")
		s.observe("empty")
		s.markSent(ctx, today)
		return false, nil
	}

	if err := s.notifier.Notify(ctx, r); err != nil {
		s.observe("failed")
		return false, fmt.Errorf("delivering reminder: %w", err)
	}

	s.observe("sent")
	s.markSent(ctx, today)
	s.log.Info("reminder sent", "items", len(items))
	return true, nil
}

func (s *Scheduler) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveReminder(outcome)
	}
}

func (s *Scheduler) loadLastSent(ctx context.Context) {
	if s.state == nil {
		return
	}
	v, err := s.state.GetSetting(ctx, lastSentKey)
	if err != nil {
		s.log.Warn("loading last reminder date", "error", err)
		return
	}
	if v == "" {
		return
	}
	d, err := model.ParseDate(v)
	if err != nil {
		s.log.Warn("ignoring stored reminder date", "value", v, "error", err)
		return
	}
	s.lastSent = d
}

func (s *Scheduler) markSent(ctx context.Context, day model.Date) {
	s.mu.Lock()
	s.lastSent = day
	s.mu.Unlock()

	if s.state == nil {
		return
	}
	if err := s.state.PutSetting(ctx, lastSentKey, day.String()); err != nil {
		s.log.Warn("storing last reminder date", "error", err)
	}
}
