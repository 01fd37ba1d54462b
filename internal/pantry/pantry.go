// Package pantry is the application service the HTTP API and the reminder
// scheduler talk to. It runs every command against the item store and keeps
// the dashboard read models current after each change.
package pantry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/eatmefirst/internal/lifecycle"
	"github.com/erazemk/eatmefirst/internal/model"
	"github.com/erazemk/eatmefirst/internal/stats"
)

// Store is the item store the service runs on.
type Store interface {
	lifecycle.ItemStore
	stats.Counter

	CreateItem(ctx context.Context, n model.NewItem) (*model.Item, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	UpdateItem(ctx context.Context, id int64, u model.ItemUpdate) error
	DeleteItem(ctx context.Context, id int64) error
	ListActiveItems(ctx context.Context) ([]model.Item, error)
	ListActiveItemsByCategory(ctx context.Context, category model.Category) ([]model.Item, error)
	ListExpiringItems(ctx context.Context, threshold model.Date) ([]model.Item, error)
	ListItems(ctx context.Context, status model.Status) ([]model.Item, error)
	SetItemPhoto(ctx context.Context, itemID int64, data []byte, mime string) error
	GetItemPhoto(ctx context.Context, itemID int64) ([]byte, string, error)
}

// Observer receives optional telemetry. metrics.Metrics satisfies it.
type Observer interface {
	ObserveSnapshot(s stats.Snapshot)
	ObserveCommand(command string)
	ObserveSweep(n int64)
}

type noopObserver struct{}

func (noopObserver) ObserveSnapshot(stats.Snapshot) {}
func (noopObserver) ObserveCommand(string)          {}
func (noopObserver) ObserveSweep(int64)             {}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithThreshold sets how many days ahead an item counts as expiring soon.
func WithThreshold(days int) Option {
	return func(s *Service) { s.threshold = days }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics attaches an observer for stats and command counts.
func WithMetrics(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// Service serializes commands against the store. Every successful mutation
// is followed by a sweep, a reload of the active and expiring lists and a
// fresh stats snapshot before the command returns.
type Service struct {
	store     Store
	engine    *lifecycle.Engine
	stats     *stats.Aggregator
	now       func() time.Time
	threshold int
	log       *slog.Logger
	observer  Observer

	mu          sync.Mutex
	initialized bool
	refreshedOn model.Date
	active      []model.Item
	expiring    []model.Item
	snapshot    stats.Snapshot
}

// New returns an uninitialized service. Call Initialize before anything else.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		now:       time.Now,
		threshold: lifecycle.DefaultExpiringSoonDays,
		log:       slog.Default(),
		observer:  noopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "pantry")
	s.engine = lifecycle.NewEngine(store)
	// Refresh sweeps before it counts, so the aggregator does not.
	s.stats = stats.NewAggregator(store, nil, s.threshold)
	return s
}

// Threshold returns the expiring-soon threshold in days.
func (s *Service) Threshold() int {
	return s.threshold
}

// Initialize sweeps overdue items and loads the read models.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return fmt.Errorf("initializing pantry: %w", err)
	}
	s.initialized = true
	s.log.Info("pantry initialized",
		"active", s.snapshot.TotalActive,
		"expiring_soon", s.snapshot.ExpiringSoon,
		"threshold_days", s.threshold)
	return nil
}

// refresh must be called with mu held.
func (s *Service) refresh(ctx context.Context) error {
	now := s.now()

	swept, err := s.engine.SweepExpired(ctx, now)
	if err != nil {
		return err
	}
	if swept > 0 {
		s.log.Info("expired overdue items", "count", swept)
		s.observer.ObserveSweep(swept)
	}

	active, err := s.store.ListActiveItems(ctx)
	if err != nil {
		return err
	}
	expiring, err := s.store.ListExpiringItems(ctx, lifecycle.Threshold(now, s.threshold))
	if err != nil {
		return err
	}
	snapshot, err := s.stats.Snapshot(ctx, now)
	if err != nil {
		return err
	}

	s.active = active
	s.expiring = expiring
	s.snapshot = snapshot
	s.refreshedOn = lifecycle.Today(now)
	s.observer.ObserveSnapshot(snapshot)
	return nil
}

// current refreshes the read models if the calendar day has changed since
// the last refresh, so no read sees an active item past its expiry date.
// It must be called with mu held.
func (s *Service) current(ctx context.Context) error {
	if !s.initialized {
		return model.ErrStoreUnavailable
	}
	today := lifecycle.Today(s.now())
	if !today.After(s.refreshedOn) {
		return nil
	}
	if err := s.refresh(ctx); err != nil {
		return fmt.Errorf("refreshing for %s: %w", today, err)
	}
	return nil
}

// mutate runs fn under the command lock and refreshes the read models when
// it succeeds.
func (s *Service) mutate(ctx context.Context, command string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return model.ErrStoreUnavailable
	}
	if err := fn(); err != nil {
		return err
	}
	s.observer.ObserveCommand(command)

	if err := s.refresh(ctx); err != nil {
		return fmt.Errorf("refreshing after %s: %w", command, err)
	}
	return nil
}

// AddItem creates an active item and returns its ID.
func (s *Service) AddItem(ctx context.Context, n model.NewItem) (int64, error) {
	var id int64
	err := s.mutate(ctx, "add", func() error {
		item, err := s.store.CreateItem(ctx, n)
		if err != nil {
			return err
		}
		id = item.ID
		s.log.Info("item added", "id", id, "name", item.Name, "expiry_date", item.ExpiryDate)
		return nil
	})
	return id, err
}

// EditItem applies a partial update to an item.
func (s *Service) EditItem(ctx context.Context, id int64, u model.ItemUpdate) error {
	return s.mutate(ctx, "edit", func() error {
		return s.store.UpdateItem(ctx, id, u)
	})
}

// DeleteItem permanently removes an item in any status.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	return s.mutate(ctx, "delete", func() error {
		if err := s.store.DeleteItem(ctx, id); err != nil {
			return err
		}
		s.log.Info("item deleted", "id", id)
		return nil
	})
}

// ConsumeItem marks an active item as eaten.
func (s *Service) ConsumeItem(ctx context.Context, id int64) error {
	return s.mutate(ctx, "consume", func() error {
		return s.engine.MarkConsumed(ctx, id, s.now())
	})
}

// WasteItem marks an active item as thrown away.
func (s *Service) WasteItem(ctx context.Context, id int64) error {
	return s.mutate(ctx, "waste", func() error {
		return s.engine.MarkWasted(ctx, id)
	})
}

// SetPhoto stores or replaces an item's processed photo.
func (s *Service) SetPhoto(ctx context.Context, id int64, data []byte, mime string) error {
	return s.mutate(ctx, "photo", func() error {
		return s.store.SetItemPhoto(ctx, id, data, mime)
	})
}

// RefreshStats recomputes the read models and returns the stats snapshot.
// A failure is logged and the previous snapshot is kept.
func (s *Service) RefreshStats(ctx context.Context) stats.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return s.snapshot
	}
	if err := s.refresh(ctx); err != nil {
		s.log.Error("refreshing stats", "error", err)
	}
	return s.snapshot
}

// Active returns the active items, soonest expiry first. The list is cached
// between commands and rebuilt on the first read of a new day.
func (s *Service) Active(ctx context.Context) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.current(ctx); err != nil {
		return nil, err
	}
	return clone(s.active), nil
}

// ExpiringSoon returns the active items within the threshold, cached the
// same way as Active.
func (s *Service) ExpiringSoon(ctx context.Context) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.current(ctx); err != nil {
		return nil, err
	}
	return clone(s.expiring), nil
}

// Stats returns the last computed snapshot. Use RefreshStats for a current
// one.
func (s *Service) Stats() stats.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// ActiveNames returns the names of active items, used as recipe search terms.
func (s *Service) ActiveNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.current(ctx); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.active))
	for _, item := range s.active {
		names = append(names, item.Name)
	}
	return names, nil
}

// ExpiringBy returns active items expiring on or before threshold.
func (s *Service) ExpiringBy(ctx context.Context, threshold model.Date) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.current(ctx); err != nil {
		return nil, err
	}
	return s.store.ListExpiringItems(ctx, threshold)
}

// ActiveIn returns active items in one category, read from the store.
func (s *Service) ActiveIn(ctx context.Context, category model.Category) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.current(ctx); err != nil {
		return nil, err
	}
	return s.store.ListActiveItemsByCategory(ctx, category)
}

// Item returns one item or ErrNotFound.
func (s *Service) Item(ctx context.Context, id int64) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.current(ctx); err != nil {
		return nil, err
	}
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", id, model.ErrNotFound)
	}
	return item, nil
}

// History returns items with the given status, or all items if status is
// empty.
func (s *Service) History(ctx context.Context, status model.Status) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.current(ctx); err != nil {
		return nil, err
	}
	return s.store.ListItems(ctx, status)
}

// Photo returns an item's photo and MIME type, or ErrNotFound if it has none.
func (s *Service) Photo(ctx context.Context, id int64) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, "", model.ErrStoreUnavailable
	}
	data, mime, err := s.store.GetItemPhoto(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", fmt.Errorf("photo for item %d: %w", id, model.ErrNotFound)
	}
	return data, mime, nil
}

func clone(items []model.Item) []model.Item {
	if items == nil {
		return []model.Item{}
	}
	out := make([]model.Item, len(items))
	copy(out, items)
	return out
}
