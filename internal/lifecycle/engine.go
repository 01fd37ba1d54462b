package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/eatmefirst/internal/model"
)

// ItemStore is the part of the item store the engine mutates.
type ItemStore interface {
	SetItemStatus(ctx context.Context, id int64, status model.Status, consumedAt *time.Time) error
	ExpireItemsBefore(ctx context.Context, day model.Date) (int64, error)
}

// Engine applies status transitions. Active is the only non-terminal status.
type Engine struct {
	store ItemStore
}

// NewEngine returns an engine mutating items through store.
func NewEngine(store ItemStore) *Engine {
	return &Engine{store: store}
}

// SweepExpired expires every active item whose expiry date is before today and
// returns how many were moved. Running it again on the same day is a no-op.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := e.store.ExpireItemsBefore(ctx, Today(now))
	if err != nil {
		return 0, fmt.Errorf("sweeping expired items: %w", err)
	}
	return n, nil
}

// MarkConsumed moves an active item to consumed, stamped with now.
func (e *Engine) MarkConsumed(ctx context.Context, id int64, now time.Time) error {
	if err := e.store.SetItemStatus(ctx, id, model.StatusConsumed, &now); err != nil {
		return fmt.Errorf("consuming item: %w", err)
	}
	return nil
}

// MarkWasted moves an active item to expired without a consumption time.
func (e *Engine) MarkWasted(ctx context.Context, id int64) error {
	if err := e.store.SetItemStatus(ctx, id, model.StatusExpired, nil); err != nil {
		return fmt.Errorf("wasting item: %w", err)
	}
	return nil
}
