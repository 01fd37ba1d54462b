// Package stats aggregates inventory counts for the dashboard.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/eatmefirst/internal/lifecycle"
	"github.com/erazemk/eatmefirst/internal/model"
)

// Snapshot is a point-in-time summary of the inventory.
type Snapshot struct {
	TotalActive  int     `json:"total_active"`
	ExpiringSoon int     `json:"expiring_soon"`
	Consumed     int     `json:"consumed"`
	Expired      int     `json:"expired"`
	WasteRate    float64 `json:"waste_rate"`
}

// Total returns the number of items the snapshot accounts for.
func (s Snapshot) Total() int {
	return s.TotalActive + s.Consumed + s.Expired
}

// Counter is the read side of the item store the aggregator needs.
type Counter interface {
	CountItemsByStatus(ctx context.Context) (model.StatusCounts, error)
	CountExpiringItems(ctx context.Context, threshold model.Date) (int, error)
}

// Sweeper expires overdue items before counting.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Aggregator computes snapshots on demand. Nothing is cached.
type Aggregator struct {
	counter   Counter
	sweeper   Sweeper
	threshold int
}

// NewAggregator returns an aggregator that counts items expiring within
// thresholdDays as expiring soon. sweeper may be nil if the caller sweeps.
func NewAggregator(counter Counter, sweeper Sweeper, thresholdDays int) *Aggregator {
	return &Aggregator{counter: counter, sweeper: sweeper, threshold: thresholdDays}
}

// Snapshot sweeps expired items and returns current counts.
func (a *Aggregator) Snapshot(ctx context.Context, now time.Time) (Snapshot, error) {
	if a.sweeper != nil {
		if _, err := a.sweeper.SweepExpired(ctx, now); err != nil {
			return Snapshot{}, err
		}
	}

	counts, err := a.counter.CountItemsByStatus(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("computing stats: %w", err)
	}

	soon, err := a.counter.CountExpiringItems(ctx, lifecycle.Threshold(now, a.threshold))
	if err != nil {
		return Snapshot{}, fmt.Errorf("computing stats: %w", err)
	}

	return Snapshot{
		TotalActive:  counts.Active,
		ExpiringSoon: soon,
		Consumed:     counts.Consumed,
		Expired:      counts.Expired,
		WasteRate:    WasteRate(counts.Consumed, counts.Expired),
	}, nil
}

// WasteRate returns the share of finished items that were wasted, or 0 when
// nothing has been finished yet.
func WasteRate(consumed, expired int) float64 {
	if consumed+expired == 0 {
		return 0
	}
	return float64(expired) / float64(consumed+expired)
}
