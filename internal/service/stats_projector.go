package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/util"
)

const defaultStatsMaxAge = 5 * time.Second

// StatsProjector keeps the admin dashboard numbers. Every order change
// triggers a full recount; the in-memory patch applied before the recount
// only makes the numbers move sooner and is overwritten by it. Reads recount
// once the last successful recount is older than maxAge, so a lost change
// event delays the numbers by at most that long.
type StatsProjector struct {
	orders    OrderRepository
	mu        sync.RWMutex
	stats     models.OrderStats
	loaded    bool
	fetchedAt time.Time
	maxAge    time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewStatsProjector(orders OrderRepository) *StatsProjector {
	return &StatsProjector{
		orders: orders,
		maxAge: defaultStatsMaxAge,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// Stats returns the current numbers. Stale or missing numbers are recounted
// first; if that recount fails, previously loaded numbers are still served.
func (p *StatsProjector) Stats(ctx context.Context) (models.OrderStats, error) {
	p.mu.RLock()
	stats, loaded, fetchedAt := p.stats, p.loaded, p.fetchedAt
	p.mu.RUnlock()
	if loaded && p.now().Sub(fetchedAt) < p.maxAge {
		return stats, nil
	}
	if err := p.Refresh(ctx); err != nil {
		if loaded {
			p.logger.Warn("Stats refresh failed, serving stale values", zap.Error(err))
			return stats, nil
		}
		return models.OrderStats{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats, nil
}

// Refresh recounts from the record store.
func (p *StatsProjector) Refresh(ctx context.Context) error {
	stats, err := p.orders.OrderStats(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.stats = stats
	p.loaded = true
	p.fetchedAt = p.now()
	p.mu.Unlock()
	return nil
}

// HandleChange is the change feed callback for the orders collection.
// Duplicate or out-of-order events are harmless because the recount wins.
func (p *StatsProjector) HandleChange(ctx context.Context, ev *models.ChangeEvent) error {
	if ev.Collection != models.CollectionOrders {
		return nil
	}
	if ev.EventType == models.ChangeInsert {
		p.patchInsert(ev.Record)
	}
	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn("Stats refresh failed, keeping patched values", zap.String("event_id", ev.EventID), zap.Error(err))
		return err
	}
	return nil
}

func (p *StatsProjector) patchInsert(raw json.RawMessage) {
	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return
	}
	p.stats.Total++
	switch o.Status {
	case models.OrderStatusPending, models.OrderStatusConfirmed:
		p.stats.Processing++
	case models.OrderStatusDelivered:
		p.stats.Delivered++
		p.stats.Revenue += o.TotalPrice
	}
}
