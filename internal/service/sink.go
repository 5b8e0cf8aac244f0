// Package service wires the decision engine, the swap coordinator, and the
// persistence layer into the application-facing trading surface.
package service

import (
	"context"
	"fmt"

	"github.com/brazilquant/swapbot/internal/domain"
)

// StoreSink implements domain.PersistenceSink over the four concrete stores.
type StoreSink struct {
	decisions domain.DecisionStore
	orders    domain.OrderStore
	fills     domain.FillStore
	pnl       domain.PnLStore
}

// NewStoreSink creates a sink over the given stores.
func NewStoreSink(
	decisions domain.DecisionStore,
	orders domain.OrderStore,
	fills domain.FillStore,
	pnl domain.PnLStore,
) *StoreSink {
	return &StoreSink{
		decisions: decisions,
		orders:    orders,
		fills:     fills,
		pnl:       pnl,
	}
}

// SaveDecision upserts a decision row.
func (s *StoreSink) SaveDecision(ctx context.Context, rec domain.DecisionRecord) error {
	if err := s.decisions.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("service: save decision: %w", err)
	}
	return nil
}

// SaveOrder upserts an order leg row.
func (s *StoreSink) SaveOrder(ctx context.Context, rec domain.OrderRecord) error {
	if err := s.orders.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("service: save order: %w", err)
	}
	return nil
}

// SaveFill upserts a fill row.
func (s *StoreSink) SaveFill(ctx context.Context, rec domain.FillRecord) error {
	if err := s.fills.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("service: save fill: %w", err)
	}
	return nil
}

// SavePnL upserts a consolidated pnl row.
func (s *StoreSink) SavePnL(ctx context.Context, rec domain.PnLRecord) error {
	if err := s.pnl.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("service: save pnl: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PersistenceSink = (*StoreSink)(nil)
