package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brazilquant/swapbot/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a new FillStore backed by the given pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Upsert inserts or updates a fill keyed by fill_id.
func (s *FillStore) Upsert(ctx context.Context, rec domain.FillRecord) error {
	const query = `
		INSERT INTO fills (
			fill_id, order_id, broker_deal_id,
			symbol, side, quantity, price,
			commission, swap, is_partial, ts
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11
		)
		ON CONFLICT (fill_id) DO UPDATE SET
			quantity   = EXCLUDED.quantity,
			price      = EXCLUDED.price,
			commission = EXCLUDED.commission,
			swap       = EXCLUDED.swap,
			is_partial = EXCLUDED.is_partial`

	_, err := s.pool.Exec(ctx, query,
		rec.FillID, rec.OrderID, rec.BrokerDealID,
		rec.Symbol, string(rec.Side), rec.Quantity, rec.Price,
		rec.Commission, rec.Swap, rec.IsPartial, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert fill %s: %w", rec.FillID, err)
	}
	return nil
}

// ListByOrder returns every fill belonging to an order, oldest first.
func (s *FillStore) ListByOrder(ctx context.Context, orderID string) ([]domain.FillRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT fill_id, order_id, broker_deal_id,
		        symbol, side, quantity, price,
		        commission, swap, is_partial, ts
		 FROM fills WHERE order_id = $1 ORDER BY ts ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills by order: %w", err)
	}
	defer rows.Close()

	var recs []domain.FillRecord
	for rows.Next() {
		var rec domain.FillRecord
		var side string
		if err := rows.Scan(
			&rec.FillID, &rec.OrderID, &rec.BrokerDealID,
			&rec.Symbol, &side, &rec.Quantity, &rec.Price,
			&rec.Commission, &rec.Swap, &rec.IsPartial, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		rec.Side = domain.OrderSide(side)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
