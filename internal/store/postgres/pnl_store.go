package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/brazilquant/swapbot/internal/domain"
)

// PnLStore implements domain.PnLStore using PostgreSQL.
type PnLStore struct {
	pool *pgxpool.Pool
}

// NewPnLStore creates a new PnLStore backed by the given pool.
func NewPnLStore(pool *pgxpool.Pool) *PnLStore {
	return &PnLStore{pool: pool}
}

// Upsert inserts or updates a consolidated pnl row. The decision_id carries a
// unique index, so a recalculation for the same decision replaces the
// previous row rather than duplicating it.
func (s *PnLStore) Upsert(ctx context.Context, rec domain.PnLRecord) error {
	const query = `
		INSERT INTO pnl (
			pnl_id, decision_id,
			gross_proceeds, gross_cost, commission_total, slippage_cost,
			net_pnl, net_pnl_pct, is_final, calculated_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6,
			$7, $8, $9, $10
		)
		ON CONFLICT (decision_id) DO UPDATE SET
			gross_proceeds   = EXCLUDED.gross_proceeds,
			gross_cost       = EXCLUDED.gross_cost,
			commission_total = EXCLUDED.commission_total,
			slippage_cost    = EXCLUDED.slippage_cost,
			net_pnl          = EXCLUDED.net_pnl,
			net_pnl_pct      = EXCLUDED.net_pnl_pct,
			is_final         = EXCLUDED.is_final,
			calculated_at    = EXCLUDED.calculated_at`

	_, err := s.pool.Exec(ctx, query,
		rec.PnLID, rec.DecisionID,
		rec.GrossProceeds, rec.GrossCost, rec.CommissionTotal, rec.SlippageCost,
		rec.NetPnL, rec.NetPnLPct, rec.IsFinal, rec.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert pnl for decision %s: %w", rec.DecisionID, err)
	}
	return nil
}

// GetByDecision retrieves the pnl row for a decision.
func (s *PnLStore) GetByDecision(ctx context.Context, decisionID string) (domain.PnLRecord, error) {
	var rec domain.PnLRecord
	err := s.pool.QueryRow(ctx,
		`SELECT pnl_id, decision_id,
		        gross_proceeds, gross_cost, commission_total, slippage_cost,
		        net_pnl, net_pnl_pct, is_final, calculated_at
		 FROM pnl WHERE decision_id = $1`, decisionID,
	).Scan(
		&rec.PnLID, &rec.DecisionID,
		&rec.GrossProceeds, &rec.GrossCost, &rec.CommissionTotal, &rec.SlippageCost,
		&rec.NetPnL, &rec.NetPnLPct, &rec.IsFinal, &rec.CalculatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PnLRecord{}, domain.ErrNotFound
		}
		return domain.PnLRecord{}, fmt.Errorf("postgres: get pnl for decision %s: %w", decisionID, err)
	}
	return rec, nil
}

// SumNetPnL returns the total realized net pnl since the given time.
func (s *PnLStore) SumNetPnL(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(net_pnl), 0) FROM pnl
		 WHERE is_final AND calculated_at >= $1`, since,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: sum net pnl: %w", err)
	}
	return total, nil
}
