package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brazilquant/swapbot/internal/domain"
)

// DecisionStore implements domain.DecisionStore using PostgreSQL.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a new DecisionStore backed by the given pool.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Upsert inserts or updates a decision row keyed by decision_id.
func (s *DecisionStore) Upsert(ctx context.Context, rec domain.DecisionRecord) error {
	const query = `
		INSERT INTO swap_decisions (
			decision_id, execution_id, strategy_id, ts,
			from_symbol, to_symbol, decision_type, trigger_reason,
			current_state, target_state,
			premium_pn, spread_cost, net_opportunity, confidence,
			expected_profit, take_profit, stop_loss, max_slippage,
			status, created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, NOW(), NOW(), $20
		)
		ON CONFLICT (decision_id) DO UPDATE SET
			execution_id = EXCLUDED.execution_id,
			status       = EXCLUDED.status,
			updated_at   = NOW(),
			completed_at = EXCLUDED.completed_at`

	_, err := s.pool.Exec(ctx, query,
		rec.DecisionID, rec.ExecutionID, rec.StrategyID, rec.Timestamp,
		rec.FromSymbol, rec.ToSymbol, string(rec.DecisionType), rec.TriggerReason,
		string(rec.CurrentState), string(rec.TargetState),
		rec.PremiumPN, rec.SpreadCost, rec.NetOpportunity, rec.Confidence,
		rec.ExpectedProfit, rec.TakeProfit, rec.StopLoss, rec.MaxSlippage,
		rec.Status, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert decision %s: %w", rec.DecisionID, err)
	}
	return nil
}

const decisionSelectCols = `decision_id, execution_id, strategy_id, ts,
	from_symbol, to_symbol, decision_type, trigger_reason,
	current_state, target_state,
	premium_pn, spread_cost, net_opportunity, confidence,
	expected_profit, take_profit, stop_loss, max_slippage,
	status, created_at, updated_at, completed_at`

func scanDecisionFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.DecisionRecord, error) {
	var rec domain.DecisionRecord
	var decisionType, currentState, targetState string

	err := scanner.Scan(
		&rec.DecisionID, &rec.ExecutionID, &rec.StrategyID, &rec.Timestamp,
		&rec.FromSymbol, &rec.ToSymbol, &decisionType, &rec.TriggerReason,
		&currentState, &targetState,
		&rec.PremiumPN, &rec.SpreadCost, &rec.NetOpportunity, &rec.Confidence,
		&rec.ExpectedProfit, &rec.TakeProfit, &rec.StopLoss, &rec.MaxSlippage,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt,
	)
	if err != nil {
		return domain.DecisionRecord{}, err
	}

	rec.DecisionType = domain.DecisionType(decisionType)
	rec.CurrentState = domain.PositionState(currentState)
	rec.TargetState = domain.PositionState(targetState)

	return rec, nil
}

// GetByID retrieves a single decision by ID.
func (s *DecisionStore) GetByID(ctx context.Context, decisionID string) (domain.DecisionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+decisionSelectCols+` FROM swap_decisions WHERE decision_id = $1`, decisionID)

	rec, err := scanDecisionFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DecisionRecord{}, domain.ErrNotFound
		}
		return domain.DecisionRecord{}, fmt.Errorf("postgres: get decision %s: %w", decisionID, err)
	}
	return rec, nil
}

// ListRecent returns the most recent decisions, newest first.
func (s *DecisionStore) ListRecent(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+decisionSelectCols+` FROM swap_decisions
		 ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent decisions: %w", err)
	}
	defer rows.Close()

	var recs []domain.DecisionRecord
	for rows.Next() {
		rec, err := scanDecisionFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan decision: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
