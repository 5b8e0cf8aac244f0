package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brazilquant/swapbot/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Upsert inserts or updates an order leg keyed by order_id.
func (s *OrderStore) Upsert(ctx context.Context, rec domain.OrderRecord) error {
	const query = `
		INSERT INTO orders (
			order_id, decision_id, broker_order_id,
			symbol, side, quantity,
			filled_quantity, avg_fill_price,
			status, retry_count, error_code, error_message, execution_time_ms,
			created_at, submitted_at, filled_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8,
			$9, $10, $11, $12, $13,
			NOW(), $14, $15
		)
		ON CONFLICT (order_id) DO UPDATE SET
			broker_order_id   = EXCLUDED.broker_order_id,
			filled_quantity   = EXCLUDED.filled_quantity,
			avg_fill_price    = EXCLUDED.avg_fill_price,
			status            = EXCLUDED.status,
			retry_count       = EXCLUDED.retry_count,
			error_code        = EXCLUDED.error_code,
			error_message     = EXCLUDED.error_message,
			execution_time_ms = EXCLUDED.execution_time_ms,
			submitted_at      = EXCLUDED.submitted_at,
			filled_at         = EXCLUDED.filled_at`

	_, err := s.pool.Exec(ctx, query,
		rec.OrderID, rec.DecisionID, rec.BrokerOrderID,
		rec.Symbol, string(rec.Side), rec.Quantity,
		rec.FilledQuantity, rec.AvgFillPrice,
		string(rec.Status), rec.RetryCount, rec.ErrorCode, rec.ErrorMessage, rec.ExecutionTimeMs,
		rec.SubmittedAt, rec.FilledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert order %s: %w", rec.OrderID, err)
	}
	return nil
}

const orderSelectCols = `order_id, decision_id, broker_order_id,
	symbol, side, quantity,
	filled_quantity, avg_fill_price,
	status, retry_count, error_code, error_message, execution_time_ms,
	created_at, submitted_at, filled_at`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.OrderRecord, error) {
	var rec domain.OrderRecord
	var side, status string

	err := scanner.Scan(
		&rec.OrderID, &rec.DecisionID, &rec.BrokerOrderID,
		&rec.Symbol, &side, &rec.Quantity,
		&rec.FilledQuantity, &rec.AvgFillPrice,
		&status, &rec.RetryCount, &rec.ErrorCode, &rec.ErrorMessage, &rec.ExecutionTimeMs,
		&rec.CreatedAt, &rec.SubmittedAt, &rec.FilledAt,
	)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	rec.Side = domain.OrderSide(side)
	rec.Status = domain.ExecutionStatus(status)

	return rec, nil
}

// GetByID retrieves a single order leg by ID.
func (s *OrderStore) GetByID(ctx context.Context, orderID string) (domain.OrderRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE order_id = $1`, orderID)

	rec, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderRecord{}, domain.ErrNotFound
		}
		return domain.OrderRecord{}, fmt.Errorf("postgres: get order %s: %w", orderID, err)
	}
	return rec, nil
}

// ListByDecision returns every order leg belonging to a decision, oldest first.
func (s *OrderStore) ListByDecision(ctx context.Context, decisionID string) ([]domain.OrderRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE decision_id = $1 ORDER BY created_at ASC`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by decision: %w", err)
	}
	defer rows.Close()

	var recs []domain.OrderRecord
	for rows.Next() {
		rec, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
