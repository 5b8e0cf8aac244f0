package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DecisionRecord is the persisted form of a swap decision.
type DecisionRecord struct {
	DecisionID  string
	ExecutionID string
	StrategyID  string
	Timestamp   time.Time

	FromSymbol    string
	ToSymbol      string
	DecisionType  DecisionType
	TriggerReason string

	CurrentState PositionState
	TargetState  PositionState

	PremiumPN      *float64
	SpreadCost     *float64
	NetOpportunity *float64
	Confidence     *float64

	ExpectedProfit *float64
	TakeProfit     *float64
	StopLoss       *float64
	MaxSlippage    *float64

	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// OrderRecord is the persisted form of one order leg.
type OrderRecord struct {
	OrderID    string
	DecisionID string

	BrokerOrderID *int64

	Symbol   string
	Side     OrderSide
	Quantity int64

	FilledQuantity int64
	AvgFillPrice   *float64

	Status          ExecutionStatus
	RetryCount      int
	ErrorCode       *int
	ErrorMessage    *string
	ExecutionTimeMs *int64

	CreatedAt   time.Time
	SubmittedAt *time.Time
	FilledAt    *time.Time
}

// FillRecord is the persisted form of one fill.
type FillRecord struct {
	FillID  string
	OrderID string

	BrokerDealID *int64

	Symbol   string
	Side     OrderSide
	Quantity int64
	Price    float64

	Commission decimal.Decimal
	Swap       decimal.Decimal

	IsPartial bool
	Timestamp time.Time
}

// PnLRecord is the persisted consolidated P&L for one decision. Money fields
// use decimal so rounding never drifts between the engine and the database.
type PnLRecord struct {
	PnLID      string
	DecisionID string

	GrossProceeds   decimal.Decimal
	GrossCost       decimal.Decimal
	CommissionTotal decimal.Decimal
	SlippageCost    decimal.Decimal
	NetPnL          decimal.Decimal
	NetPnLPct       decimal.Decimal

	IsFinal      bool
	CalculatedAt time.Time
}

// DecisionStore persists swap decisions.
type DecisionStore interface {
	Upsert(ctx context.Context, rec DecisionRecord) error
	GetByID(ctx context.Context, decisionID string) (DecisionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]DecisionRecord, error)
}

// OrderStore persists order legs.
type OrderStore interface {
	Upsert(ctx context.Context, rec OrderRecord) error
	GetByID(ctx context.Context, orderID string) (OrderRecord, error)
	ListByDecision(ctx context.Context, decisionID string) ([]OrderRecord, error)
}

// FillStore persists fills.
type FillStore interface {
	Upsert(ctx context.Context, rec FillRecord) error
	ListByOrder(ctx context.Context, orderID string) ([]FillRecord, error)
}

// PnLStore persists consolidated P&L rows.
type PnLStore interface {
	Upsert(ctx context.Context, rec PnLRecord) error
	GetByDecision(ctx context.Context, decisionID string) (PnLRecord, error)
	SumNetPnL(ctx context.Context, since time.Time) (decimal.Decimal, error)
}

// PersistenceSink is the narrow write-side surface the trading path uses.
// Every save is an idempotent upsert keyed by the record's own id, so the
// coordinator can replay saves without creating duplicates.
type PersistenceSink interface {
	SaveDecision(ctx context.Context, rec DecisionRecord) error
	SaveOrder(ctx context.Context, rec OrderRecord) error
	SaveFill(ctx context.Context, rec FillRecord) error
	SavePnL(ctx context.Context, rec PnLRecord) error
}
