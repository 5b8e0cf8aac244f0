package domain

import "time"

// AuditEvent is one structured entry in the execution audit trail. Fields
// carries the event-specific payload (attempt numbers, error codes, fills).
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	Event       string         `json:"event"`
	ExecutionID string         `json:"execution_id"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// ErrorDetails captures why an execution ended in a non-success status.
type ErrorDetails struct {
	Reason    string          `json:"reason"`
	LegStatus ExecutionStatus `json:"leg_status,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// ExecutionResult is the complete outcome of one two-leg swap execution.
// It is computed at most once per decision ID and is immutable once cached.
type ExecutionResult struct {
	DecisionID  string
	ExecutionID string
	Status      ExecutionStatus

	SellSymbol string
	BuySymbol  string

	SellOrder *OrderResult
	BuyOrder  *OrderResult

	TotalFilledValue float64
	TotalCommission  float64
	NetProceeds      float64
	SlippagePct      float64

	Duration   time.Duration
	RetryCount int

	ErrorDetails *ErrorDetails
	AuditTrail   []AuditEvent
}

// ExecutionMetrics is an aggregate counter snapshot for the coordinator.
type ExecutionMetrics struct {
	Total             int64
	Success           int64
	Failed            int64
	Retries           int64
	BreakerTrips      int64
	BreakerState      string
	CachedExecutions  int
}
