package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// ExecutionStatus tracks the lifecycle of an order leg or a whole swap.
type ExecutionStatus string

const (
	StatusPending     ExecutionStatus = "pending"
	StatusSubmitted   ExecutionStatus = "submitted"
	StatusPartialFill ExecutionStatus = "partial_fill"
	StatusFilled      ExecutionStatus = "filled"
	StatusCancelled   ExecutionStatus = "cancelled"
	StatusRejected    ExecutionStatus = "rejected"
	StatusFailed      ExecutionStatus = "failed"
	StatusTimeout     ExecutionStatus = "timeout"
)

// OrderRequest describes one market-order leg submitted to the trade gateway.
// The executor never mutates a caller-owned request.
type OrderRequest struct {
	OrderID     string
	Symbol      string
	Side        OrderSide
	Quantity    int64
	MaxSlippage float64       // percent
	Timeout     time.Duration // per attempt
}

// OrderResult is the terminal outcome of one order leg. Retried attempts
// overwrite it until a terminal status is reached.
type OrderResult struct {
	OrderID        string
	Status         ExecutionStatus
	FilledQuantity int64
	AvgFillPrice   float64
	Commission     float64
	Swap           float64
	BrokerOrderID  int64
	BrokerDealID   int64
	ErrorCode      int
	ErrorMessage   string
	Latency        time.Duration
	SubmittedAt    time.Time
	CompletedAt    time.Time
}

// Filled reports whether the leg reached an acceptable terminal state: a full
// fill, or a partial fill that met the acceptance threshold.
func (r OrderResult) Filled() bool {
	return r.Status == StatusFilled || r.Status == StatusPartialFill
}

// FilledValue returns filled quantity times average fill price.
func (r OrderResult) FilledValue() float64 {
	return float64(r.FilledQuantity) * r.AvgFillPrice
}
