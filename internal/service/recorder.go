package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brazilquant/swapbot/internal/domain"
)

// Recorder persists completed executions: both order legs, their fills, and
// the consolidated pnl row. Every save is best effort; a persistence failure
// is logged and never surfaces to the trading path.
type Recorder struct {
	sink   domain.PersistenceSink
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder writing through the given sink.
func NewRecorder(sink domain.PersistenceSink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		sink:   sink,
		logger: logger.With(slog.String("component", "execution_recorder")),
		now:    time.Now,
	}
}

// RecordExecution writes every persistent artifact of one execution.
func (r *Recorder) RecordExecution(ctx context.Context, res domain.ExecutionResult) {
	r.saveLeg(ctx, res, res.SellOrder, res.SellSymbol, domain.OrderSideSell)
	r.saveLeg(ctx, res, res.BuyOrder, res.BuySymbol, domain.OrderSideBuy)

	// Decision status reflects the execution outcome. The upsert keeps the
	// original decision fields when the row already exists.
	status := "failed"
	var completedAt *time.Time
	if res.Status == domain.StatusFilled {
		status = "completed"
		now := r.now()
		completedAt = &now
	}
	dec := domain.DecisionRecord{
		DecisionID:   res.DecisionID,
		ExecutionID:  res.ExecutionID,
		StrategyID:   "on_pn_swap",
		Timestamp:    r.now(),
		FromSymbol:   res.SellSymbol,
		ToSymbol:     res.BuySymbol,
		DecisionType: domain.DecisionNoAction,
		CurrentState: domain.StateIdle,
		TargetState:  domain.StateIdle,
		Status:       status,
		CompletedAt:  completedAt,
	}
	if err := r.sink.SaveDecision(ctx, dec); err != nil {
		r.logger.Warn("decision status update failed",
			slog.String("decision_id", res.DecisionID),
			slog.String("error", err.Error()),
		)
	}

	if res.Status == domain.StatusFilled {
		r.savePnL(ctx, res)
	}
}

func (r *Recorder) saveLeg(ctx context.Context, res domain.ExecutionResult, leg *domain.OrderResult, symbol string, side domain.OrderSide) {
	if leg == nil {
		return
	}

	rec := domain.OrderRecord{
		OrderID:        leg.OrderID,
		DecisionID:     res.DecisionID,
		Symbol:         symbol,
		Side:           side,
		Quantity:       leg.FilledQuantity,
		FilledQuantity: leg.FilledQuantity,
		Status:         leg.Status,
		RetryCount:     res.RetryCount,
	}
	if leg.BrokerOrderID != 0 {
		id := leg.BrokerOrderID
		rec.BrokerOrderID = &id
	}
	if leg.AvgFillPrice > 0 {
		p := leg.AvgFillPrice
		rec.AvgFillPrice = &p
	}
	if leg.ErrorCode != 0 {
		code := leg.ErrorCode
		rec.ErrorCode = &code
	}
	if leg.ErrorMessage != "" {
		msg := leg.ErrorMessage
		rec.ErrorMessage = &msg
	}
	if leg.Latency > 0 {
		ms := leg.Latency.Milliseconds()
		rec.ExecutionTimeMs = &ms
	}
	if !leg.SubmittedAt.IsZero() {
		t := leg.SubmittedAt
		rec.SubmittedAt = &t
	}
	if !leg.CompletedAt.IsZero() && leg.Filled() {
		t := leg.CompletedAt
		rec.FilledAt = &t
	}

	if err := r.sink.SaveOrder(ctx, rec); err != nil {
		r.logger.Warn("order persist failed",
			slog.String("order_id", leg.OrderID),
			slog.String("error", err.Error()),
		)
		return
	}

	if !leg.Filled() {
		return
	}

	fill := domain.FillRecord{
		FillID:     uuid.New().String(),
		OrderID:    leg.OrderID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   leg.FilledQuantity,
		Price:      leg.AvgFillPrice,
		Commission: decimal.NewFromFloat(leg.Commission),
		Swap:       decimal.NewFromFloat(leg.Swap),
		IsPartial:  leg.Status == domain.StatusPartialFill,
		Timestamp:  leg.CompletedAt,
	}
	if leg.BrokerDealID != 0 {
		id := leg.BrokerDealID
		fill.BrokerDealID = &id
	}

	if err := r.sink.SaveFill(ctx, fill); err != nil {
		r.logger.Warn("fill persist failed",
			slog.String("order_id", leg.OrderID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Recorder) savePnL(ctx context.Context, res domain.ExecutionResult) {
	gross := decimal.Zero
	if res.SellOrder != nil {
		gross = decimal.NewFromFloat(res.SellOrder.FilledValue())
	}
	cost := decimal.NewFromFloat(res.TotalFilledValue)
	commission := decimal.NewFromFloat(res.TotalCommission)
	net := decimal.NewFromFloat(res.NetProceeds)

	pct := decimal.Zero
	if gross.IsPositive() {
		pct = net.Div(gross).Mul(decimal.NewFromInt(100))
	}

	rec := domain.PnLRecord{
		PnLID:           uuid.New().String(),
		DecisionID:      res.DecisionID,
		GrossProceeds:   gross,
		GrossCost:       cost,
		CommissionTotal: commission,
		SlippageCost:    decimal.NewFromFloat(res.SlippagePct),
		NetPnL:          net,
		NetPnLPct:       pct,
		IsFinal:         true,
		CalculatedAt:    r.now(),
	}

	if err := r.sink.SavePnL(ctx, rec); err != nil {
		r.logger.Warn("pnl persist failed",
			slog.String("decision_id", res.DecisionID),
			slog.String("error", err.Error()),
		)
	}
}
