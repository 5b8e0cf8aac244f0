package backtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/brazilquant/swapbot/internal/domain"
)

// SimGateway serves quotes from the current tick and fills market orders
// instantly at the quoted price plus the cost model's frictions. It
// implements both domain.MarketDataProvider and domain.TradeGateway.
type SimGateway struct {
	mu    sync.RWMutex
	tick  Tick
	costs CostModel

	nextOrderID int64
	nextDealID  int64
}

// NewSimGateway creates a simulated gateway with the given cost model.
func NewSimGateway(costs CostModel) *SimGateway {
	return &SimGateway{costs: costs}
}

// Advance moves the gateway to the next tick.
func (g *SimGateway) Advance(t Tick) {
	g.mu.Lock()
	g.tick = t
	g.mu.Unlock()
}

// GetQuote returns the current tick's quote for symbol.
func (g *SimGateway) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	switch symbol {
	case g.tick.ON.Symbol:
		return g.tick.ON, nil
	case g.tick.PN.Symbol:
		return g.tick.PN, nil
	}
	return domain.Quote{}, fmt.Errorf("backtest: unknown symbol %s: %w", symbol, domain.ErrDataUnavailable)
}

// SendOrder fills the full quantity at the current quote adjusted by the cost
// model, always reporting a done retcode.
func (g *SimGateway) SendOrder(ctx context.Context, req domain.OrderRequest) (domain.GatewayResponse, error) {
	q, err := g.GetQuote(ctx, req.Symbol)
	if err != nil {
		return domain.GatewayResponse{}, err
	}

	buy := req.Side == domain.OrderSideBuy
	quoted := q.Bid
	if buy {
		quoted = q.Ask
	}
	fillPrice := g.costs.FillPrice(quoted, buy)
	filledValue := float64(req.Quantity) * fillPrice

	g.mu.Lock()
	g.nextOrderID++
	g.nextDealID++
	orderID, dealID := g.nextOrderID, g.nextDealID
	g.mu.Unlock()

	return domain.GatewayResponse{
		Retcode:      domain.RetcodeDone,
		OrderID:      orderID,
		DealID:       dealID,
		FilledVolume: float64(req.Quantity),
		FillPrice:    fillPrice,
		Commission:   g.costs.Commission(filledValue),
		Comment:      "simulated fill",
	}, nil
}

// CancelOrder always succeeds; simulated fills never leave a remainder.
func (g *SimGateway) CancelOrder(ctx context.Context, brokerOrderID int64) (bool, error) {
	return true, nil
}
