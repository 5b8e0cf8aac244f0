package domain

import "context"

// MT5 trade server return codes. The subset below is what the executor
// interprets; everything else is treated as a terminal rejection.
const (
	RetcodeDone        = 10009 // TRADE_RETCODE_DONE
	RetcodeDonePartial = 10010 // TRADE_RETCODE_DONE_PARTIAL

	RetcodeRequote      = 10004
	RetcodeNoConnection = 10006
	RetcodeInvalid      = 10013
	RetcodeMarketClosed = 10015
	RetcodeNoMoney      = 10016
	RetcodeConnection1  = 10027
	RetcodeConnection2  = 10028
	RetcodeConnection3  = 10029
	RetcodeTimeout1     = 10031
	RetcodeTimeout2     = 10032
)

// GatewayResponse is the broker's answer to an order submission.
type GatewayResponse struct {
	Retcode      int
	OrderID      int64
	DealID       int64
	FilledVolume float64
	FillPrice    float64
	Commission   float64
	Comment      string
}

// MarketDataProvider supplies live quotes. Implementations return
// ErrDataUnavailable (possibly wrapped) when a quote cannot be produced.
type MarketDataProvider interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// TradeGateway submits orders to the broker. SendOrder returns an error only
// for transport-level failures; broker-level rejections come back as a
// response with a non-success retcode.
type TradeGateway interface {
	SendOrder(ctx context.Context, req OrderRequest) (GatewayResponse, error)
	CancelOrder(ctx context.Context, brokerOrderID int64) (bool, error)
}
