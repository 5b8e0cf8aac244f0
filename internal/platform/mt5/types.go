package mt5

import (
	"time"

	"github.com/brazilquant/swapbot/internal/domain"
)

// symbolInfoResponse mirrors the bridge's /symbol_info payload, which in turn
// mirrors the terminal's symbol tick structure.
type symbolInfoResponse struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Volume int64   `json:"volume"`
	TimeMs int64   `json:"time_msc"`
}

func (r symbolInfoResponse) toQuote() domain.Quote {
	ts := time.UnixMilli(r.TimeMs)
	if r.TimeMs == 0 {
		ts = time.Now()
	}
	return domain.Quote{
		Symbol:    r.Symbol,
		Bid:       r.Bid,
		Ask:       r.Ask,
		Last:      r.Last,
		Volume:    r.Volume,
		Timestamp: ts,
	}
}

// orderSendRequest mirrors the bridge's /order_send payload.
type orderSendRequest struct {
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"` // "buy" or "sell"
	Volume    float64 `json:"volume"`
	Deviation int     `json:"deviation"`
	Magic     int     `json:"magic"`
	Comment   string  `json:"comment"`
}

// orderSendResponse mirrors the terminal's OrderSendResult.
type orderSendResponse struct {
	Retcode    int     `json:"retcode"`
	Order      int64   `json:"order"`
	Deal       int64   `json:"deal"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	Commission float64 `json:"commission"`
	Comment    string  `json:"comment"`
}

func (r orderSendResponse) toGatewayResponse() domain.GatewayResponse {
	return domain.GatewayResponse{
		Retcode:      r.Retcode,
		OrderID:      r.Order,
		DealID:       r.Deal,
		FilledVolume: r.Volume,
		FillPrice:    r.Price,
		Commission:   r.Commission,
		Comment:      r.Comment,
	}
}

// orderCancelRequest mirrors the bridge's /order_cancel payload.
type orderCancelRequest struct {
	Order int64 `json:"order"`
}

type orderCancelResponse struct {
	Retcode int    `json:"retcode"`
	Comment string `json:"comment"`
}

// errorResponse is the bridge's generic error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// tickMessage is one tick pushed over the bridge's WebSocket stream.
type tickMessage struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Last   float64 `json:"last"`
	Volume int64   `json:"volume"`
	TimeMs int64   `json:"time_msc"`
}

// subscribeCmd asks the stream to push ticks for the given symbols.
type subscribeCmd struct {
	Cmd     string   `json:"cmd"`
	Symbols []string `json:"symbols"`
}
