// Package mt5 talks to a MetaTrader 5 terminal through a local HTTP/WebSocket
// bridge. The bridge exposes the terminal's symbol ticks and order endpoints
// as JSON; broker retcodes are passed through untouched so the executor can
// interpret them.
package mt5

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brazilquant/swapbot/internal/domain"
)

// Client is the REST client for the MT5 bridge. It implements both
// domain.MarketDataProvider and domain.TradeGateway.
type Client struct {
	baseURL    string
	magic      int
	deviation  int
	httpClient *http.Client
}

// NewClient creates a new bridge client.
//
// baseURL is the bridge root, e.g. "http://localhost:8765". magic tags every
// order sent by this bot so the terminal can tell them apart from manual
// trades; deviation is the maximum price deviation in points the terminal may
// fill at.
func NewClient(baseURL string, magic, deviation int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		magic:     magic,
		deviation: deviation,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetQuote returns the latest tick for symbol. A missing or stale symbol is
// reported as domain.ErrDataUnavailable.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	path := "/symbol_info?symbol=" + url.QueryEscape(symbol)

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("mt5: symbol info %s: %w: %v", symbol, domain.ErrDataUnavailable, err)
	}

	var info symbolInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.Quote{}, fmt.Errorf("mt5: decode symbol info: %w", err)
	}

	if info.Bid <= 0 || info.Ask <= 0 {
		return domain.Quote{}, fmt.Errorf("mt5: empty tick for %s: %w", symbol, domain.ErrDataUnavailable)
	}

	return info.toQuote(), nil
}

// SendOrder submits a market order through the bridge. Transport failures are
// returned as errors; broker rejections come back as a GatewayResponse with a
// non-success retcode.
func (c *Client) SendOrder(ctx context.Context, req domain.OrderRequest) (domain.GatewayResponse, error) {
	payload := orderSendRequest{
		Symbol:    req.Symbol,
		Action:    strings.ToLower(string(req.Side)),
		Volume:    float64(req.Quantity),
		Deviation: c.deviation,
		Magic:     c.magic,
		Comment:   req.OrderID,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/order_send", payload)
	if err != nil {
		return domain.GatewayResponse{}, fmt.Errorf("mt5: order send: %w", err)
	}

	var resp orderSendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.GatewayResponse{}, fmt.Errorf("mt5: decode order result: %w", err)
	}

	return resp.toGatewayResponse(), nil
}

// CancelOrder cancels the unfilled remainder of a broker order. It returns
// true when the terminal acknowledged the cancel.
func (c *Client) CancelOrder(ctx context.Context, brokerOrderID int64) (bool, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/order_cancel", orderCancelRequest{Order: brokerOrderID})
	if err != nil {
		return false, fmt.Errorf("mt5: order cancel %d: %w", brokerOrderID, err)
	}

	var resp orderCancelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("mt5: decode cancel result: %w", err)
	}

	return resp.Retcode == domain.RetcodeDone, nil
}

// Ping verifies the bridge is reachable and attached to a logged-in terminal.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/health", nil); err != nil {
		return fmt.Errorf("mt5: ping: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, sends, and reads an HTTP request against the bridge.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		_ = json.Unmarshal(respBody, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("bridge HTTP %d: %s", resp.StatusCode, apiErr.Error)
	}

	return respBody, nil
}
