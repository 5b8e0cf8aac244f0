package mt5

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brazilquant/swapbot/internal/domain"
)

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/symbol_info", r.URL.Path)
		assert.Equal(t, "PETR3", r.URL.Query().Get("symbol"))
		json.NewEncoder(w).Encode(symbolInfoResponse{
			Symbol: "PETR3", Bid: 34.98, Ask: 35.02, Last: 35.00,
			Volume: 45000, TimeMs: 1767349800000,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20260101, 10, time.Second)

	q, err := c.GetQuote(context.Background(), "PETR3")
	require.NoError(t, err)
	assert.Equal(t, "PETR3", q.Symbol)
	assert.InDelta(t, 34.98, q.Bid, 1e-9)
	assert.InDelta(t, 35.02, q.Ask, 1e-9)
	assert.Equal(t, int64(45000), q.Volume)
	assert.Equal(t, time.UnixMilli(1767349800000), q.Timestamp)
}

func TestGetQuote_EmptyTick(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(symbolInfoResponse{Symbol: "PETR3"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20260101, 10, time.Second)

	_, err := c.GetQuote(context.Background(), "PETR3")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestGetQuote_BridgeDown(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 20260101, 10, 200*time.Millisecond)

	_, err := c.GetQuote(context.Background(), "PETR3")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestSendOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order_send", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req orderSendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "PETR3", req.Symbol)
		assert.Equal(t, "sell", req.Action)
		assert.InDelta(t, 100.0, req.Volume, 1e-9)
		assert.Equal(t, 20260101, req.Magic)
		assert.Equal(t, 10, req.Deviation)
		assert.Equal(t, "ord-1", req.Comment)

		json.NewEncoder(w).Encode(orderSendResponse{
			Retcode: domain.RetcodeDone, Order: 7001, Deal: 8001,
			Volume: 100, Price: 34.98, Commission: 1.25, Comment: "done",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20260101, 10, time.Second)

	resp, err := c.SendOrder(context.Background(), domain.OrderRequest{
		OrderID: "ord-1", Symbol: "PETR3", Side: domain.OrderSideSell, Quantity: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RetcodeDone, resp.Retcode)
	assert.Equal(t, int64(7001), resp.OrderID)
	assert.Equal(t, int64(8001), resp.DealID)
	assert.InDelta(t, 34.98, resp.FillPrice, 1e-9)
	assert.InDelta(t, 1.25, resp.Commission, 1e-9)
}

func TestSendOrder_BrokerRejectionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderSendResponse{
			Retcode: domain.RetcodeNoMoney, Comment: "no money",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20260101, 10, time.Second)

	resp, err := c.SendOrder(context.Background(), domain.OrderRequest{
		OrderID: "ord-2", Symbol: "PETR3", Side: domain.OrderSideBuy, Quantity: 100,
	})
	require.NoError(t, err, "rejections ride the response, not the error")
	assert.Equal(t, domain.RetcodeNoMoney, resp.Retcode)
}

func TestSendOrder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "terminal not connected"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20260101, 10, time.Second)

	_, err := c.SendOrder(context.Background(), domain.OrderRequest{
		OrderID: "ord-3", Symbol: "PETR3", Side: domain.OrderSideBuy, Quantity: 100,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal not connected")
}

func TestCancelOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order_cancel", r.URL.Path)
		var req orderCancelRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(7001), req.Order)
		json.NewEncoder(w).Encode(orderCancelResponse{Retcode: domain.RetcodeDone})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20260101, 10, time.Second)

	ok, err := c.CancelOrder(context.Background(), 7001)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCancelOrder_NotAcknowledged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderCancelResponse{Retcode: domain.RetcodeInvalid, Comment: "unknown order"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20260101, 10, time.Second)

	ok, err := c.CancelOrder(context.Background(), 9999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20260101, 10, time.Second)
	assert.NoError(t, c.Ping(context.Background()))

	srv.Close()
	assert.Error(t, c.Ping(context.Background()))
}
