package mt5

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brazilquant/swapbot/internal/domain"
)

const (
	// streamWriteWait is the time allowed to write a message to the bridge.
	streamWriteWait = 10 * time.Second

	// streamPongWait is the time allowed to read the next pong message.
	streamPongWait = 30 * time.Second

	// streamPingPeriod sends pings at this interval. Must be less than pongWait.
	streamPingPeriod = (streamPongWait * 9) / 10

	// streamReconnectDelay is the base delay before attempting to reconnect.
	streamReconnectDelay = 2 * time.Second

	// streamMaxReconnectDelay caps the exponential backoff.
	streamMaxReconnectDelay = 60 * time.Second
)

// TickHandler is called for every tick received over the stream.
type TickHandler func(domain.Quote)

// StreamClient is a WebSocket client for the bridge's real-time tick stream.
type StreamClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Tracked subscriptions for reconnection.
	subscribedSymbols []string

	tickHandlers []TickHandler
	handlerMu    sync.RWMutex

	// done is closed when the client shuts down.
	done chan struct{}
}

// NewStreamClient creates a new tick stream client.
//
// wsURL is the stream endpoint, e.g. "ws://localhost:8765/stream".
func NewStreamClient(wsURL string) *StreamClient {
	return &StreamClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection to the bridge.
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("mt5/stream: client is closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("mt5/stream: connect: %w", err)
	}

	s.conn = conn

	s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	go s.readLoop()
	go s.pingLoop()

	// Re-subscribe to any previously tracked symbols.
	if len(s.subscribedSymbols) > 0 {
		if err := s.sendSubscribe(s.subscribedSymbols); err != nil {
			return fmt.Errorf("mt5/stream: restore subscriptions: %w", err)
		}
	}

	return nil
}

// Subscribe asks the bridge to push ticks for the given symbols.
func (s *StreamClient) Subscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("mt5/stream: not connected")
	}

	if err := s.sendSubscribe(symbols); err != nil {
		return fmt.Errorf("mt5/stream: subscribe: %w", err)
	}

	existing := make(map[string]struct{}, len(s.subscribedSymbols))
	for _, sym := range s.subscribedSymbols {
		existing[sym] = struct{}{}
	}
	for _, sym := range symbols {
		if _, ok := existing[sym]; !ok {
			s.subscribedSymbols = append(s.subscribedSymbols, sym)
		}
	}

	return nil
}

// OnTick registers a handler that is called for every tick.
func (s *StreamClient) OnTick(handler TickHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.tickHandlers = append(s.tickHandlers, handler)
}

// Close shuts down the WebSocket connection.
func (s *StreamClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	close(s.done)

	if s.conn != nil {
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return s.conn.Close()
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendSubscribe sends a subscribe command. Caller must hold s.mu.
func (s *StreamClient) sendSubscribe(symbols []string) error {
	cmd := subscribeCmd{
		Cmd:     "subscribe",
		Symbols: symbols,
	}

	s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}

	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads ticks from the WebSocket and dispatches them to
// handlers. On disconnect it attempts reconnection.
func (s *StreamClient) readLoop() {
	defer func() {
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}

			s.reconnect()
			return
		}

		s.handleMessage(message)
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (s *StreamClient) pingLoop() {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses one raw tick and fans it out.
func (s *StreamClient) handleMessage(raw []byte) {
	var tick tickMessage
	if err := json.Unmarshal(raw, &tick); err != nil || tick.Symbol == "" {
		return
	}

	quote := domain.Quote{
		Symbol:    tick.Symbol,
		Bid:       tick.Bid,
		Ask:       tick.Ask,
		Last:      tick.Last,
		Volume:    tick.Volume,
		Timestamp: time.UnixMilli(tick.TimeMs),
	}

	s.handlerMu.RLock()
	handlers := s.tickHandlers
	s.handlerMu.RUnlock()

	for _, h := range handlers {
		h(quote)
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff.
func (s *StreamClient) reconnect() {
	delay := streamReconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := s.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > streamMaxReconnectDelay {
			delay = streamMaxReconnectDelay
		}
	}
}
