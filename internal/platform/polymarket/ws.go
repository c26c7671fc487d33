package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/whalewatch/engine/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second
)

// TradeHandler is called for every trade event received on the market channel.
type TradeHandler func(domain.RawTrade)

// WSClient is a WebSocket client for the Polymarket CLOB market channel.
// It covers a single connection: dial, subscribe, read until failure. The
// caller owns the reconnect policy and re-dials through a fresh Connect
// after Run returns.
type WSClient struct {
	wsURL string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	handlerMu sync.RWMutex
	handlers  []TradeHandler

	done chan struct{}
}

// NewWSClient creates a new WebSocket client for the given endpoint.
//
// wsURL is the CLOB market channel, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// OnTrade registers a handler invoked for every decoded trade event.
// Handlers must be registered before Connect.
func (w *WSClient) OnTrade(handler TradeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Connect establishes the WebSocket connection. Any previous connection is
// dropped first.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	w.conn = conn
	return nil
}

// Subscribe sends a market-channel subscription for the given asset IDs.
// The server accepts repeat subscriptions, so callers can send the newly
// discovered assets alone rather than the full set.
func (w *WSClient) Subscribe(assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	sub := WSSubscription{
		Type:     "market",
		AssetIDs: assetIDs,
		Channel:  "trades",
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("polymarket/ws: marshal subscription: %w", err)
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}

	return nil
}

// Run reads from the connection until the context is canceled, Close is
// called, or the connection fails. A connection failure returns an error
// wrapping ErrWSDisconnect so the caller can reconnect.
func (w *WSClient) Run(ctx context.Context) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	pingDone := make(chan struct{})
	defer close(pingDone)
	go w.pingLoop(conn, pingPeriod, pingDone)

	// Unblock ReadMessage when the context ends.
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-readCtx.Done():
		case <-w.done:
		}
		conn.SetReadDeadline(time.Now())
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-w.done:
				return nil
			default:
			}
			return fmt.Errorf("polymarket/ws: read: %w (%w)", err, domain.ErrWSDisconnect)
		}

		w.handleMessage(message)
	}
}

// Close shuts down the connection permanently.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// pingLoop sends periodic ping messages to keep the connection alive. The
// write happens under w.mu: gorilla/websocket allows only one concurrent
// writer, and Subscribe may fire at any time for newly discovered assets.
func (w *WSClient) pingLoop(conn *websocket.Conn, period time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleMessage decodes a raw frame and dispatches trade events. Frames may
// carry a single object or an array of objects; anything unparseable or of
// another event type is silently dropped.
func (w *WSClient) handleMessage(raw []byte) {
	var batch []json.RawMessage
	if err := json.Unmarshal(raw, &batch); err != nil {
		batch = []json.RawMessage{raw}
	}

	for _, item := range batch {
		var msg WSTradeMessage
		if err := json.Unmarshal(item, &msg); err != nil {
			continue
		}
		if msg.EventType != "" && msg.EventType != "trade" && msg.EventType != "last_trade_price" {
			continue
		}
		if msg.AssetID == "" || msg.Price == 0 || msg.Size == 0 {
			continue
		}

		trade := msg.ToRawTrade()

		w.handlerMu.RLock()
		handlers := w.handlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(trade)
		}
	}
}
