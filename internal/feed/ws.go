package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// PriceTick is one streaming price observation.
type PriceTick struct {
	Network   string  `json:"network"`
	Token     string  `json:"token"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"ts"`
}

// TickHandler is called for every price tick received on the stream.
type TickHandler func(PriceTick)

// wsCommand is the subscribe/unsubscribe envelope sent to the stream.
type wsCommand struct {
	Type   string   `json:"type"`
	Tokens []string `json:"tokens"`
}

// StreamClient is a WebSocket client for a streaming price source. It
// manages the connection lifecycle, re-subscribes after reconnects, and
// dispatches ticks to registered handlers.
type StreamClient struct {
	wsURL  string
	logger *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	// tokens to restore on reconnect.
	tokens []string

	handlerMu sync.RWMutex
	handlers  []TickHandler

	done chan struct{}
}

// NewStreamClient creates a new stream client for the given WebSocket URL.
func NewStreamClient(wsURL string, logger *slog.Logger) *StreamClient {
	return &StreamClient{
		wsURL:  wsURL,
		logger: logger.With(slog.String("component", "price_stream")),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Previously requested subscriptions are restored.
func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("feed/ws: client closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed/ws: connect: %w", err)
	}

	s.conn = conn

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readLoop()
	go s.pingLoop()

	if len(s.tokens) > 0 {
		if err := s.sendCommand(wsCommand{Type: "subscribe", Tokens: s.tokens}); err != nil {
			return fmt.Errorf("feed/ws: restore subscription: %w", err)
		}
	}

	return nil
}

// Subscribe subscribes to streaming prices for the given tokens.
func (s *StreamClient) Subscribe(tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("feed/ws: not connected")
	}

	if err := s.sendCommand(wsCommand{Type: "subscribe", Tokens: tokens}); err != nil {
		return fmt.Errorf("feed/ws: subscribe: %w", err)
	}

	s.tokens = append(s.tokens, tokens...)
	return nil
}

// OnTick registers a handler that is called for every received price tick.
func (s *StreamClient) OnTick(handler TickHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Close shuts down the connection and stops the loops.
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

// sendCommand sends a JSON command to the WebSocket. Caller must hold s.mu.
func (s *StreamClient) sendCommand(cmd wsCommand) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop reads ticks and dispatches them to handlers. On disconnect it
// reconnects with exponential backoff until Close is called.
func (s *StreamClient) readLoop() {
	backoff := reconnectDelay

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

		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.RLock()
			closed := s.closed
			s.mu.RUnlock()
			if closed {
				return
			}

			s.logger.Warn("stream disconnected, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("backoff", backoff),
			)

			select {
			case <-s.done:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxReconnectDelay {
				backoff = maxReconnectDelay
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := s.Connect(ctx)
			cancel()
			if err != nil {
				s.logger.Error("stream reconnect failed", slog.String("error", err.Error()))
				continue
			}
			// Connect started a fresh readLoop; this one retires.
			return
		}

		backoff = reconnectDelay

		var tick PriceTick
		if err := json.Unmarshal(data, &tick); err != nil {
			s.logger.Debug("unparseable stream message", slog.String("error", err.Error()))
			continue
		}
		if tick.Price <= 0 || tick.Token == "" || tick.Network == "" {
			continue
		}

		s.handlerMu.RLock()
		handlers := s.handlers
		s.handlerMu.RUnlock()
		for _, h := range handlers {
			h(tick)
		}
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (s *StreamClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
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

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
