package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Stream consumes the bridge's live tick feed over WebSocket and fans ticks
// out to a channel. It reconnects with a backoff until Close is called.
type Stream struct {
	url     string
	symbols []string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	ticks chan Tick
	done  chan struct{}
}

// NewStream creates a tick stream for the given symbols
func NewStream(url string, symbols []string) *Stream {
	return &Stream{
		url:     url,
		symbols: symbols,
		ticks:   make(chan Tick, 256),
		done:    make(chan struct{}),
	}
}

// Ticks returns the channel of streamed price updates
func (s *Stream) Ticks() <-chan Tick {
	return s.ticks
}

// Run connects and reads until the context is cancelled or Close is called,
// then closes the tick channel. Only Run writes to the channel, so closing it
// here cannot race a send. Tick consumers that fall behind lose updates
// rather than blocking the read loop.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.ticks)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		if err := s.connect(ctx); err != nil {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			case <-s.done:
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		s.readLoop()
	}
}

func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("tick stream dial failed: %w", err)
	}

	sub := map[string]interface{}{"action": "subscribe", "symbols": s.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("tick stream subscribe failed: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return fmt.Errorf("tick stream closed")
	}
	s.conn = conn
	s.mu.Unlock()
	return nil
}

func (s *Stream) readLoop() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var raw struct {
			Symbol string  `json:"symbol"`
			Bid    float64 `json:"bid"`
			Ask    float64 `json:"ask"`
			Time   int64   `json:"time"`
		}
		if err := json.Unmarshal(data, &raw); err != nil || raw.Symbol == "" {
			continue
		}

		tick := Tick{
			Symbol:    raw.Symbol,
			Bid:       raw.Bid,
			Ask:       raw.Ask,
			Timestamp: time.Unix(raw.Time, 0).UTC(),
		}
		select {
		case s.ticks <- tick:
		default:
			// Drop when the consumer is behind
		}
	}
}

// Close stops the stream. The running read loop notices the dropped
// connection, and Run closes the tick channel on its way out.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
}
