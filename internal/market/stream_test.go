package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// tickServer upgrades one connection, drains the subscribe message and then
// floods ticks until the client hangs up
func tickServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for {
			msg := fmt.Sprintf(`{"symbol":"EURUSD","bid":1.0850,"ask":1.0851,"time":%d}`, time.Now().Unix())
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
	}))
}

func TestStreamCloseWhileTicksFlowing(t *testing.T) {
	srv := tickServer(t)
	defer srv.Close()

	stream := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"EURUSD"})

	runDone := make(chan error, 1)
	go func() { runDone <- stream.Run(context.Background()) }()

	// Wait for a tick so the read loop is live and mid-flood
	select {
	case tick := <-stream.Ticks():
		if tick.Symbol != "EURUSD" {
			t.Errorf("unexpected tick symbol %q", tick.Symbol)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no tick arrived")
	}

	stream.Close()

	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("run should return nil after close, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after close")
	}

	// The tick channel drains and closes once the producer is gone
	for range stream.Ticks() {
	}

	// Closing twice is a no-op
	stream.Close()
}

func TestStreamRunStopsOnContextCancel(t *testing.T) {
	srv := tickServer(t)
	defer srv.Close()

	stream := NewStream("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"EURUSD"})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- stream.Run(ctx) }()

	select {
	case <-stream.Ticks():
	case <-time.After(5 * time.Second):
		t.Fatal("no tick arrived")
	}

	cancel()
	stream.Close() // drop the connection so the read loop returns

	select {
	case err := <-runDone:
		// Both exit paths are armed at this point
		if err != nil && err != context.Canceled {
			t.Errorf("unexpected run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
