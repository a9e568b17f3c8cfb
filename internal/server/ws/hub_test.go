package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/relay"
)

func httptestHandler(hub *Hub) http.Handler {
	return http.HandlerFunc(hub.HandleWS)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSubscribeDrivesRegistry(t *testing.T) {
	registry := relay.NewRegistry()
	hub := NewHub(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(httptestHandler(hub))
	defer ts.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(ts.URL, "http"))

	handshake := domain.Handshake{ClientType: "web", Version: "1.0", UserID: "7"}
	if err := conn.WriteJSON(handshake); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	sub := domain.SubscribeRequest{
		Type:        domain.MessageTypeSubscribe,
		Instruments: []string{"NSE:INFY", "NSE:TCS"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	waitFor(t, func() bool { return len(registry.Instruments()) == 2 })

	// A second subscribe replaces the first wholesale.
	sub.Instruments = []string{"NSE:SBIN"}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("write resubscribe: %v", err)
	}
	waitFor(t, func() bool {
		keys := registry.Instruments()
		return len(keys) == 1 && keys[0] == "NSE:SBIN"
	})

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 && len(registry.Instruments()) == 0 })
}

func TestDeliverSendsQuoteUpdateFrame(t *testing.T) {
	registry := relay.NewRegistry()
	hub := NewHub(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(httptestHandler(hub))
	defer ts.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(ts.URL, "http"))

	if err := conn.WriteJSON(domain.Handshake{ClientType: "web", Version: "1.0", UserID: "7"}); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	if err := conn.WriteJSON(domain.SubscribeRequest{
		Type:        domain.MessageTypeSubscribe,
		Instruments: []string{"NSE:INFY"},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	var connID string
	waitFor(t, func() bool {
		for id := range registry.Interests() {
			connID = id
			return true
		}
		return false
	})

	hub.Deliver(connID, domain.QuoteUpdateBatch{
		Type:   domain.MessageTypeQuoteUpdate,
		Quotes: []domain.Quote{{Instrument: "NSE:INFY", LastPrice: 1500}},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Errorf("frame type = %d, want text", msgType)
	}

	var batch domain.QuoteUpdateBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if batch.Type != domain.MessageTypeQuoteUpdate {
		t.Errorf("type = %q, want quote_update", batch.Type)
	}
	if len(batch.Quotes) != 1 || batch.Quotes[0].LastPrice != 1500 {
		t.Errorf("quotes = %+v", batch.Quotes)
	}
}

func TestMalformedSubscribeGetsErrorFrame(t *testing.T) {
	registry := relay.NewRegistry()
	hub := NewHub(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := httptest.NewServer(httptestHandler(hub))
	defer ts.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(ts.URL, "http"))

	if err := conn.WriteJSON(domain.Handshake{ClientType: "web", Version: "1.0", UserID: "7"}); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	if err := conn.WriteJSON(domain.SubscribeRequest{
		Type:        domain.MessageTypeSubscribe,
		Instruments: []string{"no-colon-here"},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]string
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame["type"] != "error" || frame["error"] == "" {
		t.Errorf("frame = %v, want error frame", frame)
	}
	if len(registry.Instruments()) != 0 {
		t.Error("malformed subscribe reached the registry")
	}
}

func TestDeliverDuringDisconnectDoesNotPanic(t *testing.T) {
	registry := relay.NewRegistry()
	hub := NewHub(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	batch := domain.QuoteUpdateBatch{
		Type:   domain.MessageTypeQuoteUpdate,
		Quotes: []domain.Quote{{Instrument: "NSE:INFY", LastPrice: 1500}},
	}

	// Interleave deliveries with disconnects. The send channel is tiny so
	// most deliveries hit the drop path while the unregister closes it.
	for i := 0; i < 200; i++ {
		c := &client{hub: hub, send: make(chan []byte, 1), id: fmt.Sprintf("conn-%d", i)}
		hub.register <- c

		var wg sync.WaitGroup
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				hub.Deliver(id, batch)
			}
		}(c.id)

		hub.unregister <- c
		wg.Wait()
	}

	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestShutdownClosesNewConnections(t *testing.T) {
	registry := relay.NewRegistry()
	hub := NewHub(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(runDone)
	}()

	ts := httptest.NewServer(httptestHandler(hub))
	defer ts.Close()

	cancel()
	<-runDone

	// A connection arriving after shutdown must be closed, not parked on
	// the register channel forever.
	conn := dial(t, "ws"+strings.TrimPrefix(ts.URL, "http"))
	if err := conn.WriteJSON(domain.Handshake{ClientType: "web", Version: "1.0", UserID: "7"}); err != nil {
		t.Fatalf("write handshake: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the server to close the connection after shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after shutdown", hub.ClientCount())
	}
}
