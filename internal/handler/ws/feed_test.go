package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"SignalFlow/internal/domain/models"
	"SignalFlow/pkg/logger"
)

func TestFeedBroadcastsToSubscribers(t *testing.T) {
	h := NewFeedHandler(logger.Nop())
	e := echo.New()
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/feed"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.Clients() != 1 {
		t.Fatalf("clients = %d", h.Clients())
	}

	h.Broadcast(models.SignalEvent{Kind: models.EventConfirmed, Symbol: "SOLUSDT", Direction: models.Long})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.SignalEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind != models.EventConfirmed || got.Symbol != "SOLUSDT" {
		t.Fatalf("event = %+v", got)
	}

	_ = conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for h.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.Clients() != 0 {
		t.Fatalf("client not removed")
	}
}

func TestBroadcastNeverBlocks(t *testing.T) {
	h := NewFeedHandler(logger.Nop())
	c := &client{send: make(chan models.SignalEvent, 1)}
	h.clients[c] = struct{}{}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Broadcast(models.SignalEvent{Kind: models.EventCandidate})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on a full client")
	}
	if len(c.send) != 1 {
		t.Fatalf("buffered = %d", len(c.send))
	}
}
