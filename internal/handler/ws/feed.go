// Package ws streams signal lifecycle events to websocket subscribers.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/service/metrics"
	"SignalFlow/pkg/logger"
)

const (
	clientBuffer = 32
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan models.SignalEvent
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// FeedHandler is a broadcast hub. Slow subscribers lose events rather than
// holding up the pipeline.
type FeedHandler struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *logger.Logger
}

func NewFeedHandler(log *logger.Logger) *FeedHandler {
	metrics.Register()
	return &FeedHandler{clients: make(map[*client]struct{}), log: log.Component("feed")}
}

func (h *FeedHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/feed", h.Handle)
}

// Broadcast queues ev for every subscriber without blocking.
func (h *FeedHandler) Broadcast(ev models.SignalEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.log.Debug("feed client slow, dropping event", logger.String("kind", string(ev.Kind)))
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *FeedHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *FeedHandler) Handle(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.Error(err))
		return nil
	}
	cl := &client{conn: conn, send: make(chan models.SignalEvent, clientBuffer)}
	h.add(cl)
	h.log.Info("feed client connected", logger.String("remote", c.RealIP()))

	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

func (h *FeedHandler) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.FeedClients.Set(float64(n))
}

func (h *FeedHandler) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.FeedClients.Set(float64(n))
}

// readLoop discards client frames and returns when the peer goes away.
func (h *FeedHandler) readLoop(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.log.Info("feed client disconnected")
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *FeedHandler) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				h.log.Debug("feed write failed", logger.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *FeedHandler) Close() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
	metrics.FeedClients.Set(0)
}
