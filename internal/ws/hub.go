package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// Hub fans event payloads out to connected WebSocket subscribers. Delivery
// is fire-and-forget: there is no acknowledgment, and a connection that
// fails a write is closed and dropped.
type Hub struct {
	logger *logrus.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Handler upgrades the request to a WebSocket subscription and keeps it
// registered until the client goes away. Subscribers only listen; inbound
// data frames are discarded.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			h.logger.WithError(err).Warn("WebSocket accept failed")
			return
		}

		h.register(conn)
		defer h.unregister(conn)

		// CloseRead discards inbound frames and ends when the peer closes.
		ctx := conn.CloseRead(r.Context())
		<-ctx.Done()

		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}

// Broadcast sends payload to every subscriber. Individual write failures
// drop that subscriber but never fail the broadcast.
func (h *Hub) Broadcast(ctx context.Context, payload interface{}) error {
	for _, conn := range h.snapshot() {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(writeCtx, conn, payload)
		cancel()

		if err != nil {
			h.logger.WithError(err).Debug("Dropping unresponsive WebSocket subscriber")
			h.unregister(conn)
			_ = conn.CloseNow()
		}
	}
	return nil
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown closes every subscriber connection.
func (h *Hub) Shutdown() {
	for _, conn := range h.snapshot() {
		h.unregister(conn)
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	return conns
}
