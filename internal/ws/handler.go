// Package ws streams bus events (provisioning outcomes, device status
// changes, order lifecycle) to WebSocket consumers such as a POS frontend
// or a printing station.
package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/HerbHall/netvoucher/internal/auth"
	"github.com/HerbHall/netvoucher/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// streamedPrefixes selects which bus topics reach WebSocket clients.
// Internal topics stay internal.
var streamedPrefixes = []string{"provision.", "devices.", "orders.", "catalog."}

// Handler provides the WebSocket endpoint for real-time event streaming.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenService
	bus    plugin.EventBus
	logger *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes it to the event bus.
// A nil tokens service means auth is disabled and connections are open.
func NewHandler(tokens *auth.TokenService, bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		tokens: tokens,
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", h.handleEventStream)
}

// handleEventStream upgrades the connection and streams bus events until the
// client disconnects.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	operator := "anonymous"
	if h.tokens != nil {
		// Token rides a query parameter: the browser WS API cannot set headers.
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token parameter", http.StatusUnauthorized)
			return
		}
		claims, err := h.tokens.Validate(token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		operator = claims.Username
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Any origin is fine; the token is the gate.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		operator: operator,
		send:     make(chan Message, 256),
		logger:   h.logger,
	}

	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards streamable bus events to all connected clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.SubscribeAll(func(_ context.Context, event plugin.Event) {
		if !streamable(event.Topic) {
			return
		}
		h.hub.Broadcast(Message{
			Topic:     event.Topic,
			Source:    event.Source,
			Timestamp: event.Timestamp,
			Data:      event.Payload,
		})
	})

	h.logger.Info("subscribed to bus events for WebSocket broadcasting")
}

func streamable(topic string) bool {
	for _, prefix := range streamedPrefixes {
		if strings.HasPrefix(topic, prefix) {
			return true
		}
	}
	return false
}
