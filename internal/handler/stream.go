package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/papertrade/internal/events"
)

const (
	streamBuffer = 32
	writeWait    = 5 * time.Second
)

// streamMessage is the frame written on every websocket stream.
type streamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type priceBatchView struct {
	At      time.Time         `json:"at"`
	Changes []priceChangeView `json:"changes"`
}

type simulationEventView struct {
	Running bool      `json:"running"`
	At      time.Time `json:"at"`
}

// StreamHandler serves websocket feeds of engine events.
type StreamHandler struct {
	events   *events.Broadcaster
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(b *events.Broadcaster, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		events:   b,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger,
	}
}

// Prices handles GET /ws/prices. Every simulation tick is sent as one
// "prices" message and every simulator start or stop as a "simulation"
// message.
func (h *StreamHandler) Prices(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	state := h.events.Simulation.Subscribe(streamBuffer)
	defer h.events.Simulation.Unsubscribe(state)
	sub := h.events.Prices.Subscribe(streamBuffer)
	defer h.events.Prices.Unsubscribe(sub)

	closed := watchClose(conn)
	for {
		var msg streamMessage
		select {
		case <-closed:
			return
		case batch, ok := <-sub.C():
			if !ok {
				return
			}
			msg = streamMessage{Type: "prices", Data: priceBatchView{
				At:      batch.At.UTC(),
				Changes: newPriceChangeViews(batch.Changes),
			}}
		case ev, ok := <-state.C():
			if !ok {
				return
			}
			msg = streamMessage{Type: "simulation", Data: simulationEventView{
				Running: ev.Running,
				At:      ev.At.UTC(),
			}}
		}
		if err := writeMessage(conn, msg); err != nil {
			return
		}
	}
}

// Executions handles GET /ws/executions. The caller receives the execution
// and cancellation events of its own orders.
func (h *StreamHandler) Executions(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.events.Orders.Subscribe(streamBuffer)
	defer h.events.Orders.Unsubscribe(sub)

	h.logger.Debug("execution stream opened", slog.String("user_id", userID))

	closed := watchClose(conn)
	for {
		select {
		case <-closed:
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if ev.Order == nil || ev.Order.UserID != userID {
				continue
			}
			msg := streamMessage{Type: string(ev.Kind), Data: newExecutionView(ev.Order, ev.Trade)}
			if err := writeMessage(conn, msg); err != nil {
				return
			}
		}
	}
}

// watchClose drains client frames and closes the returned channel once the
// connection fails or the client disconnects.
func watchClose(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

func writeMessage(conn *websocket.Conn, msg streamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
