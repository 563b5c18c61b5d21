package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/forgo/occasions/api/internal/model"
	"github.com/forgo/occasions/api/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Clients only send control frames
	maxMessageSize = 512
)

// LiveHandler pushes occasion notifications over a WebSocket
type LiveHandler struct {
	hub      *service.NotificationHub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewLiveHandler creates a new live handler. Origins are checked against
// allowedOrigins; "*" accepts any origin.
func NewLiveHandler(hub *service.NotificationHub, allowedOrigins []string, logger *slog.Logger) *LiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &LiveHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
			Error: writeUpgradeError,
		},
	}
}

func writeUpgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	var problem *model.ProblemDetails
	if status == http.StatusForbidden {
		problem = model.NewForbiddenError(reason.Error())
	} else {
		problem = model.NewBadRequestError(reason.Error())
		problem.Status = status
	}
	problem.Instance = r.URL.Path
	problem.WriteJSON(w)
}

// Serve handles GET /v1/live
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	subscriberID := uuid.New().String()
	sub := h.hub.Subscribe(subscriberID)

	go h.readPump(conn, subscriberID)
	h.writePump(conn, sub)
}

// readPump discards client messages and keeps the read deadline fresh.
// It unsubscribes when the peer goes away, which stops writePump.
func (h *LiveHandler) readPump(conn *websocket.Conn, subscriberID string) {
	defer h.hub.Unsubscribe(subscriberID)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				h.logger.Warn("websocket read error",
					slog.String("subscriber_id", subscriberID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

func (h *LiveHandler) writePump(conn *websocket.Conn, sub *service.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.Events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
