package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is how long a single frame write may take before the
	// connection is considered dead.
	writeWait = 10 * time.Second

	// pongWait bounds how long we wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed carries only public, already-redacted governance events.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEvents upgrades the connection to a websocket and streams
// governance events observed from the subscription onward. Events
// published before the upgrade are not replayed.
//
// URL format: GET /api/v1/events
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Websocket upgrade failed", "err", err)
		return
	}

	sub := h.relay.Subscribe()
	h.metrics.SetRelaySubscribers(h.relay.SubscriberCount())
	h.log.Info("Event subscriber connected", slog.String("remote", r.RemoteAddr))

	defer func() {
		sub.Close()
		conn.Close()
		h.metrics.SetRelaySubscribers(h.relay.SubscriberCount())
		h.log.Info("Event subscriber disconnected", slog.String("remote", r.RemoteAddr))
	}()

	// Reader goroutine: we never expect payloads from the peer, but reads
	// must be drained for pong handling and close detection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				// The relay dropped us for falling behind.
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscriber too slow"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
