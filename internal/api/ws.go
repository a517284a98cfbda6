package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/monitor"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// панель отдаётся с того же адреса, CORS как у SSE
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsCommand сообщение от браузера
type wsCommand struct {
	Type string `json:"type"` // "speech_done", "speech_cancel"
	Seq  uint64 `json:"seq,omitempty"`
}

// HandleWS обрабатывает WebSocket подключение. Исходящие события те же,
// что в SSE; входящие команды управляют озвучиванием.
// GET /api/ws
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	client := h.hub.AddClient("ws")
	defer h.hub.RemoveClient(client)

	readDone := make(chan struct{})
	go h.wsReadLoop(conn, readDone)

	for _, event := range []SSEEvent{
		newEvent(EventConnected, h.capabilities()),
		newEvent(EventSession, h.session.Status()),
		newEvent(monitor.EventState, h.monitor.State()),
	} {
		if !wsWrite(conn, event) {
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-readDone:
			return
		case <-client.done:
			return
		case event := <-client.events:
			if !wsWrite(conn, event) {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handlers) wsReadLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read failed", "error", err)
			}
			return
		}
		switch cmd.Type {
		case "speech_done":
			h.speech.Done(cmd.Seq)
		case "speech_cancel":
			h.speech.Cancel()
		default:
			logger.Debug("Unknown WebSocket command", "type", cmd.Type)
		}
	}
}

func wsWrite(conn *websocket.Conn, event SSEEvent) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(event); err != nil {
		logger.Debug("WebSocket write failed", "type", event.Type, "error", err)
		return false
	}
	return true
}
