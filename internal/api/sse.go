package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/metrics"
	"github.com/pv/precog-panel/internal/monitor"
	"github.com/pv/precog-panel/internal/speech"
)

// Типы событий, кроме событий монитора (state, alert, realtime)
const (
	EventConnected    = "connected"
	EventSpeech       = "speech"
	EventSpeechCancel = "speech_cancel"
	EventSession      = "session"
	EventPreferences  = "preferences"
)

const clientBuffer = 10

// SSEHub управляет подключениями браузеров (SSE и WebSocket)
type SSEHub struct {
	mu      sync.RWMutex
	clients map[*hubClient]bool
}

type hubClient struct {
	transport string
	events    chan SSEEvent
	done      chan struct{}
}

// SSEEvent событие для отправки клиенту
type SSEEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSSEHub создаёт новый hub
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[*hubClient]bool),
	}
}

// AddClient регистрирует клиента. transport только для логов (sse, ws).
func (h *SSEHub) AddClient(transport string) *hubClient {
	client := &hubClient{
		transport: transport,
		events:    make(chan SSEEvent, clientBuffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()

	metrics.SetPushClients(n)
	logger.Debug("Push client connected", "transport", transport, "total_clients", n)
	return client
}

// RemoveClient удаляет клиента
func (h *SSEHub) RemoveClient(client *hubClient) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	close(client.done)
	metrics.SetPushClients(n)
	logger.Debug("Push client disconnected", "transport", client.transport, "total_clients", n)
}

// Broadcast отправляет событие всем клиентам. Медленный клиент теряет событие.
func (h *SSEHub) Broadcast(event SSEEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.events <- event:
		default:
			logger.Warn("Push client event buffer full, dropping event",
				"transport", client.transport, "type", event.Type)
		}
	}
}

// Publish реализует monitor.Publisher
func (h *SSEHub) Publish(event string, data any) {
	h.Broadcast(newEvent(event, data))
}

// Speak передаёт сегмент браузеру, который озвучивает его и
// отвечает POST /api/speech/done.
func (h *SSEHub) Speak(u speech.Utterance) {
	h.Publish(EventSpeech, u)
}

// Cancel прерывает текущее озвучивание в браузере
func (h *SSEHub) Cancel() {
	h.Publish(EventSpeechCancel, nil)
}

// ClientCount возвращает количество подключённых клиентов
func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func newEvent(typ string, data any) SSEEvent {
	return SSEEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// HandleSSE обрабатывает SSE подключение
// GET /api/events
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "SSE not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Для nginx

	client := h.hub.AddClient("sse")
	defer h.hub.RemoveClient(client)

	// приветствие и текущее состояние, чтобы браузеру не ждать тика
	h.sendSSEEvent(w, newEvent(EventConnected, h.capabilities()))
	h.sendSSEEvent(w, newEvent(EventSession, h.session.Status()))
	h.sendSSEEvent(w, newEvent(monitor.EventState, h.monitor.State()))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case event := <-client.events:
			h.sendSSEEvent(w, event)
			flusher.Flush()
		}
	}
}

// sendSSEEvent отправляет одно SSE событие
func (h *Handlers) sendSSEEvent(w http.ResponseWriter, event SSEEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal SSE event", "type", event.Type, "error", err)
		return
	}

	fmt.Fprintf(w, "id: %s\n", event.ID)
	fmt.Fprintf(w, "event: %s\n", event.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (h *Handlers) capabilities() map[string]any {
	return map[string]any{
		"pollInterval":     h.pollInterval.Milliseconds(),
		"realtimeInterval": h.realtimeInterval.Milliseconds(),
		"readNotification": h.settings.ReadNotification(),
	}
}
