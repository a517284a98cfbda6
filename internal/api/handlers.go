package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pv/precog-panel/internal/chart"
	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/monitor"
	"github.com/pv/precog-panel/internal/precog"
	"github.com/pv/precog-panel/internal/review"
	"github.com/pv/precog-panel/internal/session"
	"github.com/pv/precog-panel/internal/speech"
	"github.com/pv/precog-panel/internal/storage"
)

// Deps зависимости обработчиков
type Deps struct {
	Session      *session.Session
	Monitor      *monitor.Monitor
	Client       *precog.Client
	Review       *review.Workflow
	Charts       *chart.Adapter
	Settings     *storage.Settings
	Speech       *speech.Queue
	Hub          *SSEHub
	Location     *time.Location
	PollInterval time.Duration
}

type Handlers struct {
	session  *session.Session
	monitor  *monitor.Monitor
	client   *precog.Client
	review   *review.Workflow
	charts   *chart.Adapter
	settings *storage.Settings
	speech   *speech.Queue
	hub      *SSEHub
	loc      *time.Location

	pollInterval     time.Duration
	realtimeInterval time.Duration
}

func NewHandlers(deps Deps) *Handlers {
	loc := deps.Location
	if loc == nil {
		loc = precog.Location
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewSSEHub()
	}
	return &Handlers{
		session:          deps.Session,
		monitor:          deps.Monitor,
		client:           deps.Client,
		review:           deps.Review,
		charts:           deps.Charts,
		settings:         deps.Settings,
		speech:           deps.Speech,
		hub:              hub,
		loc:              loc,
		pollInterval:     deps.PollInterval,
		realtimeInterval: monitor.RealtimeInterval,
	}
}

// Hub returns the push hub the handlers broadcast through.
func (h *Handlers) Hub() *SSEHub { return h.hub }

func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeUpstreamError пишет ошибку обращения к PRECOG: ответ сервера как 502,
// отсутствие ключа как 401.
func (h *Handlers) writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoToken):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	default:
		h.writeError(w, http.StatusBadGateway, err.Error())
	}
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

// GetSession возвращает состояние сессии
// GET /api/session
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.session.Status())
}

// Login задаёт учётные данные. Ключ запрашивается асинхронно;
// с ?wait=true ответ приходит после завершения запроса.
// POST /api/session
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}
	if req.UserName == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "userName and password required")
		return
	}

	if err := h.session.SetCredentials(req.UserName, req.Password); err != nil {
		if errors.Is(err, session.ErrAuthenticating) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		if err := h.session.Wait(r.Context()); err != nil {
			h.writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		st := h.session.Status()
		if !st.Authenticated {
			h.writeJSONStatus(w, http.StatusUnauthorized, st)
			return
		}
		h.writeJSON(w, st)
		return
	}

	h.writeJSONStatus(w, http.StatusAccepted, h.session.Status())
}

// Logout сбрасывает ключ и останавливает опрос
// DELETE /api/session
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()
	h.writeJSON(w, h.session.Status())
}

// PublishSession рассылает изменение сессии браузерам
func (h *Handlers) PublishSession(st session.Status) {
	if st.Error != "" {
		logger.Warn("Authentication failed", "user", st.UserName, "error", st.Error)
	}
	h.hub.Publish(EventSession, st)
}
