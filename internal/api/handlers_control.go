package api

import (
	"errors"
	"net/http"

	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/monitor"
	"github.com/pv/precog-panel/internal/precog"
	"github.com/pv/precog-panel/internal/storage"
)

// === Panel Control Types ===

type windowRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type deepLinkRequest struct {
	DeviceID string `json:"deviceId"`
	IssueID  string `json:"issueId"`
}

type speechDoneRequest struct {
	Seq uint64 `json:"seq"`
}

// === Panel Control Handlers ===

// GetState возвращает полное состояние панели
// GET /api/state
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.monitor.State())
}

// GetWindow возвращает окно дат выборки issues
// GET /api/window
func (h *Handlers) GetWindow(w http.ResponseWriter, r *http.Request) {
	from, to := h.monitor.Window()
	h.writeJSON(w, monitor.Window{From: precog.Time{Time: from}, To: precog.Time{Time: to}})
}

// SetWindow меняет окно дат (формат 2006-01-02T15:04:05, локальное время)
// PUT /api/window
func (h *Handlers) SetWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}
	from, err := precog.ParseTime(req.From)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	to, err := precog.ParseTime(req.To)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}

	if err := h.monitor.SetWindow(from, to); err != nil {
		if errors.Is(err, monitor.ErrInvalidWindow) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.GetWindow(w, r)
}

// Refresh выполняет полное обновление (кнопка Refresh)
// POST /api/refresh
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.monitor.Active() {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	h.monitor.Refresh(r.Context())
	h.writeJSON(w, h.monitor.State())
}

// SetDeepLink применяет параметры deviceId/issueId адресной строки.
// Параметры принимаются из тела или из query.
// POST /api/deeplink
func (h *Handlers) SetDeepLink(w http.ResponseWriter, r *http.Request) {
	req := deepLinkRequest{
		DeviceID: r.URL.Query().Get("deviceId"),
		IssueID:  r.URL.Query().Get("issueId"),
	}
	if r.ContentLength != 0 && !h.decodeJSONBody(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		h.writeError(w, http.StatusBadRequest, "deviceId required")
		return
	}

	h.monitor.SetDeepLink(req.DeviceID, req.IssueID)
	h.writeJSON(w, h.monitor.State())
}

// GetPreferences возвращает локальные настройки
// GET /api/preferences
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.settings.Get())
}

// SetPreferences сохраняет настройки. Выключение чтения вслух прерывает
// текущее озвучивание.
// PUT /api/preferences
func (h *Handlers) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var prefs storage.Preferences
	if !h.decodeJSONBody(w, r, &prefs) {
		return
	}

	if err := h.settings.Set(prefs); err != nil {
		logger.Error("Failed to save preferences", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	if !prefs.ReadNotification {
		h.speech.Cancel()
	}

	logger.Info("Preferences changed", "readNotification", prefs.ReadNotification)
	h.hub.Publish(EventPreferences, prefs)
	h.writeJSON(w, prefs)
}

// SpeechDone сообщает, что браузер закончил озвучивать сегмент seq
// POST /api/speech/done
func (h *Handlers) SpeechDone(w http.ResponseWriter, r *http.Request) {
	var req speechDoneRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}
	h.speech.Done(req.Seq)
	w.WriteHeader(http.StatusNoContent)
}

// CancelSpeech прерывает озвучивание
// POST /api/speech/cancel
func (h *Handlers) CancelSpeech(w http.ResponseWriter, r *http.Request) {
	h.speech.Cancel()
	w.WriteHeader(http.StatusNoContent)
}
