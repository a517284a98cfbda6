package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pv/precog-panel/internal/display"
	"github.com/pv/precog-panel/internal/export"
	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/precog"
	"github.com/pv/precog-panel/internal/selection"
)

// DeviceView устройство с полями для отображения
type DeviceView struct {
	precog.Device
	Label         string `json:"label"`
	Stale         bool   `json:"stale"`
	HeartBeatText string `json:"heartBeatText"`
}

func (h *Handlers) deviceView(d precog.Device, now time.Time) DeviceView {
	return DeviceView{
		Device:        d,
		Label:         display.DeviceLabel(d),
		Stale:         display.IsStale(d, now),
		HeartBeatText: display.FormatDateSeconds(d.HeartBeat, h.loc),
	}
}

// GetDevices возвращает список устройств с фильтрами name и unconfirmed
// GET /api/devices
func (h *Handlers) GetDevices(w http.ResponseWriter, r *http.Request) {
	filter := selection.DeviceFilter{
		Name:            r.URL.Query().Get("name"),
		UnconfirmedOnly: queryBool(r, "unconfirmed"),
	}

	sel := h.monitor.Selection()
	now := time.Now()
	devices := filter.Apply(sel.Devices())
	views := make([]DeviceView, len(devices))
	for i, d := range devices {
		views[i] = h.deviceView(d, now)
	}

	h.writeJSON(w, map[string]interface{}{
		"devices":          views,
		"selectedDeviceId": sel.DeviceID(),
	})
}

// CreateDevice создаёт устройство
// POST /api/devices
func (h *Handlers) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var form precog.DeviceForm
	if !h.decodeJSONBody(w, r, &form) {
		return
	}
	if err := form.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := h.client.CreateDevice(r.Context(), form)
	if err != nil {
		h.writeDeviceError(w, "create", form.DeviceID, err)
		return
	}

	logger.Info("Device created", "device", form.DeviceID, "name", form.Name)
	h.monitor.Refresh(r.Context())
	h.writeJSON(w, map[string]interface{}{"message": text, "deviceId": form.DeviceID})
}

// UpdateDevice изменяет устройство. Смена lookback или scale требует
// ?confirmReanalysis=true, иначе 409 с текстом вопроса.
// PUT /api/devices/{id}
func (h *Handlers) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}
	prev, found := h.monitor.Selection().LookupDevice(id)
	if !found {
		h.writeError(w, http.StatusNotFound, selection.ErrUnknownDevice.Error())
		return
	}

	var form precog.DeviceForm
	if !h.decodeJSONBody(w, r, &form) {
		return
	}
	if form.DeviceID == 0 {
		form.DeviceID = id
	}
	if form.DeviceID != id {
		h.writeError(w, http.StatusBadRequest, "deviceId does not match the path")
		return
	}
	if err := form.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if form.RequiresReanalysis(prev) && !queryBool(r, "confirmReanalysis") {
		h.writeJSONStatus(w, http.StatusConflict, map[string]interface{}{
			"error":           precog.ReanalysisPrompt,
			"confirmRequired": true,
		})
		return
	}

	text, err := h.client.UpdateDevice(r.Context(), form)
	if err != nil {
		h.writeDeviceError(w, "update", id, err)
		return
	}

	logger.Info("Device updated", "device", id)
	h.monitor.Refresh(r.Context())
	h.writeJSON(w, map[string]interface{}{"message": text, "deviceId": id})
}

// DeleteDevice удаляет устройство
// DELETE /api/devices/{id}
func (h *Handlers) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}

	text, err := h.client.DeleteDevice(r.Context(), id)
	if err != nil {
		h.writeDeviceError(w, "delete", id, err)
		return
	}

	logger.Info("Device deleted", "device", id)
	h.monitor.Refresh(r.Context())
	h.writeJSON(w, map[string]interface{}{"message": text, "deviceId": id})
}

// SelectDevice выбирает устройство
// POST /api/devices/{id}/select
func (h *Handlers) SelectDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}
	if err := h.monitor.SelectDevice(id); err != nil {
		if errors.Is(err, selection.ErrUnknownDevice) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, h.monitor.State())
}

// WatchRealtime запускает публикацию графика реального времени (событие realtime)
// каждые 5 секунд. Без start/end используется текущее окно дат.
// GET /api/devices/{id}/realtime?start=&end=
func (h *Handlers) WatchRealtime(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}
	device, found := h.monitor.Selection().LookupDevice(id)
	if !found {
		h.writeError(w, http.StatusNotFound, selection.ErrUnknownDevice.Error())
		return
	}
	if !device.IsContinuous() {
		h.writeError(w, http.StatusBadRequest, "real time chart is only available for continuous devices")
		return
	}

	from, to := h.monitor.Window()
	start, err := queryTime(r, "start", from)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	end, err := queryTime(r, "end", to)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid end: "+err.Error())
		return
	}
	if !start.Before(end) {
		h.writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	if err := h.monitor.WatchRealtime(device, start, end); err != nil {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.writeJSONStatus(w, http.StatusAccepted, map[string]interface{}{
		"deviceId":   id,
		"start":      precog.FormatTime(start),
		"end":        precog.FormatTime(end),
		"intervalMs": h.realtimeInterval.Milliseconds(),
	})
}

// StopRealtime останавливает график реального времени
// DELETE /api/realtime
func (h *Handlers) StopRealtime(w http.ResponseWriter, r *http.Request) {
	h.monitor.StopRealtime()
	w.WriteHeader(http.StatusNoContent)
}

// ExportIssues выгружает issues устройства за текущее окно в XLSX
// GET /api/devices/{id}/issues.xlsx
func (h *Handlers) ExportIssues(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}
	device, found := h.monitor.Selection().LookupDevice(id)
	if !found {
		h.writeError(w, http.StatusNotFound, selection.ErrUnknownDevice.Error())
		return
	}

	from, to := h.monitor.Window()
	issues, err := h.client.GetIssuesByMeasuredDateRange(r.Context(), id, from, to)
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}

	data, err := export.Issues(device, issues, h.loc)
	if err != nil {
		logger.Error("Failed to build XLSX", "device", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(device, time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *Handlers) writeDeviceError(w http.ResponseWriter, op string, id int64, err error) {
	logger.Warn("Device "+op+" failed", "device", id, "error", err)
	h.writeUpstreamError(w, err)
}
