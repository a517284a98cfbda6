package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pv/precog-panel/internal/precog"
	"github.com/pv/precog-panel/internal/selection"
)

// requireID extracts a positive numeric id from the path.
// Returns 0 and false if it is missing or invalid (error already written).
func (h *Handlers) requireID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// requireSelectedDevice returns the selected device.
// Returns false if nothing is selected (error already written).
func (h *Handlers) requireSelectedDevice(w http.ResponseWriter) (precog.Device, bool) {
	device, ok := h.monitor.Selection().Device()
	if !ok {
		h.writeError(w, http.StatusConflict, "no device selected")
		return precog.Device{}, false
	}
	return device, true
}

// requireIssue finds an issue of the selected device by path id.
// Returns false if not found (error already written).
func (h *Handlers) requireIssue(w http.ResponseWriter, r *http.Request) (precog.Device, precog.Issue, bool) {
	id, ok := h.requireID(w, r)
	if !ok {
		return precog.Device{}, precog.Issue{}, false
	}
	device, ok := h.requireSelectedDevice(w)
	if !ok {
		return precog.Device{}, precog.Issue{}, false
	}
	for _, is := range h.monitor.Selection().Issues() {
		if is.IssueID == id {
			return device, is, true
		}
	}
	h.writeError(w, http.StatusNotFound, selection.ErrUnknownIssue.Error())
	return precog.Device{}, precog.Issue{}, false
}

// decodeJSONBody decodes request body into target struct.
// Returns false if decode failed (error already written).
func (h *Handlers) decodeJSONBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// queryBool возвращает true для "true"/"1"; остальное, включая отсутствие, false
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// queryTime parses an optional timestamp parameter; def is used when absent.
func queryTime(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return precog.ParseTime(v)
}

func issueFilter(r *http.Request) selection.IssueFilter {
	return selection.IssueFilter{
		NotConfirmed: queryBool(r, "notConfirmed"),
		Anomaly:      queryBool(r, "anomaly"),
		Others:       queryBool(r, "others"),
	}
}
