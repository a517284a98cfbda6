package api

import (
	"errors"
	"net/http"

	"github.com/pv/precog-panel/internal/chart"
	"github.com/pv/precog-panel/internal/display"
	"github.com/pv/precog-panel/internal/precog"
	"github.com/pv/precog-panel/internal/review"
	"github.com/pv/precog-panel/internal/selection"
	"github.com/pv/precog-panel/internal/speech"
)

// IssueView issue с полями для отображения
type IssueView struct {
	precog.Issue
	Title        string   `json:"title"`
	DateRange    string   `json:"dateRange"`
	MessageLines []string `json:"messageLines"`
}

func (h *Handlers) issueView(is precog.Issue) IssueView {
	return IssueView{
		Issue:        is,
		Title:        chart.Title(is),
		DateRange:    display.FormatDateRange(is.MeasuredAtFrom, is.MeasuredAtTo, h.loc),
		MessageLines: display.SplitMessage(is.MessageText()),
	}
}

// GetIssues возвращает issues выбранного устройства с фильтрами
// notConfirmed, anomaly, others
// GET /api/issues
func (h *Handlers) GetIssues(w http.ResponseWriter, r *http.Request) {
	sel := h.monitor.Selection()
	issues := issueFilter(r).Apply(sel.Issues())
	views := make([]IssueView, len(issues))
	for i, is := range issues {
		views[i] = h.issueView(is)
	}

	var selected int64
	if _, ok := sel.Issue(); ok {
		selected = sel.IssueID()
	}
	h.writeJSON(w, map[string]interface{}{
		"deviceId":        sel.DeviceID(),
		"issues":          views,
		"selectedIssueId": selected,
	})
}

// SelectIssue выбирает issue
// POST /api/issues/{id}/select
func (h *Handlers) SelectIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireID(w, r)
	if !ok {
		return
	}
	if err := h.monitor.SelectIssue(id); err != nil {
		if errors.Is(err, selection.ErrUnknownIssue) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, h.monitor.State())
}

// NavigateIssues перемещает выбор по отфильтрованному списку (стрелки вверх/вниз)
// POST /api/issues/navigate?dir=up|down
func (h *Handlers) NavigateIssues(w http.ResponseWriter, r *http.Request) {
	dir := selection.Direction(r.URL.Query().Get("dir"))
	if dir != selection.Up && dir != selection.Down {
		h.writeError(w, http.StatusBadRequest, "dir must be up or down")
		return
	}

	id, moved := h.monitor.Navigate(dir, issueFilter(r))
	h.writeJSON(w, map[string]interface{}{
		"issueId": id,
		"moved":   moved,
	})
}

// DraftView состояние формы решения
type DraftView struct {
	IssueID       int64           `json:"issueId"`
	State         review.State    `json:"state"`
	Decision      review.Decision `json:"decision"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	RangeEditable bool            `json:"rangeEditable"`
	CanDelete     bool            `json:"canDelete"`
	DeletePrompt  string          `json:"deletePrompt,omitempty"`
}

// GetReview возвращает начальное состояние формы решения для issue
// GET /api/issues/{id}/review
func (h *Handlers) GetReview(w http.ResponseWriter, r *http.Request) {
	device, issue, ok := h.requireIssue(w, r)
	if !ok {
		return
	}
	d := review.Open(device, issue)
	from, to := d.Range()
	view := DraftView{
		IssueID:       issue.IssueID,
		State:         d.State(),
		Decision:      d.Decision(),
		From:          from,
		To:            to,
		RangeEditable: d.RangeEditable(),
		CanDelete:     issue.Confirmed,
	}
	if issue.Confirmed {
		view.DeletePrompt = review.ConfirmPrompt(device, issue)
	}
	h.writeJSON(w, view)
}

type reviewRequest struct {
	Decision review.Decision `json:"decision"`
	Message  string          `json:"message"`
	From     string          `json:"from,omitempty"`
	To       string          `json:"to,omitempty"`
}

// ReviewIssue отправляет решение оператора
// POST /api/issues/{id}/review
func (h *Handlers) ReviewIssue(w http.ResponseWriter, r *http.Request) {
	device, issue, ok := h.requireIssue(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	d := review.Open(device, issue)
	if req.Decision != review.DecisionNone {
		if err := d.Decide(req.Decision); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	d.SetMessage(req.Message)
	if req.From != "" || req.To != "" {
		if err := d.SetRange(req.From, req.To); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.review.Submit(r.Context(), d)
	if err != nil {
		if errors.Is(err, review.ErrNoDecision) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeJSONStatus(w, http.StatusBadGateway, map[string]interface{}{
			"error":  result.Message,
			"result": result,
		})
		return
	}
	h.writeJSON(w, result)
}

// DeleteIssue удаляет подтверждённое issue. Без ?confirm=true возвращает
// 428 с текстом вопроса.
// DELETE /api/issues/{id}
func (h *Handlers) DeleteIssue(w http.ResponseWriter, r *http.Request) {
	device, issue, ok := h.requireIssue(w, r)
	if !ok {
		return
	}

	result, err := h.review.Delete(r.Context(), device, issue, queryBool(r, "confirm"))
	switch {
	case err == nil:
		h.writeJSON(w, result)
	case errors.Is(err, review.ErrNotConfirmed):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, review.ErrConfirmationRequired):
		h.writeJSONStatus(w, http.StatusPreconditionRequired, map[string]interface{}{
			"error":  err.Error(),
			"prompt": review.ConfirmPrompt(device, issue),
		})
	default:
		h.writeJSONStatus(w, http.StatusBadGateway, map[string]interface{}{
			"error":  result.Message,
			"result": result,
		})
	}
}

// GetIssueChart возвращает график issue. enlarged=true показывает контрольные границы.
// GET /api/issues/{id}/chart?enlarged=
func (h *Handlers) GetIssueChart(w http.ResponseWriter, r *http.Request) {
	device, issue, ok := h.requireIssue(w, r)
	if !ok {
		return
	}

	c, err := h.charts.Issue(r.Context(), device, issue, queryBool(r, "enlarged"))
	if err != nil {
		if errors.Is(err, chart.ErrNoPeriod) {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.writeUpstreamError(w, err)
		return
	}
	h.writeJSON(w, c)
}

// SpeakIssue озвучивает сообщение issue (по кнопке, без учёта настройки)
// POST /api/issues/{id}/speak
func (h *Handlers) SpeakIssue(w http.ResponseWriter, r *http.Request) {
	_, issue, ok := h.requireIssue(w, r)
	if !ok {
		return
	}
	text := issue.MessageText()
	if text == "" {
		h.writeError(w, http.StatusUnprocessableEntity, "issue has no message")
		return
	}
	h.speech.Speak(text, false)
	h.writeJSONStatus(w, http.StatusAccepted, map[string]interface{}{
		"segments": len(speech.Split(text)),
	})
}
