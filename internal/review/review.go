// Package review implements the operator decision workflow for a selected issue.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/metrics"
	"github.com/pv/precog-panel/internal/precog"
)

var (
	ErrNoDecision           = errors.New("no decision selected")
	ErrInvalidDecision      = errors.New("decision must be Yes or No")
	ErrRangeNotEditable     = errors.New("time range is editable only for existing periodic issues")
	ErrNotConfirmed         = errors.New("only confirmed issues can be deleted")
	ErrConfirmationRequired = errors.New("delete requires confirmation")
)

// Сообщения, которые видит оператор при сетевой ошибке
const (
	sendFailedMessage   = "Error sending data."
	deleteFailedMessage = "Error deleting issue."
)

// Decision ответ оператора на вопрос "это нормально?"
type Decision string

const (
	DecisionNone Decision = ""
	Yes          Decision = "Yes"
	No           Decision = "No"
)

// IsAnomaly: ответ "No" означает аномалию
func (d Decision) IsAnomaly() bool {
	return d == No
}

type State string

const (
	Idle            State = "Idle"
	DecisionPending State = "DecisionPending"
)

// Writer write-часть API PRECOG
type Writer interface {
	UpdateContinuousIssue(ctx context.Context, u precog.IssueUpdate) (string, error)
	UpdatePeriodicIssue(ctx context.Context, u precog.IssueUpdate) (string, error)
	CreatePeriodicIssue(ctx context.Context, deviceID, curvePeriod int64, isAnomaly bool, message string) (string, error)
	DeleteIssue(ctx context.Context, app precog.Application, deviceID, issueID int64) (string, error)
}

// Target локальное состояние, которое workflow обновляет после записи
type Target interface {
	PatchIssue(issueID int64, fn func(*precog.Issue)) bool
	ClearIssue()
	Refresh(ctx context.Context)
}

// Result итог операции для оператора
type Result struct {
	Action  string `json:"action"`
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

// Workflow выполняет решения и удаления
type Workflow struct {
	writer Writer
	target Target
}

func New(writer Writer, target Target) *Workflow {
	return &Workflow{writer: writer, target: target}
}

// Submit sends the draft decision. On success the selected issue is patched,
// the snapshot re-fetched and the draft returns to Idle.
func (w *Workflow) Submit(ctx context.Context, d *Draft) (Result, error) {
	if d.state != DecisionPending || d.decision == DecisionNone {
		return Result{}, ErrNoDecision
	}

	var (
		action string
		text   string
		err    error
	)
	message := strings.TrimSpace(d.message)
	isAnomaly := d.decision.IsAnomaly()

	switch {
	case d.device.IsContinuous():
		action = "update_continuous"
		text, err = w.writer.UpdateContinuousIssue(ctx, d.update(isAnomaly, orSentinel(message, precog.MessageNoChange)))
	case !d.issue.IsCurvePeriod():
		action = "update_periodic"
		u := d.update(isAnomaly, orSentinel(message, precog.MessageNoChange))
		u.MeasuredAtFrom, u.MeasuredAtTo = d.from, d.to
		text, err = w.writer.UpdatePeriodicIssue(ctx, u)
	default:
		action = "create_periodic"
		text, err = w.writer.CreatePeriodicIssue(ctx, d.device.DeviceID, d.issue.IssueID, isAnomaly,
			orSentinel(message, precog.MessageEnterDescription))
	}
	metrics.IncReview(action, err)

	if err != nil {
		logger.Warn("Issue review failed", "action", action, "device", d.device.DeviceID, "issue", d.issue.IssueID, "error", err)
		var apiErr *precog.APIError
		// на ответ сервера (любой статус) обновления перечитываются, создание нет
		if errors.As(err, &apiErr) && action != "create_periodic" {
			w.target.Refresh(ctx)
		}
		d.Cancel()
		return Result{Action: action, Message: failureMessage(err, sendFailedMessage)}, fmt.Errorf("%s: %w", action, err)
	}

	if action != "create_periodic" {
		w.target.PatchIssue(d.issue.IssueID, func(is *precog.Issue) {
			is.IsAnomaly = isAnomaly
			if message != "" {
				m := message
				is.Message = &m
			}
		})
	}
	w.target.Refresh(ctx)
	d.Cancel()

	logger.Info("Issue reviewed", "action", action, "device", d.device.DeviceID, "issue", d.issue.IssueID, "isAnomaly", isAnomaly)
	return Result{Action: action, Message: text, OK: true}, nil
}

// Delete удаляет подтверждённое issue. confirmed означает, что оператор
// ответил на вопрос ConfirmPrompt.
func (w *Workflow) Delete(ctx context.Context, device precog.Device, issue precog.Issue, confirmed bool) (Result, error) {
	if !issue.Confirmed {
		return Result{}, ErrNotConfirmed
	}
	if !confirmed {
		return Result{}, ErrConfirmationRequired
	}

	text, err := w.writer.DeleteIssue(ctx, device.Application, device.DeviceID, issue.IssueID)
	metrics.IncReview("delete", err)
	if err != nil {
		logger.Warn("Issue delete failed", "device", device.DeviceID, "issue", issue.IssueID, "error", err)
		return Result{Action: "delete", Message: failureMessage(err, deleteFailedMessage)}, fmt.Errorf("delete: %w", err)
	}

	w.target.Refresh(ctx)
	w.target.ClearIssue()
	logger.Info("Issue deleted", "device", device.DeviceID, "issue", issue.IssueID)
	return Result{Action: "delete", Message: text, OK: true}, nil
}

// ConfirmPrompt текст вопроса перед удалением
func ConfirmPrompt(device precog.Device, issue precog.Issue) string {
	verb := "delete"
	if device.IsContinuous() {
		verb = "remove"
	}
	return fmt.Sprintf("Are you sure you want to %s Issue #%d?", verb, issue.IssueID)
}

func orSentinel(message, sentinel string) string {
	if message == "" {
		return sentinel
	}
	return message
}

func failureMessage(err error, fallback string) string {
	var apiErr *precog.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return fallback
}
