package review

import (
	"github.com/pv/precog-panel/internal/precog"
)

// Draft несохранённое решение по одному issue
type Draft struct {
	device   precog.Device
	issue    precog.Issue
	state    State
	decision Decision
	message  string
	from     string
	to       string
}

// Open starts a draft for the issue. Confirmed issues open with the
// previous decision preset; the range is pre-filled from the issue.
func Open(device precog.Device, issue precog.Issue) *Draft {
	d := &Draft{device: device, issue: issue}
	d.reset()
	return d
}

func (d *Draft) reset() {
	d.state, d.decision, d.message = Idle, DecisionNone, ""
	if d.issue.Confirmed {
		d.decision = Yes
		if d.issue.IsAnomaly {
			d.decision = No
		}
		d.state = DecisionPending
	}
	d.from, d.to = "", ""
	if d.issue.MeasuredAtFrom != nil && !d.issue.MeasuredAtFrom.IsZero() {
		d.from = precog.FormatTime(d.issue.MeasuredAtFrom.Time)
	}
	if d.issue.MeasuredAtTo != nil && !d.issue.MeasuredAtTo.IsZero() {
		d.to = precog.FormatTime(d.issue.MeasuredAtTo.Time)
	}
}

func (d *Draft) State() State        { return d.state }
func (d *Draft) Decision() Decision  { return d.decision }
func (d *Draft) Issue() precog.Issue { return d.issue }

// Range returns the measured range that will be sent for periodic updates.
func (d *Draft) Range() (from, to string) { return d.from, d.to }

// Decide выбирает Yes/No и переводит черновик в DecisionPending
func (d *Draft) Decide(dec Decision) error {
	if dec != Yes && dec != No {
		return ErrInvalidDecision
	}
	d.decision = dec
	d.state = DecisionPending
	return nil
}

// SetMessage задаёт текст комментария
func (d *Draft) SetMessage(msg string) {
	d.message = msg
}

// RangeEditable reports whether the measured range may be changed:
// periodic devices, existing issues, decision made.
func (d *Draft) RangeEditable() bool {
	return d.state == DecisionPending && !d.device.IsContinuous() && !d.issue.IsCurvePeriod()
}

// SetRange задаёт интервал в формате 2006-01-02T15:04:05 (локальное время).
// Пустая строка оставляет границу без изменений.
func (d *Draft) SetRange(from, to string) error {
	if !d.RangeEditable() {
		return ErrRangeNotEditable
	}
	for _, v := range []*string{&from, &to} {
		if *v == "" {
			continue
		}
		t, err := precog.ParseTime(*v)
		if err != nil {
			return err
		}
		*v = precog.FormatTime(t)
	}
	if from != "" {
		d.from = from
	}
	if to != "" {
		d.to = to
	}
	return nil
}

// Cancel отменяет решение
func (d *Draft) Cancel() {
	d.state, d.decision, d.message = Idle, DecisionNone, ""
}

func (d *Draft) update(isAnomaly bool, message string) precog.IssueUpdate {
	return precog.IssueUpdate{
		DeviceID:  d.device.DeviceID,
		IssueID:   d.issue.IssueID,
		IsAnomaly: isAnomaly,
		Message:   message,
	}
}
