// Package display formats dates, labels and messages the way the panel shows them.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/pv/precog-panel/internal/precog"
)

const (
	dateLayout        = "2006.01.02 15:04"
	dateSecondsLayout = "2006.01.02 15:04:05"
	clockLayout       = "15:04"
)

// StaleAfter is how old a heartbeat may get before a device is shown as stale.
const StaleAfter = time.Hour

// FormatDate форматирует момент как "yyyy.MM.dd HH:mm" в loc
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(location(loc)).Format(dateLayout)
}

// FormatDateSeconds форматирует момент с секундами (карточка issue)
func FormatDateSeconds(t *precog.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(location(loc)).Format(dateSecondsLayout)
}

// FormatDateRange форматирует интервал issue.
// Один день: "yyyy.MM.dd HH:mm - HH:mm"; разные дни: обе даты полностью.
// Только конец: конец; только начало: начало; ничего: "".
func FormatDateRange(from, to *precog.Time, loc *time.Location) string {
	hasFrom := from != nil && !from.IsZero()
	hasTo := to != nil && !to.IsZero()
	loc = location(loc)

	switch {
	case !hasFrom && !hasTo:
		return ""
	case !hasFrom:
		return FormatDate(to.Time, loc)
	case !hasTo:
		return FormatDate(from.Time, loc)
	}

	f, t := from.In(loc), to.In(loc)
	if sameDay(f, t) {
		return f.Format(dateLayout) + " - " + t.Format(clockLayout)
	}
	return f.Format(dateLayout) + " - " + t.Format(dateLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return precog.Location
	}
	return loc
}

// DeviceLabel returns the device name, or "device id: N" for unnamed devices.
func DeviceLabel(d precog.Device) string {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Sprintf("device id: %d", d.DeviceID)
	}
	return d.Name
}

// IsStale сообщает, что heartbeat отсутствует или старше StaleAfter
func IsStale(d precog.Device, now time.Time) bool {
	if d.HeartBeat == nil || d.HeartBeat.IsZero() {
		return true
	}
	return now.Sub(d.HeartBeat.Time) > StaleAfter
}

// IssueBody текст оповещения об issue: интервал и сообщение на отдельных строках
func IssueBody(issue precog.Issue, loc *time.Location) string {
	return FormatDateRange(issue.MeasuredAtFrom, issue.MeasuredAtTo, loc) + "\n" + issue.MessageText()
}

// SplitMessage splits a message into display lines after sentence or clause
// punctuation (. ? ! ; :) followed by whitespace.
func SplitMessage(msg string) []string {
	var (
		lines []string
		start int
	)
	runes := []rune(msg)
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(".?!;:", runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && isSpace(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		lines = append(lines, string(runes[start:i+1]))
		start = j
		i = j - 1
	}
	if start < len(runes) || len(lines) == 0 {
		lines = append(lines, string(runes[start:]))
	}
	return lines
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v', '\u00a0':
		return true
	}
	return false
}
