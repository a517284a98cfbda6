package selection

import (
	"strings"

	"github.com/pv/precog-panel/internal/precog"
)

// DeviceFilter фильтр списка устройств
type DeviceFilter struct {
	Name            string
	UnconfirmedOnly bool
}

func (f DeviceFilter) Active() bool {
	return f.Name != "" || f.UnconfirmedOnly
}

func (f DeviceFilter) Match(d precog.Device) bool {
	if !strings.Contains(strings.ToLower(d.Name), strings.ToLower(f.Name)) {
		return false
	}
	return !f.UnconfirmedOnly || d.HasUnconfirmedIssue
}

func (f DeviceFilter) Apply(devices []precog.Device) []precog.Device {
	out := make([]precog.Device, 0, len(devices))
	for _, d := range devices {
		if f.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

// IssueFilter фильтр списка issues. Без активных флагов пропускает всё.
type IssueFilter struct {
	NotConfirmed bool // не подтверждённые аномалии
	Anomaly      bool // подтверждённые аномалии
	Others       bool // подтверждённые не-аномалии
}

func (f IssueFilter) Active() bool {
	return f.NotConfirmed || f.Anomaly || f.Others
}

func (f IssueFilter) Match(is precog.Issue) bool {
	if !f.Active() {
		return true
	}
	switch {
	case f.NotConfirmed && !is.Confirmed && is.IsAnomaly:
		return true
	case f.Anomaly && is.Confirmed && is.IsAnomaly:
		return true
	case f.Others && is.Confirmed && !is.IsAnomaly:
		return true
	}
	return false
}

func (f IssueFilter) Apply(issues []precog.Issue) []precog.Issue {
	out := make([]precog.Issue, 0, len(issues))
	for _, is := range issues {
		if f.Match(is) {
			out = append(out, is)
		}
	}
	return out
}

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Navigate moves the issue selection one step within the filtered list.
// When the selected issue is filtered out, the step starts from the issue
// with the numerically closest id. Returns the new id and whether it moved.
func (r *Resolver) Navigate(dir Direction, filter IssueFilter) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// границы проверяются по полному списку, как у клавиш в списке
	idx := r.findIssueLocked(r.issueID)
	switch dir {
	case Up:
		if idx <= 0 {
			return r.issueID, false
		}
	case Down:
		if idx >= len(r.issues)-1 {
			return r.issueID, false
		}
	default:
		return r.issueID, false
	}

	filtered := filter.Apply(r.issues)
	pos := -1
	for i, is := range filtered {
		if is.IssueID == r.issueID {
			pos = i
			break
		}
	}
	if pos < 0 && r.issueID != 0 {
		pos = closestID(filtered, r.issueID)
	}

	switch {
	case dir == Up && pos > 0:
		r.issueID = filtered[pos-1].IssueID
	case dir == Down && pos < len(filtered)-1:
		r.issueID = filtered[pos+1].IssueID
	default:
		return r.issueID, false
	}
	return r.issueID, true
}

func closestID(issues []precog.Issue, id int64) int {
	best := -1
	var bestDiff int64
	for i, is := range issues {
		diff := is.IssueID - id
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}
