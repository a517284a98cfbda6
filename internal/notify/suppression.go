package notify

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pv/precog-panel/internal/precog"
)

// DeviceSuppression множество устройств, по которым уже было оповещение.
// Устройство выходит из множества, когда пропадает из снимка или
// теряет флаг hasUnconfirmedIssue (Reconcile).
type DeviceSuppression struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewDeviceSuppression() *DeviceSuppression {
	return &DeviceSuppression{ids: make(map[int64]struct{})}
}

func (s *DeviceSuppression) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *DeviceSuppression) Add(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// Reconcile removes ids that are absent from the snapshot or no longer flagged.
func (s *DeviceSuppression) Reconcile(snapshot []precog.Device) {
	flagged := make(map[int64]bool, len(snapshot))
	for _, d := range snapshot {
		flagged[d.DeviceID] = d.HasUnconfirmedIssue
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.ids {
		if !flagged[id] {
			delete(s.ids, id)
		}
	}
}

// IDs returns the suppressed device ids in ascending order.
func (s *DeviceSuppression) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IssueKey составной ключ "<deviceId>_<issueId>"
func IssueKey(deviceID, issueID int64) string {
	return fmt.Sprintf("%d_%d", deviceID, issueID)
}

// IssueSuppression множество ключей issue, по которым уже было оповещение.
// Ключи не удаляются до конца жизни процесса.
type IssueSuppression struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewIssueSuppression() *IssueSuppression {
	return &IssueSuppression{keys: make(map[string]struct{})}
}

func (s *IssueSuppression) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

func (s *IssueSuppression) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = struct{}{}
}

func (s *IssueSuppression) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
