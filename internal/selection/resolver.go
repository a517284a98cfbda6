// Package selection tracks the selected device and issue by id across snapshot
// replacements and resolves the one-shot deep link.
package selection

import (
	"errors"
	"strconv"
	"sync"

	"github.com/pv/precog-panel/internal/precog"
)

var (
	ErrUnknownDevice = errors.New("device not found")
	ErrUnknownIssue  = errors.New("issue not found")
)

// Resolver хранит только идентификаторы выбранных устройства и issue.
// Объекты всегда ищутся в последнем снимке.
type Resolver struct {
	mu sync.Mutex

	devices []precog.Device
	issues  []precog.Issue

	deviceID int64
	issueID  int64

	// deep link: сырые значения параметров deviceId/issueId
	linkDevice  string
	linkIssue   string
	linkPending bool
	staged      string
	firstUse    bool

	// устройство сменилось и его issues ещё не приходили
	deviceChanged bool
}

func NewResolver() *Resolver {
	return &Resolver{firstUse: true}
}

// SetDeepLink запоминает параметры ссылки. Они будут применены один раз,
// при следующей (или текущей, если уже есть) загрузке списка устройств.
// Возвращает true, если выбранное устройство сменилось.
func (r *Resolver) SetDeepLink(deviceID, issueID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.linkDevice = deviceID
	r.linkIssue = issueID
	r.linkPending = true
	r.staged = ""
	r.firstUse = true

	if len(r.devices) == 0 {
		return false
	}
	prev := r.deviceID
	r.consumeDeepLinkLocked()
	return r.noteDeviceLocked(prev)
}

// DeepLinkKey returns "<deviceId>_<issueId>" from the deep link, or "" when
// the link did not carry both parameters.
func (r *Resolver) DeepLinkKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linkDevice == "" || r.linkIssue == "" {
		return ""
	}
	return r.linkDevice + "_" + r.linkIssue
}

// ApplyDevices заменяет снимок устройств и пере-разрешает выбор.
// Возвращает true, если выбранное устройство сменилось.
func (r *Resolver) ApplyDevices(snapshot []precog.Device) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.deviceID
	r.devices = snapshot
	if len(snapshot) == 0 {
		return false
	}

	if r.findDeviceLocked(r.deviceID) < 0 {
		r.deviceID = snapshot[0].DeviceID
	}
	if r.linkPending {
		r.consumeDeepLinkLocked()
	}
	return r.noteDeviceLocked(prev)
}

func (r *Resolver) consumeDeepLinkLocked() {
	r.linkPending = false
	if r.linkDevice == "" {
		return
	}
	for _, d := range r.devices {
		if strconv.FormatInt(d.DeviceID, 10) == r.linkDevice {
			r.deviceID = d.DeviceID
			break
		}
	}
	if r.linkIssue != "" {
		r.staged = r.linkIssue
	}
}

func (r *Resolver) noteDeviceLocked(prev int64) bool {
	if r.deviceID == prev {
		return false
	}
	r.deviceChanged = true
	r.issues = nil
	r.issueID = 0
	return true
}

// SelectDevice выбирает устройство вручную
func (r *Resolver) SelectDevice(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findDeviceLocked(id) < 0 {
		return false, ErrUnknownDevice
	}
	prev := r.deviceID
	r.deviceID = id
	return r.noteDeviceLocked(prev), nil
}

// ApplyIssues заменяет снимок issues выбранного устройства и пере-разрешает
// выбранное issue. Снимок для другого устройства игнорируется (false).
func (r *Resolver) ApplyIssues(deviceID int64, issues []precog.Issue) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if deviceID == 0 || deviceID != r.deviceID {
		return false
	}
	r.issues = issues

	if len(issues) == 0 {
		r.issueID = 0
		return true
	}

	if r.firstUse && r.staged != "" {
		for _, is := range issues {
			if strconv.FormatInt(is.IssueID, 10) == r.staged {
				r.issueID = is.IssueID
				r.firstUse = false
				return true
			}
		}
	}

	if r.issueID != 0 && r.findIssueLocked(r.issueID) >= 0 {
		return true
	}

	if r.firstUse || r.deviceChanged {
		r.issueID = issues[0].IssueID
		r.firstUse = false
	} else {
		r.issueID = 0
	}
	r.deviceChanged = false
	return true
}

// SelectIssue выбирает issue вручную
func (r *Resolver) SelectIssue(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findIssueLocked(id) < 0 {
		return ErrUnknownIssue
	}
	r.issueID = id
	return nil
}

// ClearIssue сбрасывает выбранное issue (после удаления)
func (r *Resolver) ClearIssue() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issueID = 0
}

// PatchIssue applies fn to the selected issue in the current snapshot.
func (r *Resolver) PatchIssue(id int64, fn func(*precog.Issue)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.findIssueLocked(id)
	if i < 0 {
		return false
	}
	patched := make([]precog.Issue, len(r.issues))
	copy(patched, r.issues)
	fn(&patched[i])
	r.issues = patched
	return true
}

func (r *Resolver) DeviceID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deviceID
}

func (r *Resolver) IssueID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issueID
}

// Device returns the selected device from the latest snapshot.
func (r *Resolver) Device() (precog.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.findDeviceLocked(r.deviceID); i >= 0 {
		return r.devices[i], true
	}
	return precog.Device{}, false
}

// Issue returns the selected issue from the latest snapshot.
func (r *Resolver) Issue() (precog.Issue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.findIssueLocked(r.issueID); i >= 0 {
		return r.issues[i], true
	}
	return precog.Issue{}, false
}

// LookupDevice ищет устройство по id в последнем снимке
func (r *Resolver) LookupDevice(id int64) (precog.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.findDeviceLocked(id); i >= 0 {
		return r.devices[i], true
	}
	return precog.Device{}, false
}

// Devices returns the latest device snapshot.
func (r *Resolver) Devices() []precog.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices
}

// Issues returns the latest issue snapshot of the selected device.
func (r *Resolver) Issues() []precog.Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issues
}

func (r *Resolver) findDeviceLocked(id int64) int {
	if id == 0 {
		return -1
	}
	for i, d := range r.devices {
		if d.DeviceID == id {
			return i
		}
	}
	return -1
}

func (r *Resolver) findIssueLocked(id int64) int {
	if id == 0 {
		return -1
	}
	for i, is := range r.issues {
		if is.IssueID == id {
			return i
		}
	}
	return -1
}
