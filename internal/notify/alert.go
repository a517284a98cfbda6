package notify

import (
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindDevice Kind = "device"
	KindIssue  Kind = "issue"
)

const (
	DeviceAlertBody      = "Unconfirmed issue detected."
	DeviceAlertAutoClose = 5 * time.Second
	IssueAlertAutoClose  = 30 * time.Second
)

// Alert оповещение для оператора (toast + системное уведомление)
type Alert struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	DeviceID    int64     `json:"deviceId"`
	IssueID     int64     `json:"issueId,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Message     string    `json:"message,omitempty"`
	Link        string    `json:"link"`
	AutoCloseMs int64     `json:"autoCloseMs"`
	ReadAloud   bool      `json:"readAloud,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AutoClose returns how long the alert stays on screen.
func (a Alert) AutoClose() time.Duration {
	return time.Duration(a.AutoCloseMs) * time.Millisecond
}

func newAlert(kind Kind, deviceID int64) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Kind:      kind,
		DeviceID:  deviceID,
		CreatedAt: time.Now(),
	}
}

// DeepLink строит ссылку панели с параметрами deviceId (и issueId, если > 0)
func DeepLink(base string, deviceID, issueID int64) string {
	raw := "deviceId=" + strconv.FormatInt(deviceID, 10)
	if issueID > 0 {
		raw += "&issueId=" + strconv.FormatInt(issueID, 10)
	}

	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "?" + raw
	}
	u.RawQuery = raw
	u.Fragment = ""
	return u.String()
}
