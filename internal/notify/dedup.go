package notify

import (
	"time"

	"github.com/pv/precog-panel/internal/display"
	"github.com/pv/precog-panel/internal/metrics"
	"github.com/pv/precog-panel/internal/precog"
)

// Deduplicator решает, по каким устройствам и issue показывать оповещение.
// Каждый снимок обрабатывается за один синхронный проход: проверка и
// добавление ключа выполняются вместе.
type Deduplicator struct {
	devices   *DeviceSuppression
	issues    *IssueSuppression
	publicURL string
	loc       *time.Location
}

// NewDeduplicator создаёт дедупликатор. publicURL используется в ссылках оповещений.
func NewDeduplicator(publicURL string, loc *time.Location) *Deduplicator {
	return &Deduplicator{
		devices:   NewDeviceSuppression(),
		issues:    NewIssueSuppression(),
		publicURL: publicURL,
		loc:       loc,
	}
}

func (d *Deduplicator) Devices() *DeviceSuppression { return d.devices }
func (d *Deduplicator) Issues() *IssueSuppression   { return d.issues }

// ObserveDevices applies the device-level rule to a fresh snapshot.
// selectedID is the currently selected device, 0 when nothing is selected.
func (d *Deduplicator) ObserveDevices(snapshot []precog.Device, selectedID int64) []Alert {
	var alerts []Alert
	for _, dev := range snapshot {
		if !dev.HasUnconfirmedIssue || dev.DeviceID == selectedID {
			continue
		}
		if d.devices.Contains(dev.DeviceID) {
			metrics.IncSuppressed(string(KindDevice))
			continue
		}

		a := newAlert(KindDevice, dev.DeviceID)
		a.Title = display.DeviceLabel(dev)
		a.Body = DeviceAlertBody
		a.Link = DeepLink(d.publicURL, dev.DeviceID, 0)
		a.AutoCloseMs = DeviceAlertAutoClose.Milliseconds()
		alerts = append(alerts, a)

		d.devices.Add(dev.DeviceID)
		metrics.IncAlert(string(KindDevice))
	}

	d.devices.Reconcile(snapshot)
	return alerts
}

// ObserveIssues applies the issue-level rule to a fresh per-device snapshot.
// deepLinkKey is exempt from alerting; readAloud marks alerts for speech.
func (d *Deduplicator) ObserveIssues(device precog.Device, issues []precog.Issue, deepLinkKey string, readAloud bool) []Alert {
	if !device.HasUnconfirmedIssue {
		return nil
	}

	var alerts []Alert
	for _, issue := range issues {
		if issue.Confirmed || !issue.IsAnomaly || issue.Message == nil {
			continue
		}
		key := IssueKey(device.DeviceID, issue.IssueID)
		if key == deepLinkKey {
			continue
		}
		if d.issues.Contains(key) {
			metrics.IncSuppressed(string(KindIssue))
			continue
		}

		a := newAlert(KindIssue, device.DeviceID)
		a.IssueID = issue.IssueID
		a.Title = display.DeviceLabel(device)
		a.Body = display.IssueBody(issue, d.loc)
		a.Message = *issue.Message
		a.Link = DeepLink(d.publicURL, device.DeviceID, issue.IssueID)
		a.AutoCloseMs = IssueAlertAutoClose.Milliseconds()
		a.ReadAloud = readAloud
		alerts = append(alerts, a)

		d.issues.Add(key)
		metrics.IncAlert(string(KindIssue))
	}
	return alerts
}
