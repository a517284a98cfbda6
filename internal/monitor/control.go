package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/poller"
	"github.com/pv/precog-panel/internal/precog"
	"github.com/pv/precog-panel/internal/selection"
)

// SelectDevice выбирает устройство. Смена выбора сразу перечитывает issues
// и перезапускает таймер опроса.
func (m *Monitor) SelectDevice(id int64) error {
	changed, err := m.deps.Selection.SelectDevice(id)
	if err != nil {
		return err
	}
	if changed {
		logger.Info("Device selected", "device", id)
		m.publishState()
		m.restart()
	}
	return nil
}

// SelectIssue выбирает issue текущего устройства
func (m *Monitor) SelectIssue(id int64) error {
	if err := m.deps.Selection.SelectIssue(id); err != nil {
		return err
	}
	m.publishState()
	return nil
}

// Navigate перемещает выбор issue вверх/вниз по отфильтрованному списку
func (m *Monitor) Navigate(dir selection.Direction, filter selection.IssueFilter) (int64, bool) {
	id, moved := m.deps.Selection.Navigate(dir, filter)
	if moved {
		m.publishState()
	}
	return id, moved
}

// SetDeepLink применяет параметры deviceId/issueId ссылки
func (m *Monitor) SetDeepLink(deviceID, issueID string) {
	changed := m.deps.Selection.SetDeepLink(deviceID, issueID)
	logger.Info("Deep link", "deviceId", deviceID, "issueId", issueID, "switched", changed)
	if changed {
		m.publishState()
		m.restart()
	}
}

// Window returns the current date window.
func (m *Monitor) Window() (time.Time, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start, m.end
}

// SetWindow меняет окно дат. Ответы для старого окна отбрасываются,
// issues перечитываются сразу.
func (m *Monitor) SetWindow(from, to time.Time) error {
	if !from.Before(to) {
		return ErrInvalidWindow
	}
	m.mu.Lock()
	m.start, m.end = from, to
	m.epoch++
	m.mu.Unlock()

	logger.Info("Window changed", "from", precog.FormatTime(from), "to", precog.FormatTime(to))
	m.publishState()
	m.restart()
	return nil
}

// PatchIssue обновляет выбранное issue локально (после успешной записи)
func (m *Monitor) PatchIssue(id int64, fn func(*precog.Issue)) bool {
	ok := m.deps.Selection.PatchIssue(id, fn)
	if ok {
		m.publishState()
	}
	return ok
}

// ClearIssue сбрасывает выбор issue
func (m *Monitor) ClearIssue() {
	m.deps.Selection.ClearIssue()
	m.publishState()
}

// WatchRealtime публикует график реального времени устройства каждые
// RealtimeInterval, пока не вызван StopRealtime.
func (m *Monitor) WatchRealtime(device precog.Device, start, end time.Time) error {
	if m.deps.Charts == nil {
		return fmt.Errorf("realtime charts are not configured")
	}
	if !m.Active() {
		return fmt.Errorf("monitor is not active")
	}
	m.deps.Scheduler.Replace(poller.RoleRealtime, RealtimeInterval, true, func(ctx context.Context) {
		c, err := m.deps.Charts.Realtime(ctx, device, start, end)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("Realtime chart failed", "device", device.DeviceID, "error", err)
			}
			return
		}
		if m.deps.Push != nil && ctx.Err() == nil {
			m.deps.Push.Publish(EventRealtime, map[string]any{"deviceId": device.DeviceID, "chart": c})
		}
	})
	return nil
}

// StopRealtime останавливает обновление графика реального времени
func (m *Monitor) StopRealtime() {
	m.deps.Scheduler.Cancel(poller.RoleRealtime)
}
