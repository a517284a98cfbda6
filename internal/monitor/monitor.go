// Package monitor keeps the device and issue snapshots in sync with the PRECOG
// API: it runs the poll timer, applies selection and notification rules to
// every fresh snapshot and publishes the resulting state.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pv/precog-panel/internal/chart"
	"github.com/pv/precog-panel/internal/config"
	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/metrics"
	"github.com/pv/precog-panel/internal/notify"
	"github.com/pv/precog-panel/internal/poller"
	"github.com/pv/precog-panel/internal/precog"
	"github.com/pv/precog-panel/internal/selection"
	"github.com/pv/precog-panel/internal/session"
	"github.com/pv/precog-panel/internal/speech"
)

// RealtimeInterval период обновления графика реального времени
const RealtimeInterval = 5 * time.Second

// Имена push-событий
const (
	EventState    = "state"
	EventAlert    = "alert"
	EventRealtime = "realtime"
)

var ErrInvalidWindow = errors.New("window start must be before its end")

// API read-часть PRECOG, которую опрашивает монитор
type API interface {
	GetDevices(ctx context.Context) ([]precog.Device, error)
	GetIssuesByMeasuredDateRange(ctx context.Context, deviceID int64, start, end time.Time) ([]precog.Issue, error)
}

// Publisher рассылает события браузеру
type Publisher interface {
	Publish(event string, data any)
}

// Deps зависимости монитора. Alerts, Push, Speech, Charts и ReadAloud опциональны.
type Deps struct {
	API       API
	Scheduler *poller.Scheduler
	Selection *selection.Resolver
	Dedup     *notify.Deduplicator
	Alerts    func(alerts ...notify.Alert)
	Push      Publisher
	Speech    *speech.Queue
	Charts    *chart.Adapter
	ReadAloud func() bool
}

// Options параметры опроса
type Options struct {
	PollInterval time.Duration
	Window       *config.WindowConfig
	Location     *time.Location
}

// Window окно дат для выборки issues
type Window struct {
	From precog.Time `json:"from"`
	To   precog.Time `json:"to"`
}

// Snapshot состояние, которое видит браузер
type Snapshot struct {
	Active           bool            `json:"active"`
	Devices          []precog.Device `json:"devices"`
	Issues           []precog.Issue  `json:"issues"`
	SelectedDeviceID int64           `json:"selectedDeviceId,omitempty"`
	SelectedIssueID  int64           `json:"selectedIssueId,omitempty"`
	Window           Window          `json:"window"`
}

type Monitor struct {
	deps     Deps
	interval time.Duration

	// applyMu сериализует применение результатов (сетевые вызовы вне его)
	applyMu sync.Mutex

	mu         sync.Mutex
	start, end time.Time
	lastMarker precog.Marker
	active     bool
	alive      bool
	epoch      uint64
	generation uint64
}

// New создаёт монитор. Опрос начинается после Activate (получен ключ).
func New(deps Deps, opts Options) *Monitor {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	loc := opts.Location
	if loc == nil {
		loc = precog.Location
	}
	start, end := opts.Window.Range(time.Now(), loc)
	if deps.Selection == nil {
		deps.Selection = selection.NewResolver()
	}
	if deps.Dedup == nil {
		deps.Dedup = notify.NewDeduplicator("", loc)
	}
	return &Monitor{
		deps:     deps,
		interval: interval,
		start:    start,
		end:      end,
		alive:    true,
	}
}

func (m *Monitor) Selection() *selection.Resolver { return m.deps.Selection }

// HandleSession реагирует на изменения сессии: новый или обновлённый ключ
// перезапускает опрос, потеря ключа останавливает его.
func (m *Monitor) HandleSession(st session.Status) {
	if !st.Authenticated {
		m.Deactivate()
		return
	}
	m.mu.Lock()
	changed := !m.active || st.Generation != m.generation
	m.generation = st.Generation
	m.mu.Unlock()
	if changed {
		m.Activate()
	}
}

// Activate запускает опрос: сразу полное обновление, затем тики.
func (m *Monitor) Activate() {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	m.active = true
	m.epoch++
	m.mu.Unlock()

	logger.Info("Monitor activated", "interval", m.interval)
	m.restart()
}

// Deactivate останавливает опрос. Поздние ответы отбрасываются.
func (m *Monitor) Deactivate() {
	m.mu.Lock()
	wasActive := m.active
	m.active = false
	m.epoch++
	m.mu.Unlock()

	m.deps.Scheduler.Cancel(poller.RoleDevicePoll)
	m.deps.Scheduler.Cancel(poller.RoleRealtime)
	if wasActive {
		logger.Info("Monitor deactivated")
		m.publishState()
	}
}

// Stop окончательно останавливает монитор
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.alive = false
	m.mu.Unlock()
	m.Deactivate()
}

// Active reports whether polling is running.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active && m.alive
}

// restart пересоздаёт задачу опроса с замыканием над текущей эпохой.
// Первый вызов задачи выполняет полное обновление.
func (m *Monitor) restart() {
	m.mu.Lock()
	if !m.active || !m.alive {
		m.mu.Unlock()
		return
	}
	epoch := m.epoch
	m.mu.Unlock()

	first := true
	m.deps.Scheduler.Replace(poller.RoleDevicePoll, m.interval, true, func(ctx context.Context) {
		force := first
		first = false
		m.poll(ctx, epoch, force)
	})
}

func (m *Monitor) current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive && m.active && epoch == m.epoch
}

func (m *Monitor) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// Refresh выполняет полное обновление синхронно: устройства, затем issues
// выбранного устройства независимо от маркера.
func (m *Monitor) Refresh(ctx context.Context) {
	m.poll(ctx, m.currentEpoch(), true)
}

// poll один тик: устройства, затем (при необходимости) issues выбранного устройства,
// найденного в свежем списке.
func (m *Monitor) poll(ctx context.Context, epoch uint64, force bool) {
	_, changed, ok := m.fetchDevices(ctx, epoch)
	if !ok {
		return
	}

	device, found := m.deps.Selection.Device()
	if !found {
		return
	}

	m.mu.Lock()
	due := force || changed || !device.IssuesUpdatedAt.Equal(m.lastMarker)
	start, end := m.start, m.end
	m.mu.Unlock()

	if !due {
		return
	}
	// маркер запоминается только после применённого снимка, иначе
	// следующий тик повторит запрос
	if _, ok := m.fetchIssues(ctx, epoch, device, start, end); ok {
		m.mu.Lock()
		m.lastMarker = device.IssuesUpdatedAt
		m.mu.Unlock()
	}
}

// FetchDevices загружает снимок устройств. При ошибке возвращает пустой
// список, прежнее состояние не трогается.
func (m *Monitor) FetchDevices(ctx context.Context) []precog.Device {
	devices, _, _ := m.fetchDevices(ctx, m.currentEpoch())
	return devices
}

func (m *Monitor) fetchDevices(ctx context.Context, epoch uint64) ([]precog.Device, bool, bool) {
	begin := time.Now()
	devices, err := m.deps.API.GetDevices(ctx)
	metrics.ObserveAPI("get_devices", err, time.Since(begin))
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("Failed to fetch devices", "error", err)
		}
		return nil, false, false
	}

	m.applyMu.Lock()
	if !m.current(epoch) {
		m.applyMu.Unlock()
		logger.Debug("Dropping stale device snapshot")
		return nil, false, false
	}
	changed := m.deps.Selection.ApplyDevices(devices)
	alerts := m.deps.Dedup.ObserveDevices(devices, m.deps.Selection.DeviceID())
	m.applyMu.Unlock()

	metrics.SetDevices(len(devices))
	logger.Debug("Devices fetched", "count", len(devices), "alerts", len(alerts))
	m.emit(alerts)
	m.publishState()
	return devices, changed, true
}

// FetchIssues загружает issues устройства за окно [start, end]. Снимок
// применяется, только если устройство всё ещё выбрано.
func (m *Monitor) FetchIssues(ctx context.Context, device precog.Device, start, end time.Time) []precog.Issue {
	issues, _ := m.fetchIssues(ctx, m.currentEpoch(), device, start, end)
	return issues
}

func (m *Monitor) fetchIssues(ctx context.Context, epoch uint64, device precog.Device, start, end time.Time) ([]precog.Issue, bool) {
	begin := time.Now()
	issues, err := m.deps.API.GetIssuesByMeasuredDateRange(ctx, device.DeviceID, start, end)
	metrics.ObserveAPI("get_issues", err, time.Since(begin))
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("Failed to fetch issues", "device", device.DeviceID, "error", err)
		}
		return nil, false
	}

	m.applyMu.Lock()
	if !m.current(epoch) || !m.deps.Selection.ApplyIssues(device.DeviceID, issues) {
		m.applyMu.Unlock()
		logger.Debug("Dropping stale issue snapshot", "device", device.DeviceID)
		return issues, false
	}
	alerts := m.deps.Dedup.ObserveIssues(device, issues, m.deps.Selection.DeepLinkKey(), m.readAloud())
	m.applyMu.Unlock()

	logger.Debug("Issues fetched", "device", device.DeviceID, "count", len(issues), "alerts", len(alerts))
	m.emit(alerts)
	m.publishState()
	return issues, true
}

func (m *Monitor) readAloud() bool {
	return m.deps.ReadAloud != nil && m.deps.ReadAloud()
}

func (m *Monitor) emit(alerts []notify.Alert) {
	if len(alerts) == 0 {
		return
	}
	for _, a := range alerts {
		if m.deps.Push != nil {
			m.deps.Push.Publish(EventAlert, a)
		}
		// новое озвучивание прерывает предыдущее
		if a.ReadAloud && m.deps.Speech != nil {
			m.deps.Speech.Speak(a.Message, true)
		}
	}
	if m.deps.Alerts != nil {
		m.deps.Alerts(alerts...)
	}
}

// State returns the current snapshot as the browser sees it.
func (m *Monitor) State() Snapshot {
	m.mu.Lock()
	snap := Snapshot{
		Active: m.active && m.alive,
		Window: Window{From: precog.Time{Time: m.start}, To: precog.Time{Time: m.end}},
	}
	m.mu.Unlock()

	sel := m.deps.Selection
	snap.Devices = sel.Devices()
	snap.Issues = sel.Issues()
	snap.SelectedDeviceID = sel.DeviceID()
	if _, ok := sel.Issue(); ok {
		snap.SelectedIssueID = sel.IssueID()
	}
	if snap.Devices == nil {
		snap.Devices = []precog.Device{}
	}
	if snap.Issues == nil {
		snap.Issues = []precog.Issue{}
	}
	return snap
}

func (m *Monitor) publishState() {
	if m.deps.Push != nil {
		m.deps.Push.Publish(EventState, m.State())
	}
}
