package precog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Application тип устройства
type Application string

const (
	ApplicationContinuous Application = "Continuous"
	ApplicationPeriodic   Application = "Periodic"
)

// Direction направление "хорошего" отклонения
type Direction string

const (
	DirectionLowerIsBetter  Direction = "LowerIsBetter"
	DirectionHigherIsBetter Direction = "HigherIsBetter"
	DirectionBiDirectional  Direction = "BiDirectional"
)

// Scale единица измерения lookback
type Scale string

const (
	ScaleDays         Scale = "Days"
	ScaleHours        Scale = "Hours"
	ScaleMicroseconds Scale = "Microseconds"
	ScaleMilliseconds Scale = "Milliseconds"
	ScaleMinutes      Scale = "Minutes"
	ScaleMonths       Scale = "Months"
	ScalePeriods      Scale = "Periods"
	ScaleSeconds      Scale = "Seconds"
	ScaleTicks        Scale = "Ticks"
	ScaleYears        Scale = "Years"
)

// Scales lists every scale accepted by the API, in display order.
var Scales = []Scale{
	ScaleDays, ScaleHours, ScaleMicroseconds, ScaleMilliseconds, ScaleMinutes,
	ScaleMonths, ScalePeriods, ScaleSeconds, ScaleTicks, ScaleYears,
}

func (a Application) Valid() bool {
	return a == ApplicationContinuous || a == ApplicationPeriodic
}

func (d Direction) Valid() bool {
	switch d {
	case DirectionLowerIsBetter, DirectionHigherIsBetter, DirectionBiDirectional:
		return true
	}
	return false
}

func (s Scale) Valid() bool {
	for _, v := range Scales {
		if v == s {
			return true
		}
	}
	return false
}

// TimeLayout формат дат в запросах и ответах API (локальное время без зоны)
const TimeLayout = "2006-01-02T15:04:05"

// Location is the zone used for timestamps the API sends without an offset.
var Location = time.Local

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	TimeLayout,
}

// Time метка времени API. Значения без зоны трактуются в Location.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(FormatTime(t.Time))
}

// ParseTime разбирает метку времени в любом из форматов API
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		var (
			parsed time.Time
			err    error
		)
		if layout == time.RFC3339Nano {
			parsed, err = time.Parse(layout, s)
		} else {
			parsed, err = time.ParseInLocation(layout, s, Location)
		}
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("time: unsupported format %q", s)
}

// FormatTime форматирует время для query-параметров API
func FormatTime(t time.Time) string {
	return t.In(Location).Format(TimeLayout)
}

// Marker непрозрачное скалярное значение (строка, число или null).
// Сравнивается только на равенство; null никогда не равен другому маркеру.
type Marker struct {
	raw json.RawMessage
}

// NewMarker builds a string marker.
func NewMarker(s string) Marker {
	b, _ := json.Marshal(s)
	return Marker{raw: b}
}

func (m *Marker) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		m.raw = nil
		return nil
	}
	m.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

func (m Marker) MarshalJSON() ([]byte, error) {
	if m.raw == nil {
		return []byte("null"), nil
	}
	return m.raw, nil
}

func (m Marker) IsNull() bool {
	return m.raw == nil
}

// Equal reports whether both markers are set and hold the same value.
func (m Marker) Equal(o Marker) bool {
	if m.IsNull() || o.IsNull() {
		return false
	}
	return bytes.Equal(m.raw, o.raw)
}

// String returns the value as it goes into a query string.
func (m Marker) String() string {
	if m.raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.raw, &s); err == nil {
		return s
	}
	return string(m.raw)
}

// Device устройство (датчик) в том виде, как его отдаёт /Devices/GetDeviceDetails
type Device struct {
	DeviceID            int64       `json:"deviceId"`
	Name                string      `json:"name"`
	Application         Application `json:"application"`
	Direction           Direction   `json:"direction"`
	Lookback            int         `json:"lookback"`
	Scale               Scale       `json:"scale"`
	MinIssueScore       float64     `json:"minIssueScore"`
	HeartBeat           *Time       `json:"heartBeat"`
	HasUnconfirmedIssue bool        `json:"hasUnconfirmedIssue"`
	IssuesUpdatedAt     Marker      `json:"issuesUpdatedAt"`
}

func (d Device) IsBidirectional() bool {
	return d.Direction == DirectionBiDirectional
}

func (d Device) IsContinuous() bool {
	return d.Application == ApplicationContinuous
}

// Issue обнаруженная аномалия или период кривой
type Issue struct {
	IssueID        int64   `json:"issueId"`
	Confirmed      bool    `json:"confirmed"`
	IsAnomaly      bool    `json:"isAnomaly"`
	Message        *string `json:"message"`
	MeasuredAtFrom *Time   `json:"measuredAtFrom"`
	MeasuredAtTo   *Time   `json:"measuredAtTo"`
	IssueScore     float64 `json:"issueScore"`
	PeriodFrom     Marker  `json:"periodFrom"`
	PeriodTo       Marker  `json:"periodTo"`
}

// IsCurvePeriod reports whether a periodic record has not been turned into an issue yet.
func (i Issue) IsCurvePeriod() bool {
	return i.PeriodFrom.IsNull()
}

// MessageText returns the message or "" when absent.
func (i Issue) MessageText() string {
	if i.Message == nil {
		return ""
	}
	return *i.Message
}

// ChartPoint одна точка графика периода/кривой
type ChartPoint struct {
	MeasuredAt          string   `json:"measuredAt"`
	Actual              *float64 `json:"actual"`
	Anomaly             int      `json:"anomaly"`
	AnomalyAbove        int      `json:"anomalyAbove"`
	AnomalyBelow        int      `json:"anomalyBelow"`
	Target              *float64 `json:"target"`
	Tolerance           *float64 `json:"tolerance"`
	TargetAbove         *float64 `json:"targetAbove"`
	ToleranceAbove      *float64 `json:"toleranceAbove"`
	TargetBelow         *float64 `json:"targetBelow"`
	ToleranceBelow      *float64 `json:"toleranceBelow"`
	UpperControlLimit3S *float64 `json:"upperControlLimit3S"`
	UpperControlLimit2S *float64 `json:"upperControlLimit2S"`
	LowerControlLimit2S *float64 `json:"lowerControlLimit2S"`
	LowerControlLimit3S *float64 `json:"lowerControlLimit3S"`
}

// Curve ответ эндпоинтов */CurvePeriodRange
type Curve struct {
	OutputData []ChartPoint `json:"outputData"`
}

// MeasuredPoint точка графика реального времени
type MeasuredPoint struct {
	MeasuredAt string   `json:"measuredAt"`
	Actual     *float64 `json:"actual"`
	Target     *float64 `json:"target"`
	Tolerance  *float64 `json:"tolerance"`
}

// UserDetails ответ /User/GetUserDetails
type UserDetails struct {
	DisplayName string `json:"displayName"`
}

// InvalidFormMessage is shown when a device form has non-positive numbers.
const InvalidFormMessage = "Please fill all numeric fields with positive numbers."

var ErrInvalidDeviceForm = errors.New(InvalidFormMessage)

// DeviceForm параметры создания/изменения устройства
type DeviceForm struct {
	DeviceID      int64       `json:"deviceId"`
	Name          string      `json:"name"`
	Application   Application `json:"application"`
	Direction     Direction   `json:"direction"`
	Lookback      int         `json:"lookback"`
	Scale         Scale       `json:"scale"`
	MinIssueScore float64     `json:"minIssueScore"`
}

// FormFromDevice pre-fills a form for editing.
func FormFromDevice(d Device) DeviceForm {
	return DeviceForm{
		DeviceID:      d.DeviceID,
		Name:          d.Name,
		Application:   d.Application,
		Direction:     d.Direction,
		Lookback:      d.Lookback,
		Scale:         d.Scale,
		MinIssueScore: d.MinIssueScore,
	}
}

// Validate проверяет форму до обращения к API
func (f DeviceForm) Validate() error {
	if f.DeviceID <= 0 || f.Lookback <= 0 || f.MinIssueScore <= 0 {
		return ErrInvalidDeviceForm
	}
	if !f.Application.Valid() {
		return fmt.Errorf("unknown application %q", f.Application)
	}
	if !f.Direction.Valid() {
		return fmt.Errorf("unknown direction %q", f.Direction)
	}
	if !f.Scale.Valid() {
		return fmt.Errorf("unknown scale %q", f.Scale)
	}
	return nil
}

// ReanalysisPrompt is asked before saving a form that RequiresReanalysis.
const ReanalysisPrompt = "Changing the Lookback or Scale will trigger a full device data reanalysis. Do you want to continue?"

// RequiresReanalysis reports whether saving the form over prev triggers a full
// server-side reanalysis of the device data.
func (f DeviceForm) RequiresReanalysis(prev Device) bool {
	return f.Lookback != prev.Lookback || !strings.EqualFold(string(f.Scale), string(prev.Scale))
}

func (f DeviceForm) query() map[string]string {
	return map[string]string{
		"DeviceId":      fmt.Sprintf("%d", f.DeviceID),
		"DeviceName":    f.Name,
		"Application":   string(f.Application),
		"Direction":     string(f.Direction),
		"Lookback":      fmt.Sprintf("%d", f.Lookback),
		"Scale":         string(f.Scale),
		"MinIssueScore": fmt.Sprintf("%g", f.MinIssueScore),
	}
}
