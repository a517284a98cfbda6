// Package chart maps PRECOG chart endpoints to named plotting series.
package chart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pv/precog-panel/internal/precog"
)

// ErrNoPeriod: у issue нет данных, по которым можно запросить график
var ErrNoPeriod = errors.New("issue has no chart period")

// Role назначение ряда
type Role string

const (
	RoleHighlight Role = "highlight" // точки аномалий
	RoleBound     Role = "bound"     // target/tolerance
	RoleActual    Role = "actual"
	RoleLimit     Role = "limit" // контрольные границы 2σ/3σ
)

// Series один ряд графика
type Series struct {
	Label    string     `json:"label"`
	Role     Role       `json:"role"`
	Data     []*float64 `json:"data"`
	Color    string     `json:"color"`
	Dashed   bool       `json:"dashed,omitempty"`
	Hidden   bool       `json:"hidden,omitempty"`
	InLegend bool       `json:"inLegend"`
	Fill     string     `json:"fill,omitempty"`
}

// Chart готовые к отрисовке данные
type Chart struct {
	Title    string   `json:"title"`
	Labels   []string `json:"labels"`
	Series   []Series `json:"series"`
	Enlarged bool     `json:"enlarged"`
}

// Source read-часть API для графиков
type Source interface {
	GetPeriodRange(ctx context.Context, device precog.Device, periodFrom, periodTo precog.Marker) ([]precog.ChartPoint, error)
	GetCurvePeriodRange(ctx context.Context, device precog.Device, issueID int64) ([]precog.ChartPoint, error)
	GetMeasuredDateRange(ctx context.Context, deviceID int64, start, end time.Time) ([]precog.MeasuredPoint, error)
}

// Adapter загружает данные графиков. Кэша нет: каждый вызов идёт в API.
type Adapter struct {
	src Source
}

func NewAdapter(src Source) *Adapter {
	return &Adapter{src: src}
}

// Issue loads the chart of the issue. Control limits are hidden unless enlarged.
func (a *Adapter) Issue(ctx context.Context, device precog.Device, issue precog.Issue, enlarged bool) (Chart, error) {
	var (
		points []precog.ChartPoint
		err    error
	)
	if device.IsContinuous() {
		if issue.PeriodFrom.IsNull() || issue.PeriodTo.IsNull() {
			return Chart{}, ErrNoPeriod
		}
		points, err = a.src.GetPeriodRange(ctx, device, issue.PeriodFrom, issue.PeriodTo)
	} else {
		if issue.IssueID == 0 {
			return Chart{}, ErrNoPeriod
		}
		points, err = a.src.GetCurvePeriodRange(ctx, device, issue.IssueID)
	}
	if err != nil {
		return Chart{}, fmt.Errorf("load chart: %w", err)
	}

	c := Build(device, points, enlarged)
	c.Title = Title(issue)
	return c, nil
}

// Title "Issue #N" для issue и "Curve Period #N" для периода кривой
func Title(issue precog.Issue) string {
	if issue.IsCurvePeriod() {
		return fmt.Sprintf("Curve Period #%d", issue.IssueID)
	}
	return fmt.Sprintf("Issue #%d", issue.IssueID)
}

// Build maps points into series for the device's direction.
func Build(device precog.Device, points []precog.ChartPoint, enlarged bool) Chart {
	c := Chart{Labels: make([]string, len(points)), Enlarged: enlarged}
	for i, p := range points {
		c.Labels[i] = p.MeasuredAt
	}

	actual := func(match func(p precog.ChartPoint) bool) []*float64 {
		return mapPoints(points, func(p precog.ChartPoint) *float64 {
			if match(p) {
				return p.Actual
			}
			return nil
		})
	}

	if device.IsBidirectional() {
		c.Series = append(c.Series,
			highlight("CriticalAbove", "red", actual(func(p precog.ChartPoint) bool { return p.AnomalyAbove == 2 })),
			highlight("WarningAbove", "lightBlue", actual(func(p precog.ChartPoint) bool { return p.AnomalyAbove == 1 })),
			highlight("CriticalBelow", "blue", actual(func(p precog.ChartPoint) bool { return p.AnomalyBelow == 2 })),
			highlight("WarningBelow", "gold", actual(func(p precog.ChartPoint) bool { return p.AnomalyBelow == 1 })),
			bound("Tolerance Above", "darkBlue", mapPoints(points, func(p precog.ChartPoint) *float64 { return add(p.TargetAbove, p.ToleranceAbove, 1) })),
			bound("Target Above", "lightBlue", mapPoints(points, func(p precog.ChartPoint) *float64 { return p.TargetAbove })),
			bound("Target Below", "gold", mapPoints(points, func(p precog.ChartPoint) *float64 { return p.TargetBelow })),
			bound("Tolerance Below", "red", mapPoints(points, func(p precog.ChartPoint) *float64 { return add(p.TargetBelow, p.ToleranceBelow, -1) })),
		)
	} else {
		// для LowerIsBetter граница допуска выше цели, иначе ниже
		sign := -1.0
		if device.Direction == precog.DirectionLowerIsBetter {
			sign = 1
		}
		c.Series = append(c.Series,
			highlight("Critical", "red", actual(func(p precog.ChartPoint) bool { return p.Anomaly == 2 })),
			highlight("Warning", "gold", actual(func(p precog.ChartPoint) bool { return p.Anomaly == 1 })),
			bound("Target", "gold", mapPoints(points, func(p precog.ChartPoint) *float64 { return p.Target })),
			bound("Tolerance", "red", mapPoints(points, func(p precog.ChartPoint) *float64 { return add(p.Target, p.Tolerance, sign) })),
		)
	}

	c.Series = append(c.Series,
		Series{
			Label:    "Actual",
			Role:     RoleActual,
			Data:     mapPoints(points, func(p precog.ChartPoint) *float64 { return p.Actual }),
			Color:    "#014F91",
			InLegend: true,
		},
		limit("UCL3", "grey", "", enlarged, mapPoints(points, func(p precog.ChartPoint) *float64 { return p.UpperControlLimit3S })),
		limit("UCL2", "lightGrey", "-1", enlarged, mapPoints(points, func(p precog.ChartPoint) *float64 { return p.UpperControlLimit2S })),
		limit("LCL2", "lightGrey", "", enlarged, mapPoints(points, func(p precog.ChartPoint) *float64 { return p.LowerControlLimit2S })),
		limit("LCL3", "grey", "-1", enlarged, mapPoints(points, func(p precog.ChartPoint) *float64 { return p.LowerControlLimit3S })),
	)
	return c
}

// Realtime loads raw measurements of a continuous device for the window.
func (a *Adapter) Realtime(ctx context.Context, device precog.Device, start, end time.Time) (Chart, error) {
	points, err := a.src.GetMeasuredDateRange(ctx, device.DeviceID, start, end)
	if err != nil {
		return Chart{}, fmt.Errorf("load realtime chart: %w", err)
	}
	c := BuildRealtime(points)
	c.Title = "Real time data - " + device.Name
	return c, nil
}

// BuildRealtime: Actual, Target и Tolerance (target + tolerance)
func BuildRealtime(points []precog.MeasuredPoint) Chart {
	c := Chart{Labels: make([]string, len(points))}
	actual := make([]*float64, len(points))
	target := make([]*float64, len(points))
	tolerance := make([]*float64, len(points))
	for i, p := range points {
		c.Labels[i] = p.MeasuredAt
		actual[i] = p.Actual
		target[i] = p.Target
		tolerance[i] = add(p.Target, p.Tolerance, 1)
	}
	c.Series = []Series{
		{Label: "Actual", Role: RoleActual, Data: actual, Color: "#014F91", InLegend: true},
		bound("Target", "gold", target),
		bound("Tolerance", "red", tolerance),
	}
	return c
}

func highlight(label, color string, data []*float64) Series {
	return Series{Label: label, Role: RoleHighlight, Data: data, Color: color}
}

func bound(label, color string, data []*float64) Series {
	return Series{Label: label, Role: RoleBound, Data: data, Color: color, Dashed: true, InLegend: true}
}

func limit(label, color, fill string, enlarged bool, data []*float64) Series {
	return Series{Label: label, Role: RoleLimit, Data: data, Color: color, Dashed: true, Hidden: !enlarged, InLegend: true, Fill: fill}
}

func mapPoints(points []precog.ChartPoint, fn func(precog.ChartPoint) *float64) []*float64 {
	out := make([]*float64, len(points))
	for i, p := range points {
		out[i] = fn(p)
	}
	return out
}

// add returns a + sign*b, or nil when either side is missing.
func add(a, b *float64, sign float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	v := *a + sign**b
	return &v
}
