package chart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pv/precog-panel/internal/precog"
)

func f(v float64) *float64 { return &v }

type fakeSource struct {
	period   []precog.ChartPoint
	curve    []precog.ChartPoint
	measured []precog.MeasuredPoint
	calls    []string
	err      error
}

func (s *fakeSource) GetPeriodRange(_ context.Context, d precog.Device, from, to precog.Marker) ([]precog.ChartPoint, error) {
	s.calls = append(s.calls, "period:"+from.String()+"-"+to.String())
	return s.period, s.err
}

func (s *fakeSource) GetCurvePeriodRange(_ context.Context, d precog.Device, issueID int64) ([]precog.ChartPoint, error) {
	s.calls = append(s.calls, "curve")
	return s.curve, s.err
}

func (s *fakeSource) GetMeasuredDateRange(_ context.Context, deviceID int64, start, end time.Time) ([]precog.MeasuredPoint, error) {
	s.calls = append(s.calls, "measured")
	return s.measured, s.err
}

func labels(c Chart) []string {
	out := make([]string, len(c.Series))
	for i, s := range c.Series {
		out[i] = s.Label
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func series(c Chart, label string) Series {
	for _, s := range c.Series {
		if s.Label == label {
			return s
		}
	}
	return Series{}
}

func TestBuildUnidirectional(t *testing.T) {
	points := []precog.ChartPoint{
		{MeasuredAt: "t1", Actual: f(10), Anomaly: 0, Target: f(5), Tolerance: f(2)},
		{MeasuredAt: "t2", Actual: f(20), Anomaly: 2, Target: f(5), Tolerance: f(2)},
		{MeasuredAt: "t3", Actual: f(30), Anomaly: 1},
	}
	device := precog.Device{Direction: precog.DirectionHigherIsBetter}
	c := Build(device, points, false)

	want := []string{"Critical", "Warning", "Target", "Tolerance", "Actual", "UCL3", "UCL2", "LCL2", "LCL3"}
	if got := labels(c); !equal(got, want) {
		t.Fatalf("series = %v, want %v", got, want)
	}

	critical := series(c, "Critical")
	if critical.Data[0] != nil || *critical.Data[1] != 20 || critical.Data[2] != nil {
		t.Errorf("critical highlights wrong: %v", critical.Data)
	}
	if critical.InLegend {
		t.Error("highlight series stay out of the legend")
	}
	if w := series(c, "Warning"); w.Data[2] == nil || *w.Data[2] != 30 {
		t.Errorf("warning highlights wrong: %v", w.Data)
	}

	tol := series(c, "Tolerance")
	if *tol.Data[0] != 3 {
		t.Errorf("HigherIsBetter tolerance = %v, want target - tolerance", *tol.Data[0])
	}
	if tol.Data[2] != nil {
		t.Error("missing target yields no tolerance point")
	}

	for _, l := range []string{"UCL3", "UCL2", "LCL2", "LCL3"} {
		if !series(c, l).Hidden {
			t.Errorf("%s should be hidden when not enlarged", l)
		}
	}
	if !equal(c.Labels, []string{"t1", "t2", "t3"}) {
		t.Errorf("labels = %v", c.Labels)
	}
}

func TestBuildLowerIsBetterTolerance(t *testing.T) {
	points := []precog.ChartPoint{{Target: f(5), Tolerance: f(2)}}
	c := Build(precog.Device{Direction: precog.DirectionLowerIsBetter}, points, true)
	if v := series(c, "Tolerance").Data[0]; *v != 7 {
		t.Errorf("LowerIsBetter tolerance = %v, want 7", *v)
	}
	if series(c, "UCL3").Hidden {
		t.Error("limits visible when enlarged")
	}
}

func TestBuildBidirectional(t *testing.T) {
	points := []precog.ChartPoint{
		{Actual: f(9), AnomalyAbove: 2, TargetAbove: f(6), ToleranceAbove: f(1), TargetBelow: f(2), ToleranceBelow: f(1)},
		{Actual: f(1), AnomalyBelow: 1},
	}
	c := Build(precog.Device{Direction: precog.DirectionBiDirectional}, points, false)

	want := []string{
		"CriticalAbove", "WarningAbove", "CriticalBelow", "WarningBelow",
		"Tolerance Above", "Target Above", "Target Below", "Tolerance Below",
		"Actual", "UCL3", "UCL2", "LCL2", "LCL3",
	}
	if got := labels(c); !equal(got, want) {
		t.Fatalf("series = %v, want %v", got, want)
	}
	if v := series(c, "CriticalAbove").Data[0]; v == nil || *v != 9 {
		t.Errorf("critical above = %v", v)
	}
	if v := series(c, "WarningBelow").Data[1]; v == nil || *v != 1 {
		t.Errorf("warning below = %v", v)
	}
	if v := series(c, "Tolerance Above").Data[0]; *v != 7 {
		t.Errorf("tolerance above = %v", *v)
	}
	if v := series(c, "Tolerance Below").Data[0]; *v != 1 {
		t.Errorf("tolerance below = %v", *v)
	}
}

func TestAdapterEndpoints(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{period: []precog.ChartPoint{{MeasuredAt: "a"}}, curve: []precog.ChartPoint{{MeasuredAt: "b"}}}
	a := NewAdapter(src)

	continuous := precog.Device{DeviceID: 1, Application: precog.ApplicationContinuous}
	issue := precog.Issue{IssueID: 4, PeriodFrom: precog.NewMarker("10"), PeriodTo: precog.NewMarker("12")}
	c, err := a.Issue(ctx, continuous, issue, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Issue #4" || c.Labels[0] != "a" || src.calls[0] != "period:10-12" {
		t.Errorf("unexpected chart %+v calls %v", c, src.calls)
	}

	periodic := precog.Device{DeviceID: 2, Application: precog.ApplicationPeriodic}
	c, err = a.Issue(ctx, periodic, precog.Issue{IssueID: 8}, true)
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Curve Period #8" || c.Labels[0] != "b" || !c.Enlarged {
		t.Errorf("unexpected chart %+v", c)
	}

	if _, err := a.Issue(ctx, continuous, precog.Issue{IssueID: 3}, false); !errors.Is(err, ErrNoPeriod) {
		t.Errorf("expected ErrNoPeriod, got %v", err)
	}

	src.err = errors.New("down")
	if _, err := a.Issue(ctx, periodic, precog.Issue{IssueID: 8}, false); err == nil {
		t.Error("expected error")
	}
}

func TestRealtime(t *testing.T) {
	src := &fakeSource{measured: []precog.MeasuredPoint{
		{MeasuredAt: "m1", Actual: f(3), Target: f(4), Tolerance: f(1)},
		{MeasuredAt: "m2", Actual: f(5)},
	}}
	c, err := NewAdapter(src).Realtime(context.Background(), precog.Device{DeviceID: 1, Name: "Pump"}, time.Now(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Real time data - Pump" {
		t.Errorf("title = %q", c.Title)
	}
	if got := labels(c); !equal(got, []string{"Actual", "Target", "Tolerance"}) {
		t.Errorf("series = %v", got)
	}
	tol := series(c, "Tolerance")
	if *tol.Data[0] != 5 || tol.Data[1] != nil {
		t.Errorf("tolerance = %v", tol.Data)
	}
}
