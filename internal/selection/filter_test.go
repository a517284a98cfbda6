package selection

import (
	"testing"

	"github.com/pv/precog-panel/internal/precog"
)

func TestDeviceFilter(t *testing.T) {
	list := []precog.Device{
		{DeviceID: 1, Name: "Boiler Pump"},
		{DeviceID: 2, Name: "pump house", HasUnconfirmedIssue: true},
		{DeviceID: 3, Name: "Fan"},
	}
	tests := []struct {
		filter DeviceFilter
		want   []int64
	}{
		{DeviceFilter{}, []int64{1, 2, 3}},
		{DeviceFilter{Name: "PUMP"}, []int64{1, 2}},
		{DeviceFilter{UnconfirmedOnly: true}, []int64{2}},
		{DeviceFilter{Name: "fan", UnconfirmedOnly: true}, nil},
	}
	for _, tt := range tests {
		got := tt.filter.Apply(list)
		if len(got) != len(tt.want) {
			t.Errorf("%+v: got %d devices, want %d", tt.filter, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].DeviceID != tt.want[i] {
				t.Errorf("%+v: got %d at %d, want %d", tt.filter, got[i].DeviceID, i, tt.want[i])
			}
		}
	}
}

func TestIssueFilter(t *testing.T) {
	unconfirmed := precog.Issue{IsAnomaly: true}
	anomaly := precog.Issue{Confirmed: true, IsAnomaly: true}
	other := precog.Issue{Confirmed: true}
	curve := precog.Issue{}

	tests := []struct {
		name   string
		filter IssueFilter
		issue  precog.Issue
		want   bool
	}{
		{"no filter", IssueFilter{}, curve, true},
		{"not confirmed", IssueFilter{NotConfirmed: true}, unconfirmed, true},
		{"not confirmed rejects confirmed", IssueFilter{NotConfirmed: true}, anomaly, false},
		{"anomaly", IssueFilter{Anomaly: true}, anomaly, true},
		{"others", IssueFilter{Others: true}, other, true},
		{"others rejects unconfirmed", IssueFilter{Others: true}, curve, false},
		{"union", IssueFilter{NotConfirmed: true, Others: true}, other, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.issue); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNavigate(t *testing.T) {
	r := NewResolver()
	r.ApplyDevices([]precog.Device{{DeviceID: 1}})
	r.ApplyIssues(1, []precog.Issue{
		{IssueID: 10, Confirmed: true, IsAnomaly: true},
		{IssueID: 20},
		{IssueID: 30, Confirmed: true, IsAnomaly: true},
		{IssueID: 40, Confirmed: true, IsAnomaly: true},
	})

	if _, moved := r.Navigate(Up, IssueFilter{}); moved {
		t.Error("cannot move up from the head")
	}
	if id, moved := r.Navigate(Down, IssueFilter{}); !moved || id != 20 {
		t.Fatalf("down: got %d %v", id, moved)
	}

	// 20 скрыто фильтром: ближайший id 10 (разница 10 против 10 у 30, первый выигрывает)
	anomalies := IssueFilter{Anomaly: true}
	if id, moved := r.Navigate(Down, anomalies); !moved || id != 30 {
		t.Errorf("down from hidden 20: got %d %v", id, moved)
	}
	if id, moved := r.Navigate(Down, anomalies); !moved || id != 40 {
		t.Errorf("down: got %d %v", id, moved)
	}
	if _, moved := r.Navigate(Down, anomalies); moved {
		t.Error("cannot move past the tail")
	}
	if id, _ := r.Navigate(Up, anomalies); id != 30 {
		t.Errorf("up: got %d", id)
	}
}
