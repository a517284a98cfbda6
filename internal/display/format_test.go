package display

import (
	"reflect"
	"testing"
	"time"

	"github.com/pv/precog-panel/internal/precog"
)

func at(y int, mo time.Month, d, h, mi, s int) *precog.Time {
	return &precog.Time{Time: time.Date(y, mo, d, h, mi, s, 0, time.UTC)}
}

func TestFormatDateRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to *precog.Time
		want     string
	}{
		{"same day", at(2024, 3, 5, 8, 4, 0), at(2024, 3, 5, 17, 30, 0), "2024.03.05 08:04 - 17:30"},
		{"different days", at(2024, 3, 5, 23, 0, 0), at(2024, 3, 6, 1, 15, 0), "2024.03.05 23:00 - 2024.03.06 01:15"},
		{"only to", nil, at(2024, 12, 31, 9, 9, 0), "2024.12.31 09:09"},
		{"only from", at(2024, 1, 1, 0, 0, 0), nil, "2024.01.01 00:00"},
		{"neither", nil, nil, ""},
		{"zero values", &precog.Time{}, &precog.Time{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDateRange(tt.from, tt.to, time.UTC); got != tt.want {
				t.Errorf("FormatDateRange() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDateRangeUsesLocation(t *testing.T) {
	plus3 := time.FixedZone("UTC+3", 3*3600)
	// 20:30 and 21:30 UTC fall on different calendar days in UTC+3
	got := FormatDateRange(at(2024, 3, 5, 20, 30, 0), at(2024, 3, 5, 21, 30, 0), plus3)
	if got != "2024.03.05 23:30 - 2024.03.06 00:30" {
		t.Errorf("unexpected %q", got)
	}
}

func TestFormatDateSeconds(t *testing.T) {
	if got := FormatDateSeconds(at(2024, 7, 1, 6, 5, 4), time.UTC); got != "2024.07.01 06:05:04" {
		t.Errorf("unexpected %q", got)
	}
	if got := FormatDateSeconds(nil, time.UTC); got != "" {
		t.Errorf("nil should format empty, got %q", got)
	}
}

func TestDeviceLabel(t *testing.T) {
	if got := DeviceLabel(precog.Device{DeviceID: 4, Name: "Boiler"}); got != "Boiler" {
		t.Errorf("unexpected %q", got)
	}
	if got := DeviceLabel(precog.Device{DeviceID: 4}); got != "device id: 4" {
		t.Errorf("unexpected %q", got)
	}
}

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		hb   *precog.Time
		want bool
	}{
		{"missing", nil, true},
		{"fresh", at(2024, 1, 1, 11, 30, 0), false},
		{"exactly one hour", at(2024, 1, 1, 11, 0, 0), false},
		{"old", at(2024, 1, 1, 10, 59, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStale(precog.Device{HeartBeat: tt.hb}, now); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIssueBody(t *testing.T) {
	msg := "Pressure spike"
	issue := precog.Issue{MeasuredAtFrom: at(2024, 3, 5, 8, 0, 0), MeasuredAtTo: at(2024, 3, 5, 9, 0, 0), Message: &msg}
	if got := IssueBody(issue, time.UTC); got != "2024.03.05 08:00 - 09:00\nPressure spike" {
		t.Errorf("unexpected %q", got)
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"One. Two? Three!", []string{"One.", "Two?", "Three!"}},
		{"Key: value; next", []string{"Key:", "value;", "next"}},
		{"v1.2 stays", []string{"v1.2 stays"}},
		{"Trailing.  ", []string{"Trailing."}},
		{"", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SplitMessage(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitMessage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
