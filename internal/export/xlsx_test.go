package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pv/precog-panel/internal/precog"
)

func TestIssuesWorkbook(t *testing.T) {
	msg := "Pressure too high."
	from := precog.Time{Time: time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)}
	issues := []precog.Issue{
		{IssueID: 7, Confirmed: true, IsAnomaly: true, Message: &msg, MeasuredAtFrom: &from, IssueScore: 3.5, PeriodFrom: precog.NewMarker("1")},
		{IssueID: 8},
	}

	data, err := Issues(precog.Device{DeviceID: 1, Name: "Pump"}, issues, time.UTC)
	if err != nil {
		t.Fatalf("Issues: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Issue ID" || rows[0][7] != "Message" {
		t.Errorf("unexpected header %v", rows[0])
	}

	want := []string{"7", "Issue", "Yes", "Yes", "3.5", "2024.01.05 10:00:00", "", "Pressure too high."}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("row 1 col %d = %q, want %q", i, rows[1][i], v)
		}
	}
	if rows[2][1] != "Curve Period" || rows[2][2] != "No" {
		t.Errorf("unexpected curve row %v", rows[2])
	}

	props, err := f.GetDocProps()
	if err != nil || props.Title != "Pump" {
		t.Errorf("title = %q (%v)", props.Title, err)
	}
}

func TestFileName(t *testing.T) {
	got := FileName(precog.Device{DeviceID: 4}, time.Date(2024, 3, 1, 8, 5, 0, 0, time.UTC))
	if got != "issues-4-20240301-080500.xlsx" {
		t.Errorf("got %q", got)
	}
}
