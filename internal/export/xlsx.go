// Package export writes issue lists as XLSX workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pv/precog-panel/internal/display"
	"github.com/pv/precog-panel/internal/precog"
)

const sheetName = "Issues"

// IssueHeader заголовок таблицы
var IssueHeader = []string{
	"Issue ID",
	"Type",
	"Confirmed",
	"Anomaly",
	"Score",
	"Measured From",
	"Measured To",
	"Message",
}

var columnWidths = []float64{10, 14, 11, 10, 10, 20, 20, 60}

// Issues строит книгу с issues устройства. Даты в loc.
func Issues(device precog.Device, issues []precog.Issue, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   display.DeviceLabel(device),
		Creator: "precog-panel",
	}); err != nil {
		return nil, fmt.Errorf("failed to set properties: %w", err)
	}

	for col, header := range IssueHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheetName, colName, colName, columnWidths[col]); err != nil {
			return nil, err
		}
	}

	for i, is := range issues {
		row := []any{
			is.IssueID,
			issueType(is),
			yesNo(is.Confirmed),
			yesNo(is.IsAnomaly),
			is.IssueScore,
			display.FormatDateSeconds(is.MeasuredAtFrom, loc),
			display.FormatDateSeconds(is.MeasuredAtTo, loc),
			is.MessageText(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName имя файла выгрузки
func FileName(device precog.Device, now time.Time) string {
	return fmt.Sprintf("issues-%d-%s.xlsx", device.DeviceID, now.Format("20060102-150405"))
}

func issueType(is precog.Issue) string {
	if is.IsCurvePeriod() {
		return "Curve Period"
	}
	return "Issue"
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
