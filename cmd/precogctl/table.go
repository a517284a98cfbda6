package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/pv/precog-panel/internal/chart"
	"github.com/pv/precog-panel/internal/display"
	"github.com/pv/precog-panel/internal/precog"
)

// render пишет items в формате --format: console (таблица) или json
func render[T any](w io.Writer, items []T, console func(io.Writer, []T)) error {
	switch strings.ToLower(flagFormat) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if items == nil {
			items = []T{}
		}
		return enc.Encode(items)
	case "console", "":
		console(w, items)
		return nil
	default:
		return fmt.Errorf("unknown format %q", flagFormat)
	}
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Format.Footer = text.FormatDefault
	if width := terminalWidth(w); width > 0 {
		tw.SetAllowedRowLength(width)
	}
	return tw
}

// terminalWidth returns the width of w when it is a terminal, or -1.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return -1
}

func devicesTable(w io.Writer, devices []precog.Device) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Application", "Direction", "Lookback", "Min Score", "Heartbeat", "Unconfirmed"})
	for _, d := range devices {
		flag := ""
		if d.HasUnconfirmedIssue {
			flag = text.FgRed.Sprint("yes")
		}
		hb := display.FormatDateSeconds(d.HeartBeat, precog.Location)
		if hb == "" {
			hb = text.FgHiBlack.Sprint("never")
		}
		tw.AppendRow(table.Row{
			d.DeviceID,
			display.DeviceLabel(d),
			d.Application,
			d.Direction,
			fmt.Sprintf("%d %s", d.Lookback, d.Scale),
			d.MinIssueScore,
			hb,
			flag,
		})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d devices", len(devices))})
	tw.Render()
}

func issuesTable(w io.Writer, issues []precog.Issue) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Title", "Confirmed", "Anomaly", "Score", "Measured", "Message"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, WidthMax: 60},
	})
	for _, is := range issues {
		anomaly := "no"
		if is.IsAnomaly {
			anomaly = text.FgRed.Sprint("yes")
		}
		confirmed := "no"
		if is.Confirmed {
			confirmed = "yes"
		}
		tw.AppendRow(table.Row{
			is.IssueID,
			chart.Title(is),
			confirmed,
			anomaly,
			is.IssueScore,
			display.FormatDateRange(is.MeasuredAtFrom, is.MeasuredAtTo, precog.Location),
			strings.Join(display.SplitMessage(is.MessageText()), "\n"),
		})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d issues", len(issues))})
	tw.Render()
}
