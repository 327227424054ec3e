package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/computergenieco/pimon/internal/scan"
	"github.com/computergenieco/pimon/internal/store"
	"github.com/computergenieco/pimon/internal/util"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a new Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	// Nothing is focused, so the selected row must look like any other.
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := NewTable(columns, tableRows)
	return t.View()
}

// RenderDevices renders the device store as a table, with ages relative
// to now.
func RenderDevices(readings []store.Reading, now time.Time) string {
	if len(readings) == 0 {
		return lipgloss.NewStyle().Foreground(ColorMuted).Render("No devices found")
	}

	columns := []TableColumn{
		{Title: "HOST", Width: 17},
		{Title: "TEMP", Width: 9},
		{Title: "UPTIME", Width: 10},
		{Title: "UPDATED", Width: 12},
	}

	rows := make([][]string, len(readings))
	for i, r := range readings {
		uptime := "-"
		if r.Uptime != nil {
			uptime = util.FormatUptime(*r.Uptime)
		}
		rows[i] = []string{r.Host, util.FormatCelsius(r.Temperature), uptime, FormatAge(now.Sub(r.LastUpdate))}
	}

	return RenderSimpleTable(columns, rows)
}

// RenderScan renders probe results, one line per address.
func RenderScan(results []scan.Result) string {
	if len(results) == 0 {
		return lipgloss.NewStyle().Foreground(ColorMuted).Render("No hosts matched")
	}

	columns := []TableColumn{
		{Title: "ADDRESS", Width: 17},
		{Title: "STATUS", Width: 12},
		{Title: "RTT", Width: 9},
		{Title: "BANNER", Width: 40},
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			r.Addr.String(),
			string(r.Status),
			r.RTT.Round(time.Millisecond).String(),
			truncate(r.Banner, 40),
		}
	}
	return RenderSimpleTable(columns, rows)
}

// CycleSummary is the subset of a poll cycle report shown after `pimon scan`.
type CycleSummary struct {
	Probed    int
	Open      int
	Collected int
	Failed    int
	Duration  time.Duration
	Failures  map[string]string
}

// RenderCycleSummary renders a one-line summary plus a line per failed host.
func RenderCycleSummary(s CycleSummary) string {
	successStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	var b strings.Builder

	symbol := successStyle.Render(SymbolSuccess)
	if s.Failed > 0 {
		symbol = errorStyle.Render(SymbolFail)
	}
	fmt.Fprintf(&b, "%s %d %s probed, %d open, %d collected",
		symbol, s.Probed, util.Pluralize(s.Probed, "address", "addresses"), s.Open, s.Collected)
	if s.Failed > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf(", %d failed", s.Failed)))
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf(" (%s)", s.Duration.Round(time.Millisecond))))
	b.WriteString("\n")
	b.WriteString(RenderFailures(s.Failures))
	return b.String()
}

// RenderFailures renders one indented line per failed host, in address order.
func RenderFailures(failures map[string]string) string {
	errorStyle := lipgloss.NewStyle().Foreground(ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	hosts := make([]string, 0, len(failures))
	for h := range failures {
		hosts = append(hosts, h)
	}
	sortHosts(hosts)

	var b strings.Builder
	for _, h := range hosts {
		fmt.Fprintf(&b, "  %s %s %s\n", errorStyle.Render(SymbolFail), padRight(h, 17), mutedStyle.Render(failures[h]))
	}
	return b.String()
}

// RenderTemperature renders a single reading with its threshold colour.
func RenderTemperature(celsius float64) string {
	return lipgloss.NewStyle().Foreground(TemperatureColor(celsius)).Render(util.FormatCelsius(celsius))
}

// FormatAge renders a duration as "12s ago", "5m ago", "3h ago".
func FormatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}
