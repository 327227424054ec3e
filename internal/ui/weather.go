package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/computergenieco/pimon/internal/weather"
)

// RenderWeather renders the outdoor temperature line for `pimon weather`.
func RenderWeather(s weather.Snapshot, now time.Time) string {
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	if s.Temp == nil {
		return lipgloss.NewStyle().Foreground(ColorWarning).Render(SymbolPending+" outdoor temperature unavailable") +
			mutedStyle.Render(" (check the log for the failing request)")
	}

	line := lipgloss.NewStyle().Foreground(ColorInfo).Render(fmt.Sprintf("%d°F", *s.Temp))
	if s.LastUpdate != nil {
		line += mutedStyle.Render(" (updated " + FormatAge(now.Sub(*s.LastUpdate)) + ")")
	}
	return lipgloss.NewStyle().Foreground(ColorSuccess).Render(SymbolSuccess) + " outdoor " + line
}
