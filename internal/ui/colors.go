package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Temperature thresholds in °C for colouring device readings.
const (
	WarmCelsius = 60.0
	HotCelsius  = 75.0
)

// ConfigureOutput picks the colour profile for w. Colour is disabled when
// noColor is set, NO_COLOR is present, or w is not a terminal.
func ConfigureOutput(w io.Writer, noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !IsTerminal(w) {
		DisableColors()
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
}

// DisableColors switches lipgloss to plain ASCII output.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// TemperatureColor maps a reading to green, yellow or red.
func TemperatureColor(celsius float64) lipgloss.Color {
	switch {
	case celsius >= HotCelsius:
		return ColorError
	case celsius >= WarmCelsius:
		return ColorWarning
	default:
		return ColorSuccess
	}
}
