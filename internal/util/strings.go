package util

import (
	"fmt"
	"strings"
	"time"
)

// JoinOrNone joins strings with ", " or returns "(none)" for empty slices.
func JoinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

// Pluralize returns singular if count is 1, otherwise plural.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// FormatUptime renders a seconds count the way `uptime -p` would, trimmed to
// the two most significant units: "3d 4h", "2h 5m", "42s".
func FormatUptime(seconds int64) string {
	if seconds < 0 {
		return "-"
	}
	d := time.Duration(seconds) * time.Second

	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)
	secs := int64((d - time.Duration(minutes)*time.Minute) / time.Second)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// FormatCelsius renders a temperature with one decimal place.
func FormatCelsius(c float64) string {
	return fmt.Sprintf("%.1f°C", c)
}
