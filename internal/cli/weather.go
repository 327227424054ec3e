package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/ui"
	"github.com/spf13/cobra"
)

var weatherPostalCode string

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Fetch the current outdoor temperature",
	Long: `Look up the configured postal code, ask the National Weather Service for the
hourly forecast there, and print the current temperature in °F.

This always fetches fresh data; the 30 minute cache only applies to
'pimon serve'.

Examples:
  pimon weather
  pimon weather --postal-code 10001
  pimon weather --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return weatherCommand(cmd.Context(), cmd.OutOrStdout(), weatherPostalCode)
	},
}

func init() {
	rootCmd.AddCommand(weatherCmd)
	weatherCmd.Flags().StringVar(&weatherPostalCode, "postal-code", "", "postal code to look up (overrides weather.postal_code)")
}

func weatherCommand(ctx context.Context, w io.Writer, postalCode string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if postalCode != "" {
		cfg.Weather.PostalCode = postalCode
		cfg.Weather.Enabled = true
	}

	client := newWeather(cfg.Weather)
	if client == nil {
		return errors.New(errors.ErrConfig,
			"Weather is disabled",
			"Set weather.enabled: true in pimon.yaml, or pass --postal-code.")
	}

	now := time.Now()
	if err := client.Refresh(ctx, now); err != nil {
		return err
	}
	snap := client.Snapshot()

	if machineMode {
		return WriteJSONSuccess(w, snap)
	}
	fmt.Fprintf(w, "%s %s\n", cfg.Weather.PostalCode, ui.RenderWeather(snap, now))
	return nil
}
