package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/computergenieco/pimon/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile   string
	debugMode bool
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "pimon",
	Short: "Temperature monitor for the single-board computers on your network",
	Long: `pimon finds SSH-reachable devices on your network, runs a small script on
each to read its CPU temperature and uptime, and serves the results together
with the local outdoor temperature as a JSON API for the dashboard.

Running pimon with no subcommand is the same as 'pimon serve'.

Examples:
  pimon
  pimon scan --range 192.168.1.0/24
  pimon collect 192.168.1.40
  pimon config init`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if machineMode {
			ui.DisableColors()
			return
		}
		ui.ConfigureOutput(os.Stdout, noColor)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand(cmd.Context(), serveOptions{})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pimon.yaml, then ~/.config/pimon/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVar(&machineMode, "json", false, "write machine-readable JSON to stdout")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")
}

// Execute runs the root command. Interrupt and SIGTERM cancel the command's
// context; a failing command prints its error and exits 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	if machineMode {
		_ = WriteJSONFromError(os.Stdout, err)
	} else {
		fmt.Fprint(os.Stderr, err.Error())
	}
	os.Exit(1)
}
