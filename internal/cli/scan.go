package cli

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/computergenieco/pimon/internal/config"
	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/poller"
	"github.com/computergenieco/pimon/internal/publish"
	"github.com/computergenieco/pimon/internal/scan"
	"github.com/computergenieco/pimon/internal/store"
	"github.com/computergenieco/pimon/internal/ui"
	"github.com/computergenieco/pimon/internal/util"
	"github.com/spf13/cobra"
)

type scanOptions struct {
	Range     string
	Port      int
	ProbeOnly bool
	Show      string
	Publish   bool
}

var scanFlags scanOptions

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and collection cycle and print the results",
	Long: `Probe every address in the scan range once, collect a reading from each
host with SSH open, and print a table of devices plus a cycle summary.

With --probe-only no SSH sessions are opened; the probe results are printed
instead, filtered by --show.

Examples:
  pimon scan
  pimon scan --range 192.168.1.0/24
  pimon scan --range 10.0.0.5-40 --probe-only --show open,refused
  pimon scan --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanCommand(cmd.Context(), cmd.OutOrStdout(), scanFlags)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanFlags.Range, "range", "", "addresses to scan, e.g. 192.168.1.0/24 (overrides scan.range)")
	scanCmd.Flags().IntVar(&scanFlags.Port, "port", 0, "port to probe and connect to (overrides scan.port)")
	scanCmd.Flags().BoolVar(&scanFlags.ProbeOnly, "probe-only", false, "only probe ports, don't collect")
	scanCmd.Flags().StringVar(&scanFlags.Show, "show", "open", "probe statuses to print with --probe-only (comma-separated, or all)")
	scanCmd.Flags().BoolVar(&scanFlags.Publish, "publish", false, "publish readings to the configured MQTT broker")
}

// probeJSON is one probe result in --json output.
type probeJSON struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
	Status  string `json:"status"`
	RTTMs   int64  `json:"rtt_ms"`
	Banner  string `json:"banner,omitempty"`
	Error   string `json:"error,omitempty"`
}

// cycleJSON is a poll cycle report in --json output.
type cycleJSON struct {
	Probed     int               `json:"probed"`
	Open       int               `json:"open"`
	Collected  int               `json:"collected"`
	Failed     int               `json:"failed"`
	DurationMs int64             `json:"duration_ms"`
	Failures   map[string]string `json:"failures,omitempty"`

	// TargetError names malformed scan.range segments that were skipped.
	TargetError string `json:"target_error,omitempty"`
}

// scanOutput is the --json payload of a full scan.
type scanOutput struct {
	Devices []store.Reading `json:"devices"`
	Cycle   cycleJSON       `json:"cycle"`
}

func scanCommand(ctx context.Context, w io.Writer, opts scanOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyScanOverrides(cfg, opts); err != nil {
		return err
	}

	// Malformed segments are reported, the valid ones still scanned.
	addrs, err := scan.ParseTargets(cfg.Scan.Range)
	if err != nil {
		if len(addrs) == 0 {
			return err
		}
		if !machineMode {
			fmt.Fprintf(w, "%s %s\n\n", lipgloss.NewStyle().Foreground(ui.ColorWarning).Render(ui.SymbolSkipped), errors.Oneline(err))
		}
	}

	if opts.ProbeOnly {
		statuses, err := ParseStatuses(opts.Show)
		if err != nil {
			return err
		}
		return probeCommand(ctx, w, cfg, addrs, statuses)
	}

	pub := publish.Noop()
	if opts.Publish {
		if !cfg.MQTT.Enabled() {
			return errors.New(errors.ErrConfig,
				"--publish needs an MQTT broker",
				"Set mqtt.broker in pimon.yaml.")
		}
		pub, err = newPublisher(ctx, cfg.MQTT)
		if err != nil {
			return err
		}
	}
	defer pub.Close()

	st := store.New()
	p, err := newPoller(cfg, st, pub)
	if err != nil {
		return err
	}

	if !machineMode {
		fmt.Fprintf(w, "Scanning %d %s on port %d...\n\n",
			len(addrs), util.Pluralize(len(addrs), "address", "addresses"), cfg.Scan.Port)
	}
	report := p.RunCycle(ctx)
	if err := ctx.Err(); err != nil {
		return errors.WrapWithCode(err, errors.ErrScan, "Scan interrupted", "")
	}

	return writeCycle(w, st.Snapshot(), report, time.Now())
}

func applyScanOverrides(cfg *config.Config, opts scanOptions) error {
	if err := ValidatePort(opts.Port); err != nil {
		return err
	}
	if opts.Range != "" {
		cfg.Scan.Range = opts.Range
	}
	if opts.Port != 0 {
		cfg.Scan.Port = opts.Port
	}
	return nil
}

func probeCommand(ctx context.Context, w io.Writer, cfg *config.Config, addrs []netip.Addr, statuses []scan.Status) error {
	sc := newScanner(cfg.Scan, statuses)

	var results []scan.Result
	for r := range sc.Scan(ctx, addrs, cfg.Scan.Port) {
		results = append(results, r)
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapWithCode(err, errors.ErrScan, "Scan interrupted", "")
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Addr.Less(results[j].Addr)
	})

	if machineMode {
		out := make([]probeJSON, len(results))
		for i, r := range results {
			out[i] = probeJSON{
				Address: r.Addr.String(),
				Port:    r.Port,
				Status:  string(r.Status),
				RTTMs:   r.RTT.Milliseconds(),
				Banner:  r.Banner,
			}
			if r.Err != nil {
				out[i].Error = errors.Oneline(r.Err)
			}
		}
		return WriteJSONSuccess(w, out)
	}

	fmt.Fprintln(w, ui.RenderScan(results))
	return nil
}

// writeCycle prints the readings and cycle report as tables or JSON.
func writeCycle(w io.Writer, readings []store.Reading, report poller.CycleReport, now time.Time) error {
	failures := make(map[string]string, len(report.Errors))
	for host, err := range report.Errors {
		failures[host] = errors.Oneline(err)
	}

	if machineMode {
		if readings == nil {
			readings = []store.Reading{}
		}
		return WriteJSONSuccess(w, scanOutput{
			Devices: readings,
			Cycle: cycleJSON{
				Probed:     report.Probed,
				Open:       report.Open,
				Collected:  report.Collected,
				Failed:     report.Failed,
				DurationMs: report.Duration.Milliseconds(),
				Failures:   failures,

				TargetError: errors.Oneline(report.TargetErr),
			},
		})
	}

	fmt.Fprintln(w, ui.RenderDevices(readings, now))
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.RenderCycleSummary(ui.CycleSummary{
		Probed:    report.Probed,
		Open:      report.Open,
		Collected: report.Collected,
		Failed:    report.Failed,
		Duration:  report.Duration,
		Failures:  failures,
	}))
	return nil
}
