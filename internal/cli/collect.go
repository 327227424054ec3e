package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/store"
	"github.com/computergenieco/pimon/internal/ui"
	"github.com/computergenieco/pimon/internal/util"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var collectPort int

var collectCmd = &cobra.Command{
	Use:   "collect <host> [host...]",
	Short: "Collect a reading from specific hosts without scanning",
	Long: `Connect to each host over SSH, upload and run the temperature script, and
print the readings. Hosts are contacted in parallel, at most
collector.max_sessions at a time.

Hosts can be IP addresses, hostnames, or Host aliases from collector.ssh_config.

Examples:
  pimon collect 192.168.1.40
  pimon collect 192.168.1.40 192.168.1.41 --port 2222
  pimon collect orangepi-kitchen --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return collectCommand(cmd.Context(), cmd.OutOrStdout(), args, collectPort)
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().IntVar(&collectPort, "port", 0, "SSH port (default: scan.port, or the ssh_config Port)")
}

// collectOutput is the --json payload of pimon collect.
type collectOutput struct {
	Devices  []store.Reading   `json:"devices"`
	Failures map[string]string `json:"failures,omitempty"`
}

func collectCommand(ctx context.Context, w io.Writer, hosts []string, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ValidatePort(port); err != nil {
		return err
	}
	if port == 0 && cfg.Collector.SSHConfig == "" {
		port = cfg.Scan.Port
	}

	runner, err := newRunner(cfg.Collector, port)
	if err != nil {
		return err
	}

	st := store.New()
	var (
		mu       sync.Mutex
		failures = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Collector.MaxSessions)
	for _, host := range hosts {
		g.Go(func() error {
			reading, err := runner.Collect(gctx, host)
			if err != nil {
				mu.Lock()
				failures[host] = err
				mu.Unlock()
				return nil
			}
			st.Upsert(reading)
			return nil
		})
	}
	_ = g.Wait()

	readings := st.Snapshot()
	if len(readings) == 0 {
		return noReadingsError(hosts, failures)
	}

	msgs := make(map[string]string, len(failures))
	for host, err := range failures {
		msgs[host] = errors.Oneline(err)
	}

	if machineMode {
		return WriteJSONSuccess(w, collectOutput{Devices: readings, Failures: msgs})
	}

	fmt.Fprintln(w, ui.RenderDevices(readings, time.Now()))
	if len(msgs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprint(w, ui.RenderFailures(msgs))
	}
	return nil
}

// noReadingsError returns the only failure as is, or summarises several.
func noReadingsError(hosts []string, failures map[string]error) error {
	if len(failures) == 1 {
		for _, err := range failures {
			return err
		}
	}
	lines := make([]string, 0, len(failures))
	for host, err := range failures {
		lines = append(lines, host+": "+errors.Oneline(err))
	}
	sort.Strings(lines)
	return errors.New(errors.ErrCollect,
		fmt.Sprintf("No readings from %d %s:\n    %s", len(hosts), util.Pluralize(len(hosts), "host", "hosts"), strings.Join(lines, "\n    ")),
		"Run with --debug to see each SSH step.")
}
