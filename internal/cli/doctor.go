package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/computergenieco/pimon/internal/config"
	"github.com/computergenieco/pimon/internal/doctor"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/internal/publish"
	"github.com/computergenieco/pimon/internal/ui"
	"github.com/computergenieco/pimon/internal/util"
	"github.com/spf13/cobra"
)

var (
	doctorHosts   []string
	doctorOffline bool
	doctorTimeout time.Duration
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration, credentials and upstream services",
	Long: `Run diagnostic checks against your pimon setup:

  CONFIG    config file, validation, scan.range size
  SSH       collector credentials, known_hosts, the collector script
  UPSTREAM  one weather lookup and one MQTT connect (skipped with --offline)
  DEVICES   a full collection from each --host

Examples:
  pimon doctor
  pimon doctor --host 192.168.1.40 --host 192.168.1.41
  pimon doctor --offline --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()
		return doctorCommand(ctx, cmd.OutOrStdout(), doctorHosts, doctorOffline)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringSliceVar(&doctorHosts, "host", nil, "also collect from this host (repeatable)")
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "skip the weather and MQTT checks")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 30*time.Second, "overall time limit for all checks")
}

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Skip     int  `json:"skip"`
	AllClear bool `json:"all_clear"`
}

// doctorCommand runs every check and reports. Failing checks are part of
// the report, not an error.
func doctorCommand(ctx context.Context, w io.Writer, hosts []string, offline bool) error {
	checks := []doctor.Check{
		&doctor.ConfigFileCheck{ConfigPath: cfgFile},
		&doctor.ConfigValidCheck{ConfigPath: cfgFile},
	}

	// A config that doesn't load is reported by the checks above; the rest
	// need one to run against.
	cfg, err := config.Load(cfgFile)
	if err == nil {
		if debugMode {
			cfg.Log.Level = "debug"
		}
		_ = logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		checks = append(checks, configuredChecks(cfg, hosts, offline)...)
	}

	results := doctor.RunAllParallel(ctx, checks)

	if machineMode {
		return WriteJSONSuccess(w, doctorOutput(results))
	}
	renderDoctorText(w, results)
	return nil
}

func configuredChecks(cfg *config.Config, hosts []string, offline bool) []doctor.Check {
	checks := []doctor.Check{
		&doctor.ScanRangeCheck{Range: cfg.Scan.Range},
		&doctor.CredentialsCheck{Collector: cfg.Collector},
		&doctor.KnownHostsCheck{Collector: cfg.Collector},
		&doctor.ScriptCheck{Path: cfg.Collector.Script},
	}

	if !offline {
		wc := &doctor.WeatherCheck{PostalCode: cfg.Weather.PostalCode}
		if client := newWeather(cfg.Weather); client != nil {
			wc.Client = client
		}
		mc := &doctor.MQTTCheck{Broker: cfg.MQTT.Broker}
		if cfg.MQTT.Enabled() {
			m := cfg.MQTT
			mc.Connect = func(ctx context.Context) (publish.Publisher, error) {
				return newPublisher(ctx, m)
			}
		}
		checks = append(checks, wc, mc)
	}

	if len(hosts) > 0 {
		port := 0
		if cfg.Collector.SSHConfig == "" {
			port = cfg.Scan.Port
		}
		// ScriptCheck already reports an unreadable script.
		if runner, err := newRunner(cfg.Collector, port); err == nil {
			checks = append(checks, doctor.NewDeviceChecks(hosts, runner)...)
		}
	}
	return checks
}

func doctorOutput(results []doctor.CheckResult) DoctorOutput {
	order, grouped := doctor.GroupByCategory(results)
	out := DoctorOutput{Categories: make([]CategoryOutput, 0, len(order))}
	for _, cat := range order {
		out.Categories = append(out.Categories, CategoryOutput{Name: cat, Results: grouped[cat]})
	}

	counts := doctor.CountByStatus(results)
	out.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Skip:     counts[doctor.StatusSkip],
		AllClear: !doctor.HasIssues(results),
	}
	return out
}

func renderDoctorText(w io.Writer, results []doctor.CheckResult) {
	headerStyle := lipgloss.NewStyle().Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("pimon Diagnostic Report"))
	fmt.Fprintln(w)

	order, grouped := doctor.GroupByCategory(results)
	for _, cat := range order {
		fmt.Fprintln(w, headerStyle.Render(cat))
		for _, r := range grouped[cat] {
			symbol, color := statusSymbol(r.Status)
			fmt.Fprintf(w, "  %s %s\n", lipgloss.NewStyle().Foreground(color).Render(symbol), r.Message)
			if r.Suggestion != "" && r.Status != doctor.StatusPass && r.Status != doctor.StatusSkip {
				for _, line := range strings.Split(r.Suggestion, "\n") {
					fmt.Fprintf(w, "    %s\n", mutedStyle.Render(line))
				}
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("━", 60))
	fmt.Fprintln(w)

	if !doctor.HasIssues(results) {
		fmt.Fprintf(w, "%s %s\n", lipgloss.NewStyle().Foreground(ui.ColorSuccess).Render(ui.SymbolSuccess), doctor.Summary(results))
	} else {
		fail := doctor.CountByStatus(results)[doctor.StatusFail]
		symbol, color := ui.SymbolFail, ui.ColorError
		if fail == 0 {
			color = ui.ColorWarning
		}
		fmt.Fprintf(w, "%s %s", lipgloss.NewStyle().Foreground(color).Render(symbol), doctor.Summary(results))
		if fail > 0 {
			fmt.Fprintf(w, " (%d %s)", fail, util.Pluralize(fail, "failure", "failures"))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func statusSymbol(s doctor.CheckStatus) (string, lipgloss.Color) {
	switch s {
	case doctor.StatusPass:
		return ui.SymbolSuccess, ui.ColorSuccess
	case doctor.StatusWarn:
		return ui.SymbolSuccess, ui.ColorWarning
	case doctor.StatusSkip:
		return ui.SymbolSkipped, ui.ColorMuted
	default:
		return ui.SymbolFail, ui.ColorError
	}
}
