package doctor

import (
	"context"
	"fmt"

	"github.com/computergenieco/pimon/internal/config"
	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/scan"
	"github.com/computergenieco/pimon/internal/util"
)

// Scan ranges above this size still work but make every cycle slow.
const largeRange = 4096

// ConfigFileCheck reports which config file is in use.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return "CONFIG" }

func (c *ConfigFileCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Oneline(err),
			Suggestion: "Check the --config path, or run 'pimon config init' to create one",
		}
	}

	if path == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No config file found, running on built-in defaults",
			Suggestion: "Run 'pimon config init' and set scan.range and the collector credentials",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: "Config file: " + path,
	}
}

// ConfigValidCheck loads and validates the effective configuration.
type ConfigValidCheck struct {
	ConfigPath string
}

func (c *ConfigValidCheck) Name() string     { return "config_valid" }
func (c *ConfigValidCheck) Category() string { return "CONFIG" }

func (c *ConfigValidCheck) Run(context.Context) CheckResult {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Oneline(err),
			Suggestion: "Check the YAML syntax in your config file",
		}
	}

	if err := config.Validate(cfg); err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Oneline(err),
			Suggestion: suggestionOf(err, ""),
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: "Configuration valid",
	}
}

// ScanRangeCheck expands scan.range and reports its size.
type ScanRangeCheck struct {
	Range string
}

func (c *ScanRangeCheck) Name() string     { return "scan_range" }
func (c *ScanRangeCheck) Category() string { return "CONFIG" }

func (c *ScanRangeCheck) Run(context.Context) CheckResult {
	addrs, err := scan.ParseTargets(c.Range)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Oneline(err),
			Suggestion: "Use addresses, a.b.c.d-e.f.g.h ranges, a.b.c.d-n short ranges, or CIDR blocks",
		}
	}

	switch {
	case len(addrs) == 0:
		return CheckResult{
			Status:     StatusFail,
			Message:    "scan.range expands to no addresses",
			Suggestion: "Set scan.range, e.g. 192.168.1.0/24",
		}
	case len(addrs) > largeRange:
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("scan.range covers %d addresses", len(addrs)),
			Suggestion: "Narrow the range to the subnets your devices live on",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("scan.range covers %d %s", len(addrs), util.Pluralize(len(addrs), "address", "addresses")),
	}
}
