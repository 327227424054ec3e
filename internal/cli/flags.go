package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/scan"
)

// ParseStatuses parses a comma-separated --show value into probe statuses.
// "all" selects every status. Returns nil when the flag is empty.
func ParseStatuses(flag string) ([]scan.Status, error) {
	if strings.TrimSpace(flag) == "" {
		return nil, nil
	}
	if strings.EqualFold(strings.TrimSpace(flag), "all") {
		return append([]scan.Status(nil), scan.AllStatuses...), nil
	}

	var out []scan.Status
	for _, part := range strings.Split(flag, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		st, ok := scan.ParseStatus(part)
		if !ok {
			names := make([]string, len(scan.AllStatuses))
			for i, s := range scan.AllStatuses {
				names[i] = string(s)
			}
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' isn't a probe status", strings.TrimSpace(part)),
				"Use a comma-separated list of "+strings.Join(names, ", ")+", or all.")
		}
		out = append(out, st)
	}
	return out, nil
}

// ValidatePort checks a --port override. Zero means "use the config value".
func ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Port %d is out of range", port),
			"Pick a port between 1 and 65535.")
	}
	return nil
}

// ParseDuration parses a duration flag value. name is the flag, used in the
// error message.
func ParseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid duration for %s", value, name),
			"Try something like 30s, 5m, or 500ms.")
	}
	if d <= 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("%s must be positive, got %s", name, value),
			"Try something like 30s, 5m, or 500ms.")
	}
	return d, nil
}
