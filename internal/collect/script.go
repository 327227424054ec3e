package collect

import (
	_ "embed"
	"os"

	"github.com/computergenieco/pimon/internal/errors"
)

//go:embed scripts/get_avg_temp.sh
var defaultScript []byte

// DefaultScript returns the built-in temperature script.
func DefaultScript() []byte {
	return append([]byte(nil), defaultScript...)
}

// LoadScript reads the script at path, or returns the built-in script when
// path is empty.
func LoadScript(path string) ([]byte, error) {
	if path == "" {
		return DefaultScript(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read collector script "+path,
			"Fix collector.script or leave it empty to use the built-in script.")
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"Collector script "+path+" is empty",
			"Point collector.script at a script that prints '<millidegrees> [uptime]'.")
	}
	return data, nil
}
