package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/computergenieco/pimon/internal/ui"
	"github.com/stretchr/testify/require"
)

// useFlags sets the global flags for one test and restores them afterwards.
func useFlags(t *testing.T, configPath string, jsonOut bool) {
	t.Helper()
	oldCfg, oldJSON, oldDebug, oldNoColor := cfgFile, machineMode, debugMode, noColor
	t.Cleanup(func() {
		cfgFile, machineMode, debugMode, noColor = oldCfg, oldJSON, oldDebug, oldNoColor
	})
	cfgFile, machineMode, debugMode, noColor = configPath, jsonOut, false, true
	ui.DisableColors()
}

// writeConfig writes body as pimon.yaml in a temp dir and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pimon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

type rawEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *JSONError      `json:"error"`
}

// decodeSuccess checks out holds one successful envelope and decodes its
// data into v.
func decodeSuccess(t *testing.T, out []byte, v interface{}) {
	t.Helper()
	var env rawEnvelope
	require.NoError(t, json.Unmarshal(out, &env), "output: %s", out)
	require.True(t, env.Success, "output: %s", out)
	require.Nil(t, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, v))
}
