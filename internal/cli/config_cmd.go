package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/computergenieco/pimon/internal/config"
	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/ui"
	"github.com/spf13/cobra"
)

const maskedSecret = "********"

var (
	configInitForce  bool
	configInitGlobal bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and inspect pimon.yaml",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter config file",
	Long: `Write the default configuration, with every key filled in, to ./pimon.yaml
or the given path. The file holds SSH credentials and is created mode 0600.

Examples:
  pimon config init
  pimon config init /etc/pimon/pimon.yaml
  pimon config init --global
  pimon config init --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		return configInitCommand(cmd.OutOrStdout(), path, configInitGlobal, configInitForce)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration pimon would run with after merging defaults, the
config file and PIMON_* environment variables. Passwords are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowCommand(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configInitCmd.Flags().BoolVar(&configInitGlobal, "global", false, "write ~/.config/pimon/config.yaml")
}

func configInitCommand(w io.Writer, path string, global, force bool) error {
	switch {
	case path != "" && global:
		return errors.New(errors.ErrConfig,
			"A path and --global cannot be used together",
			"Drop one of them.")
	case global:
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't find your home directory", "Pass an explicit path instead.")
		}
		path = filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile)
	case path == "":
		path = config.ConfigFileName
	}

	if err := config.WriteDefault(path, force); err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(w, map[string]string{"path": path})
	}
	fmt.Fprintf(w, "%s Wrote %s\n", ui.SymbolSuccess, path)
	fmt.Fprintln(w, "  Set scan.range and the collector credentials, then run 'pimon scan' to check it.")
	return nil
}

func configShowCommand(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	source, _ := config.Find(cfgFile)
	masked := maskSecrets(*cfg)

	if machineMode {
		return WriteJSONSuccess(w, map[string]interface{}{
			"source": source,
			"config": masked,
		})
	}

	data, err := config.Render(&masked)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't render config", "")
	}
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Fprintf(w, "# source: %s\n", source)
	_, err = w.Write(data)
	return err
}

func maskSecrets(cfg config.Config) config.Config {
	if cfg.Collector.Password != "" {
		cfg.Collector.Password = maskedSecret
	}
	if cfg.MQTT.Password != "" {
		cfg.MQTT.Password = maskedSecret
	}
	return cfg
}
