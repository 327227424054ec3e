package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = "pimon.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/pimon"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides (PIMON_SCAN_RANGE, ...).
	EnvPrefix = "PIMON"
)

// Load reads config from path. When path is empty, Find is used; when no
// file is found, defaults plus environment overrides are returned.
func Load(path string) (*Config, error) {
	found, err := Find(path)
	if err != nil {
		return nil, err
	}

	v := newViper()
	if found != "" {
		v.SetConfigFile(found)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file "+found,
				"Check the file exists and is valid YAML")
		}
	}

	return parseConfig(v, found)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. pimon.yaml in current directory
// 3. ~/.config/pimon/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct, or create one with 'pimon config init'")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ConfigFileName)
		if _, err := os.Stat(local); err == nil {
			return local, nil
		}
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		global := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		where := "your environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax and value types in "+where)
	}

	cfg.Collector.KnownHosts = ExpandTilde(cfg.Collector.KnownHosts)
	cfg.Collector.IdentityFile = ExpandTilde(cfg.Collector.IdentityFile)
	cfg.Collector.SSHConfig = ExpandTilde(cfg.Collector.SSHConfig)
	cfg.Collector.Script = ExpandTilde(cfg.Collector.Script)

	return cfg, nil
}

// setDefaults registers every key with viper so that env overrides and
// partial files both resolve to a complete Config.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("listen", d.Listen)
	v.SetDefault("static_dir", d.StaticDir)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("scan.range", d.Scan.Range)
	v.SetDefault("scan.port", d.Scan.Port)
	v.SetDefault("scan.timeout", d.Scan.Timeout)
	v.SetDefault("scan.concurrency", d.Scan.Concurrency)
	v.SetDefault("scan.banner", d.Scan.Banner)
	v.SetDefault("scan.interval", d.Scan.Interval)
	v.SetDefault("scan.overlap", d.Scan.Overlap)

	v.SetDefault("collector.username", d.Collector.Username)
	v.SetDefault("collector.password", d.Collector.Password)
	v.SetDefault("collector.identity_file", d.Collector.IdentityFile)
	v.SetDefault("collector.use_agent", d.Collector.UseAgent)
	v.SetDefault("collector.ssh_config", d.Collector.SSHConfig)
	v.SetDefault("collector.strict_host_key_checking", d.Collector.StrictHostKeyChecking)
	v.SetDefault("collector.known_hosts", d.Collector.KnownHosts)
	v.SetDefault("collector.connect_timeout", d.Collector.ConnectTimeout)
	v.SetDefault("collector.command_timeout", d.Collector.CommandTimeout)
	v.SetDefault("collector.script", d.Collector.Script)
	v.SetDefault("collector.remote_path", d.Collector.RemotePath)
	v.SetDefault("collector.max_sessions", d.Collector.MaxSessions)

	v.SetDefault("weather.enabled", d.Weather.Enabled)
	v.SetDefault("weather.postal_code", d.Weather.PostalCode)
	v.SetDefault("weather.country", d.Weather.Country)
	v.SetDefault("weather.max_age", d.Weather.MaxAge)
	v.SetDefault("weather.timeout", d.Weather.Timeout)
	v.SetDefault("weather.user_agent", d.Weather.UserAgent)
	v.SetDefault("weather.geocode_url", d.Weather.GeocodeURL)
	v.SetDefault("weather.points_url", d.Weather.PointsURL)

	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.topic_prefix", d.MQTT.TopicPrefix)
	v.SetDefault("mqtt.timeout", d.MQTT.Timeout)
}

// ExpandTilde replaces a leading ~/ with the user's home directory.
func ExpandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, path[2:])
}
