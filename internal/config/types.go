package config

import "time"

// Overlap policies for scheduled scan cycles.
const (
	OverlapSkip  = "skip"
	OverlapAllow = "allow"
)

// Config represents the complete pimon.yaml configuration file.
type Config struct {
	// Listen is the HTTP listen address (host:port).
	Listen string `yaml:"listen" mapstructure:"listen"`

	// StaticDir is served at / when it exists. Empty disables static serving.
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`

	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Collector CollectorConfig `yaml:"collector" mapstructure:"collector"`
	Weather   WeatherConfig   `yaml:"weather" mapstructure:"weather"`
	MQTT      MQTTConfig      `yaml:"mqtt" mapstructure:"mqtt"`
}

// LogConfig controls the logging backend.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level"`

	// Format: console or json.
	Format string `yaml:"format" mapstructure:"format"`
}

// ScanConfig controls subnet discovery and the collection schedule.
type ScanConfig struct {
	// Range is a comma-separated list of IPv4 addresses, ranges
	// (a.b.c.d-e.f.g.h or a.b.c.d-n) and CIDR blocks.
	Range string `yaml:"range" mapstructure:"range"`

	// Port probed on every candidate host.
	Port int `yaml:"port" mapstructure:"port"`

	// Timeout for a single TCP probe.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Concurrency is the number of probe workers.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// Banner reads the first line the service sends on open ports.
	Banner bool `yaml:"banner" mapstructure:"banner"`

	// Interval between scheduled scan cycles.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// Overlap is "skip" or "allow" and decides what happens when a tick
	// fires while the previous cycle is still running.
	Overlap string `yaml:"overlap" mapstructure:"overlap"`
}

// CollectorConfig holds the shared credentials and remote script settings.
type CollectorConfig struct {
	Username     string `yaml:"username" mapstructure:"username"`
	Password     string `yaml:"password" mapstructure:"password"`
	IdentityFile string `yaml:"identity_file" mapstructure:"identity_file"`
	UseAgent     bool   `yaml:"use_agent" mapstructure:"use_agent"`

	// SSHConfig is an optional ssh_config file consulted for per-host
	// Port, User and IdentityFile overrides.
	SSHConfig string `yaml:"ssh_config" mapstructure:"ssh_config"`

	// StrictHostKeyChecking verifies host keys against KnownHosts.
	StrictHostKeyChecking bool   `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
	KnownHosts            string `yaml:"known_hosts" mapstructure:"known_hosts"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`

	// Script is the local script uploaded to each host. Empty uses the
	// built-in get_avg_temp.sh.
	Script     string `yaml:"script" mapstructure:"script"`
	RemotePath string `yaml:"remote_path" mapstructure:"remote_path"`

	// MaxSessions bounds concurrent SSH sessions across a cycle.
	MaxSessions int `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// WeatherConfig controls the outdoor temperature cache.
type WeatherConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	PostalCode string        `yaml:"postal_code" mapstructure:"postal_code"`
	Country    string        `yaml:"country" mapstructure:"country"`
	MaxAge     time.Duration `yaml:"max_age" mapstructure:"max_age"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	GeocodeURL string        `yaml:"geocode_url" mapstructure:"geocode_url"`
	PointsURL  string        `yaml:"points_url" mapstructure:"points_url"`
}

// MQTTConfig enables publishing each reading to a broker.
// An empty Broker disables publishing.
type MQTTConfig struct {
	Broker      string        `yaml:"broker" mapstructure:"broker"`
	ClientID    string        `yaml:"client_id" mapstructure:"client_id"`
	Username    string        `yaml:"username" mapstructure:"username"`
	Password    string        `yaml:"password" mapstructure:"password"`
	TopicPrefix string        `yaml:"topic_prefix" mapstructure:"topic_prefix"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// DefaultConfig returns a Config with the defaults used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Listen:    "0.0.0.0:3000",
		StaticDir: "public",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Scan: ScanConfig{
			Range:       "192.168.1.21-192.168.3.254",
			Port:        22,
			Timeout:     2 * time.Second,
			Concurrency: 256,
			Banner:      false,
			Interval:    5 * time.Minute,
			Overlap:     OverlapSkip,
		},
		Collector: CollectorConfig{
			Username:       "orangepi",
			Password:       "orangepi",
			KnownHosts:     "~/.ssh/known_hosts",
			ConnectTimeout: 5 * time.Second,
			CommandTimeout: 30 * time.Second,
			RemotePath:     "/tmp/get_avg_temp.sh",
			MaxSessions:    16,
		},
		Weather: WeatherConfig{
			Enabled:    true,
			PostalCode: "90210",
			Country:    "USA",
			MaxAge:     30 * time.Minute,
			Timeout:    15 * time.Second,
			UserAgent:  "PiMonitor/1.0",
			GeocodeURL: "https://nominatim.openstreetmap.org/search",
			PointsURL:  "https://api.weather.gov/points",
		},
		MQTT: MQTTConfig{
			ClientID:    "pimon",
			TopicPrefix: "pimon",
			Timeout:     5 * time.Second,
		},
	}
}
