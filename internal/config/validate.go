package config

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"github.com/computergenieco/pimon/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' isn't a valid listen address", cfg.Listen),
			"Use host:port, e.g. 0.0.0.0:3000 or :3000.")
	}

	if err := validateLog(cfg.Log); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'log' section in pimon.yaml.")
	}
	if err := validateScan(cfg.Scan); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'scan' section in pimon.yaml.")
	}
	if err := validateCollector(cfg.Collector); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'collector' section in pimon.yaml.")
	}
	if err := validateWeather(cfg.Weather); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'weather' section in pimon.yaml.")
	}
	if err := validateMQTT(cfg.MQTT); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'mqtt' section in pimon.yaml.")
	}

	return nil
}

func validateLog(l LogConfig) error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
	}
	switch l.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", l.Format)
	}
	return nil
}

func validateScan(s ScanConfig) error {
	if strings.TrimSpace(s.Range) == "" {
		return fmt.Errorf("scan.range is empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("scan.port %d is out of range (1-65535)", s.Port)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("scan.timeout must be positive")
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be at least 1")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("scan.interval must be positive")
	}
	if s.Overlap != OverlapSkip && s.Overlap != OverlapAllow {
		return fmt.Errorf("scan.overlap must be %q or %q, got %q", OverlapSkip, OverlapAllow, s.Overlap)
	}
	return nil
}

func validateCollector(c CollectorConfig) error {
	if c.Username == "" {
		return fmt.Errorf("collector.username is empty")
	}
	if c.Password == "" && c.IdentityFile == "" && !c.UseAgent {
		return fmt.Errorf("collector needs a password, identity_file or use_agent")
	}
	if c.StrictHostKeyChecking && c.KnownHosts == "" {
		return fmt.Errorf("collector.known_hosts is required with strict_host_key_checking")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("collector.connect_timeout must be positive")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("collector.command_timeout must be positive")
	}
	if !path.IsAbs(c.RemotePath) {
		return fmt.Errorf("collector.remote_path must be absolute, got %q", c.RemotePath)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("collector.max_sessions must be at least 1")
	}
	return nil
}

func validateWeather(w WeatherConfig) error {
	if !w.Enabled {
		return nil
	}
	if w.PostalCode == "" {
		return fmt.Errorf("weather.postal_code is empty")
	}
	if w.MaxAge <= 0 {
		return fmt.Errorf("weather.max_age must be positive")
	}
	if w.Timeout <= 0 {
		return fmt.Errorf("weather.timeout must be positive")
	}
	for name, raw := range map[string]string{"weather.geocode_url": w.GeocodeURL, "weather.points_url": w.PointsURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s %q is not an absolute URL", name, raw)
		}
	}
	return nil
}

func validateMQTT(m MQTTConfig) error {
	if !m.Enabled() {
		return nil
	}
	u, err := url.Parse(m.Broker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("mqtt.broker %q must look like tcp://host:1883", m.Broker)
	}
	if m.TopicPrefix == "" {
		return fmt.Errorf("mqtt.topic_prefix is empty")
	}
	if m.Timeout <= 0 {
		return fmt.Errorf("mqtt.timeout must be positive")
	}
	return nil
}
