package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/computergenieco/pimon/internal/errors"
	"gopkg.in/yaml.v3"
)

const fileHeader = `pimon configuration.
Every key is optional; missing keys fall back to built-in defaults and
PIMON_<SECTION>_<KEY> environment variables override file values.`

// Render serializes cfg as commented YAML. Durations are written in
// time.Duration string form so the file round-trips through Load.
func Render(cfg *Config) ([]byte, error) {
	doc := mapping(
		"listen", scalar(cfg.Listen),
		"static_dir", scalar(cfg.StaticDir),
		"log", mapping(
			"level", scalar(cfg.Log.Level),
			"format", scalar(cfg.Log.Format),
		),
		"scan", mapping(
			"range", scalar(cfg.Scan.Range),
			"port", scalar(cfg.Scan.Port),
			"timeout", scalar(cfg.Scan.Timeout),
			"concurrency", scalar(cfg.Scan.Concurrency),
			"banner", scalar(cfg.Scan.Banner),
			"interval", scalar(cfg.Scan.Interval),
			"overlap", scalar(cfg.Scan.Overlap),
		),
		"collector", mapping(
			"username", scalar(cfg.Collector.Username),
			"password", scalar(cfg.Collector.Password),
			"identity_file", scalar(cfg.Collector.IdentityFile),
			"use_agent", scalar(cfg.Collector.UseAgent),
			"ssh_config", scalar(cfg.Collector.SSHConfig),
			"strict_host_key_checking", scalar(cfg.Collector.StrictHostKeyChecking),
			"known_hosts", scalar(cfg.Collector.KnownHosts),
			"connect_timeout", scalar(cfg.Collector.ConnectTimeout),
			"command_timeout", scalar(cfg.Collector.CommandTimeout),
			"script", scalar(cfg.Collector.Script),
			"remote_path", scalar(cfg.Collector.RemotePath),
			"max_sessions", scalar(cfg.Collector.MaxSessions),
		),
		"weather", mapping(
			"enabled", scalar(cfg.Weather.Enabled),
			"postal_code", scalar(cfg.Weather.PostalCode),
			"country", scalar(cfg.Weather.Country),
			"max_age", scalar(cfg.Weather.MaxAge),
			"timeout", scalar(cfg.Weather.Timeout),
			"user_agent", scalar(cfg.Weather.UserAgent),
			"geocode_url", scalar(cfg.Weather.GeocodeURL),
			"points_url", scalar(cfg.Weather.PointsURL),
		),
		"mqtt", mapping(
			"broker", scalar(cfg.MQTT.Broker),
			"client_id", scalar(cfg.MQTT.ClientID),
			"username", scalar(cfg.MQTT.Username),
			"password", scalar(cfg.MQTT.Password),
			"topic_prefix", scalar(cfg.MQTT.TopicPrefix),
			"timeout", scalar(cfg.MQTT.Timeout),
		),
	)
	doc.HeadComment = fileHeader

	findMapValue(doc, "scan").Content[13].LineComment = "skip | allow"
	findMapValue(doc, "mqtt").Content[1].LineComment = "empty disables publishing"

	return yaml.Marshal(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{doc}})
}

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s already exists", path),
			"Use --force to overwrite it.")
	}

	data, err := Render(DefaultConfig())
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't render default config", "")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't create "+dir, "Check directory permissions")
		}
	}

	// The file holds SSH credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write "+path, "Check directory permissions")
	}
	return nil
}

func mapping(kv ...interface{}) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(kv); i += 2 {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv[i].(string)}
		n.Content = append(n.Content, key, kv[i+1].(*yaml.Node))
	}
	return n
}

func scalar(v interface{}) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode}
	switch val := v.(type) {
	case string:
		n.Tag, n.Value = "!!str", val
	case int:
		n.Tag, n.Value = "!!int", strconv.Itoa(val)
	case bool:
		n.Tag, n.Value = "!!bool", strconv.FormatBool(val)
	case time.Duration:
		n.Tag, n.Value = "!!str", val.String()
	default:
		n.Tag, n.Value = "!!str", fmt.Sprint(val)
	}
	return n
}

// findMapValue finds the value node for a given key in a mapping node.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
