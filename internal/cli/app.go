package cli

import (
	"context"

	"github.com/computergenieco/pimon/internal/collect"
	"github.com/computergenieco/pimon/internal/config"
	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/internal/poller"
	"github.com/computergenieco/pimon/internal/publish"
	"github.com/computergenieco/pimon/internal/scan"
	"github.com/computergenieco/pimon/internal/store"
	"github.com/computergenieco/pimon/internal/weather"
	"github.com/computergenieco/pimon/pkg/sshutil"
)

// loadConfig loads, adjusts and validates the config, then points the
// process logger at the configured level and format.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Log.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't set up logging",
			"Check the 'log' section in pimon.yaml.")
	}
	return cfg, nil
}

func sshOptions(c config.CollectorConfig) sshutil.Options {
	return sshutil.Options{
		User:                  c.Username,
		Password:              c.Password,
		IdentityFile:          c.IdentityFile,
		UseAgent:              c.UseAgent,
		SSHConfigPath:         c.SSHConfig,
		StrictHostKeyChecking: c.StrictHostKeyChecking,
		KnownHostsPath:        c.KnownHosts,
		Timeout:               c.ConnectTimeout,
	}
}

// newRunner builds a collector. port overrides the SSH port when non-zero.
func newRunner(c config.CollectorConfig, port int) (*collect.Runner, error) {
	script, err := collect.LoadScript(c.Script)
	if err != nil {
		return nil, err
	}
	opts := sshOptions(c)
	opts.Port = port
	return collect.NewRunner(collect.Options{
		Dialer:         collect.SSHDialer(opts),
		Script:         script,
		RemotePath:     c.RemotePath,
		ConnectTimeout: c.ConnectTimeout,
		CommandTimeout: c.CommandTimeout,
		Logger:         logger.New("collect"),
	}), nil
}

func newScanner(s config.ScanConfig, report []scan.Status) *scan.Scanner {
	return scan.New(scan.Options{
		Timeout:     s.Timeout,
		Concurrency: s.Concurrency,
		Banner:      s.Banner,
		Report:      report,
		Logger:      logger.New("scan"),
	})
}

// newPoller wires scanner, collector, store and publisher for one config.
func newPoller(cfg *config.Config, st *store.Store, pub publish.Publisher) (*poller.Poller, error) {
	runner, err := newRunner(cfg.Collector, cfg.Scan.Port)
	if err != nil {
		return nil, err
	}
	return poller.New(poller.Options{
		Targets:     cfg.Scan.Range,
		Port:        cfg.Scan.Port,
		MaxSessions: cfg.Collector.MaxSessions,
		Scanner:     newScanner(cfg.Scan, nil),
		Collector:   runner,
		Store:       st,
		Publisher:   pub,
		Logger:      logger.New("poller"),
	}), nil
}

func newScheduler(s config.ScanConfig, c poller.Cycler) *poller.Scheduler {
	return poller.NewScheduler(c, poller.SchedulerOptions{
		Interval: s.Interval,
		Overlap:  overlapMode(s.Overlap),
		Logger:   logger.New("scheduler"),
	})
}

// overlapMode maps scan.overlap onto the scheduler's policy. Validate has
// already rejected anything but skip and allow.
func overlapMode(v string) poller.OverlapMode {
	if v == config.OverlapAllow {
		return poller.OverlapAllow
	}
	return poller.OverlapSkip
}

// newWeather returns nil when weather is disabled.
func newWeather(w config.WeatherConfig) *weather.Client {
	if !w.Enabled {
		return nil
	}
	return weather.New(weather.Options{
		PostalCode: w.PostalCode,
		Country:    w.Country,
		UserAgent:  w.UserAgent,
		GeocodeURL: w.GeocodeURL,
		PointsURL:  w.PointsURL,
		MaxAge:     w.MaxAge,
		Timeout:    w.Timeout,
		Logger:     logger.New("weather"),
	})
}

// newPublisher connects to the configured broker, or returns a no-op
// publisher when MQTT is not configured.
func newPublisher(ctx context.Context, m config.MQTTConfig) (publish.Publisher, error) {
	if !m.Enabled() {
		return publish.Noop(), nil
	}
	p, err := publish.NewMQTT(ctx, publish.MQTTOptions{
		Broker:      m.Broker,
		ClientID:    m.ClientID,
		Username:    m.Username,
		Password:    m.Password,
		TopicPrefix: m.TopicPrefix,
		Timeout:     m.Timeout,
		Logger:      logger.New("mqtt"),
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
