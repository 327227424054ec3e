package cli

import (
	"context"

	"github.com/computergenieco/pimon/internal/api"
	"github.com/computergenieco/pimon/internal/config"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	Listen    string
	StaticDir string
	Interval  string
}

var serveFlags serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll devices on a schedule and serve the dashboard API",
	Long: `Scan the configured range on a schedule, collect a reading from every host
with SSH open, and serve the readings and the outdoor temperature over HTTP.

The first cycle starts immediately. If a cycle is still running when the next
tick fires, scan.overlap decides whether the tick is skipped or runs alongside.

Endpoints:
  GET /api/temperatures   latest reading per device
  GET /api/weather        outdoor temperature, refreshed when older than weather.max_age
  GET /api/config         dashboard refresh interval
  GET /healthz            liveness and device count

Examples:
  pimon serve
  pimon serve --listen :8080
  pimon serve --interval 1m --static ./public`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand(cmd.Context(), serveFlags)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.Listen, "listen", "", "HTTP listen address (overrides listen)")
	serveCmd.Flags().StringVar(&serveFlags.StaticDir, "static", "", "directory served at / (overrides static_dir)")
	serveCmd.Flags().StringVar(&serveFlags.Interval, "interval", "", "time between scan cycles, e.g. 30s or 5m (overrides scan.interval)")
}

func serveCommand(ctx context.Context, opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyServeOverrides(cfg, opts); err != nil {
		return err
	}

	log := logger.New("serve")

	pub, err := newPublisher(ctx, cfg.MQTT)
	if err != nil {
		return err
	}
	defer pub.Close()

	st := store.New()
	p, err := newPoller(cfg, st, pub)
	if err != nil {
		return err
	}
	sched := newScheduler(cfg.Scan, p)

	apiOpts := api.Options{
		Addr:            cfg.Listen,
		StaticDir:       cfg.StaticDir,
		RefreshInterval: cfg.Scan.Interval,
		WeatherTimeout:  cfg.Weather.Timeout,
		Devices:         st,
		Logger:          logger.New("api"),
	}
	if wx := newWeather(cfg.Weather); wx != nil {
		apiOpts.Weather = wx
	} else {
		log.Info("weather disabled")
	}
	srv := api.New(apiOpts)

	log.Info("watching %s on port %d", cfg.Scan.Range, cfg.Scan.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	err = g.Wait()

	log.Info("stopped after %d cycles (%d skipped)", sched.Started(), sched.Skipped())
	return err
}

// applyServeOverrides applies command-line overrides and revalidates.
func applyServeOverrides(cfg *config.Config, opts serveOptions) error {
	if opts.Listen == "" && opts.StaticDir == "" && opts.Interval == "" {
		return nil
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.StaticDir != "" {
		cfg.StaticDir = opts.StaticDir
	}
	if opts.Interval != "" {
		d, err := ParseDuration("--interval", opts.Interval)
		if err != nil {
			return err
		}
		cfg.Scan.Interval = d
	}
	return config.Validate(cfg)
}
