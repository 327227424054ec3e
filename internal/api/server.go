// Package api serves cached device readings and weather over HTTP.
package api

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/logger"
	"github.com/computergenieco/pimon/internal/store"
	"github.com/computergenieco/pimon/internal/weather"
)

const (
	DefaultWeatherTimeout = 15 * time.Second
	shutdownTimeout       = 5 * time.Second
)

// Devices is the read side of the device store.
type Devices interface {
	Snapshot() []store.Reading
	Len() int
}

// Weather returns the outdoor temperature, refreshing it when stale.
type Weather interface {
	Get(ctx context.Context, now time.Time) weather.Snapshot
}

// Options configure a Server.
type Options struct {
	Addr string

	// StaticDir is served at / when it exists.
	StaticDir string

	// RefreshInterval is reported to the dashboard via /api/config.
	RefreshInterval time.Duration

	// WeatherTimeout bounds a refresh triggered by /api/weather.
	WeatherTimeout time.Duration

	Devices Devices

	// Weather may be nil, in which case /api/weather always reports nulls.
	Weather Weather

	Now    func() time.Time
	Logger logger.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	opts    Options
	log     logger.Logger
	handler http.Handler
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.WeatherTimeout <= 0 {
		opts.WeatherTimeout = DefaultWeatherTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{opts: opts, log: logger.OrDefault(opts.Logger)}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't listen on "+s.opts.Addr,
			"Pick a free port with the listen setting or --listen.")
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving dashboard on http://%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http shutdown: %v", err)
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/temperatures", s.handleTemperatures)
	mux.HandleFunc("GET /api/weather", s.handleWeather)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if dir := s.opts.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			mux.Handle("GET /", http.FileServer(http.Dir(dir)))
		} else {
			s.log.Debug("static dir %s not found, dashboard files disabled", dir)
		}
	}

	return s.logRequests(cors(mux))
}
