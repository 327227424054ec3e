package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/computergenieco/pimon/internal/store"
	"github.com/computergenieco/pimon/internal/weather"
)

type configResponse struct {
	// RefreshInterval in milliseconds.
	RefreshInterval int64 `json:"refreshInterval"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Devices int    `json:"devices"`
}

func (s *Server) handleTemperatures(w http.ResponseWriter, _ *http.Request) {
	readings := []store.Reading{}
	if s.opts.Devices != nil {
		readings = s.opts.Devices.Snapshot()
	}
	s.writeJSON(w, readings)
}

// handleWeather may trigger a refresh. The refresh is bounded by
// WeatherTimeout and is not cancelled when the client disconnects.
func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if s.opts.Weather == nil {
		s.writeJSON(w, weather.Snapshot{})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.WeatherTimeout)
	defer cancel()

	s.writeJSON(w, s.opts.Weather.Get(ctx, s.opts.Now()))
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, configResponse{RefreshInterval: s.opts.RefreshInterval.Milliseconds()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	n := 0
	if s.opts.Devices != nil {
		n = s.opts.Devices.Len()
	}
	s.writeJSON(w, healthResponse{Status: "ok", Devices: n})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write response: %v", err)
	}
}
