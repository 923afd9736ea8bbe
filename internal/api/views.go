package api

import (
	"context"
	"net/http"
	"time"

	"github.com/musalce/musalce-server/internal/daw"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Flavor     daw.Flavor        `json:"flavor"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports overall status. Any failing component degrades it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: s.version,
		Flavor:  s.driver.Flavor(),
	}
	status := http.StatusOK

	if len(s.health) > 0 {
		resp.Components = make(map[string]string, len(s.health))
		for name, checker := range s.health {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := checker.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Components[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	writeJSON(w, status, resp)
}

type tracksResponse struct {
	Flavor daw.Flavor      `json:"flavor"`
	Count  int             `json:"count"`
	Tracks []daw.TrackInfo `json:"tracks"`
}

func (s *Server) handleListTracks(w http.ResponseWriter, _ *http.Request) {
	tracks := s.driver.Tracks().Snapshot()
	if tracks == nil {
		tracks = []daw.TrackInfo{}
	}
	writeJSON(w, http.StatusOK, tracksResponse{
		Flavor: s.driver.Flavor(),
		Count:  len(tracks),
		Tracks: tracks,
	})
}

type deviceView struct {
	Name     string `json:"name"`
	Detached bool   `json:"detached"`
}

type devicesResponse struct {
	Count   int          `json:"count"`
	Devices []deviceView `json:"devices"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.devices.Devices()
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, deviceView{Name: d.Name(), Detached: d.Detached()})
	}
	writeJSON(w, http.StatusOK, devicesResponse{Count: len(views), Devices: views})
}

func (s *Server) handleListControllers(w http.ResponseWriter, _ *http.Request) {
	if s.controllers == nil {
		writeNotFound(w, "controllers are only available for bitwig sessions")
		return
	}
	controllers := s.controllers.Controllers()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(controllers),
		"controllers": controllers,
	})
}

type clockResponse struct {
	Port    string `json:"port"`
	Running bool   `json:"running"`
	Ticks   uint64 `json:"ticks"`
}

func (s *Server) handleClock(w http.ResponseWriter, _ *http.Request) {
	if s.clock == nil {
		writeNotFound(w, "no clock input configured")
		return
	}
	writeJSON(w, http.StatusOK, clockResponse{
		Port:    s.clock.Port(),
		Running: s.clock.Running(),
		Ticks:   s.clock.Ticks(),
	})
}
