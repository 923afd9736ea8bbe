package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/musalce/musalce-server/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Status page (embedded, or served from PanelDir when set)
	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.cfg.PanelDir)))
	r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Views
		r.Get("/tracks", s.handleListTracks)
		r.Get("/devices", s.handleListDevices)
		r.Get("/controllers", s.handleListControllers)
		r.Get("/clock", s.handleClock)
		if s.hub != nil {
			r.Get("/ws", s.handleWebSocket)
		}

		// Commands
		r.Post("/sync", s.handleSync)
		r.Post("/reload", s.handleReload)
		r.Post("/panic", s.handlePanic)

		r.Route("/transport", func(r chi.Router) {
			r.Post("/goto", s.handleGoto)
			r.Post("/{action}", s.handleTransport)
		})
	})

	return r
}
