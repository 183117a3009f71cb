package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all optimizer routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimizer", func(r chi.Router) {
		r.Get("/", h.HandleGetLatest)
		r.Post("/run", h.HandleRun)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{id}", h.HandleGetRun)
		r.Get("/runs/{id}/chart.png", h.HandleGetRunChart)
		r.Get("/categories", h.HandleGetCategories)
	})
}
