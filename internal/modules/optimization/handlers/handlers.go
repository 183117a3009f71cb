// Package handlers provides HTTP handlers for portfolio optimization runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/previ-optimizer/internal/modules/allocation"
	"github.com/aristath/previ-optimizer/internal/modules/charts"
	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"github.com/aristath/previ-optimizer/internal/modules/optimization"
	"github.com/aristath/previ-optimizer/internal/modules/runs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Optimizer runs optimizations and exposes the configured dataset.
type Optimizer interface {
	Run(ctx context.Context, req optimization.Request) (*optimization.RunResult, error)
	Defaults() optimization.Settings
	LoadDataset(ctx context.Context, path string) (*dataset.Dataset, error)
}

// RunReader reads stored runs.
type RunReader interface {
	Get(ctx context.Context, id string) (*runs.Record, error)
	Latest(ctx context.Context) (*runs.Record, error)
	List(ctx context.Context, limit int) ([]runs.Record, error)
}

// ChartRenderer renders allocation charts.
type ChartRenderer interface {
	CachedAllocation(key string, rows []allocation.Row, compoundReturn float64, years int) ([]byte, error)
}

// Handler handles optimizer HTTP requests
type Handler struct {
	optimizer Optimizer
	runs      RunReader
	charts    ChartRenderer
	log       zerolog.Logger
}

// NewHandler creates a new optimizer handler
func NewHandler(optimizer Optimizer, runs RunReader, charts ChartRenderer, log zerolog.Logger) *Handler {
	return &Handler{
		optimizer: optimizer,
		runs:      runs,
		charts:    charts,
		log:       log.With().Str("handler", "optimizer").Logger(),
	}
}

// runRequest holds optional overrides of the default settings.
type runRequest struct {
	RiskFreeRate    *float64 `json:"risk_free_rate"`
	MaxPositionSize *float64 `json:"max_position_size"`
	MinWeight       *float64 `json:"min_weight"`
	MaxIterations   *int     `json:"max_iterations"`
	Save            *bool    `json:"save"`
}

// runResponse is the JSON view of a run.
type runResponse struct {
	ID              string           `json:"id"`
	CreatedAt       string           `json:"created_at"`
	Dataset         string           `json:"dataset"`
	RiskFreeRate    float64          `json:"risk_free_rate"`
	MaxPositionSize float64          `json:"max_position_size"`
	MinWeight       float64          `json:"min_weight"`
	CompoundReturn  float64          `json:"compound_return"`
	SharpeRatio     *float64         `json:"sharpe_ratio"` // null when undefined
	Converged       bool             `json:"converged"`
	Status          string           `json:"status"`
	Method          string           `json:"method,omitempty"`
	Iterations      int              `json:"iterations"`
	Years           int              `json:"years"`
	WindowYears     []int            `json:"window_years"`
	Weights         []weightView     `json:"weights,omitempty"`
	Allocation      []allocation.Row `json:"allocation"`
}

type weightView struct {
	ISIN   string  `json:"isin"`
	Asset  string  `json:"asset"`
	Weight float64 `json:"weight"`
}

func newRunResponse(rec *runs.Record, withWeights bool) runResponse {
	resp := runResponse{
		ID:              rec.ID,
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
		Dataset:         rec.Dataset,
		RiskFreeRate:    rec.RiskFreeRate,
		MaxPositionSize: rec.MaxPositionSize,
		MinWeight:       rec.MinWeight,
		CompoundReturn:  rec.CompoundReturn,
		Converged:       rec.Converged,
		Status:          rec.Status,
		Method:          rec.Payload.Method,
		Iterations:      rec.Payload.Iterations,
		Years:           rec.Years,
		WindowYears:     rec.Payload.WindowYears,
		Allocation:      rec.Payload.Allocation,
	}
	if resp.Allocation == nil {
		resp.Allocation = []allocation.Row{}
	}
	if rec.SharpeDefined {
		sharpe := rec.SharpeRatio
		resp.SharpeRatio = &sharpe
	}
	if withWeights {
		for i, isin := range rec.Payload.ISINs {
			if i >= len(rec.Payload.Weights) || rec.Payload.Weights[i] == 0 {
				continue
			}
			view := weightView{ISIN: isin, Weight: rec.Payload.Weights[i]}
			if i < len(rec.Payload.Assets) {
				view.Asset = rec.Payload.Assets[i]
			}
			resp.Weights = append(resp.Weights, view)
		}
	}
	return resp
}

// HandleGetLatest handles GET /api/optimizer
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	rec, err := h.runs.Latest(r.Context())
	if errors.Is(err, runs.ErrRunNotFound) {
		h.writeError(w, http.StatusNotFound, "No optimization run yet")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest run")
		h.writeError(w, http.StatusInternalServerError, "Failed to get latest run")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(newRunResponse(rec, true)))
}

// HandleRun handles POST /api/optimizer/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	settings := h.optimizer.Defaults()
	if body.RiskFreeRate != nil {
		settings.RiskFreeRate = *body.RiskFreeRate
	}
	if body.MaxPositionSize != nil {
		settings.MaxPositionSize = *body.MaxPositionSize
	}
	if body.MinWeight != nil {
		settings.MinWeight = *body.MinWeight
	}
	if body.MaxIterations != nil {
		settings.MaxIterations = *body.MaxIterations
	}
	save := body.Save == nil || *body.Save

	result, err := h.optimizer.Run(r.Context(), optimization.Request{Settings: &settings, Save: save})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Msg("Optimization run failed")
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(newRunResponse(result.Record(), true)))
}

// HandleListRuns handles GET /api/optimizer/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	list, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		h.writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	views := make([]runResponse, 0, len(list))
	for i := range list {
		views = append(views, newRunResponse(&list[i], false))
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"runs":  views,
		"count": len(views),
	}))
}

// HandleGetRun handles GET /api/optimizer/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(newRunResponse(rec, true)))
}

// HandleGetRunChart handles GET /api/optimizer/runs/{id}/chart.png
func (h *Handler) HandleGetRunChart(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	img, err := h.charts.CachedAllocation(rec.ID, rec.Payload.Allocation, rec.CompoundReturn, rec.Years)
	if errors.Is(err, charts.ErrNoAllocation) {
		h.writeError(w, http.StatusNotFound, "Run has no allocation to draw")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", rec.ID).Msg("Failed to render chart")
		h.writeError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write chart")
	}
}

// HandleGetCategories handles GET /api/optimizer/categories
func (h *Handler) HandleGetCategories(w http.ResponseWriter, r *http.Request) {
	ds, err := h.optimizer.LoadDataset(r.Context(), "")
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Msg("Failed to load dataset")
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"years":      ds.Years(),
		"categories": ds.Categories(),
	}))
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*runs.Record, bool) {
	id := chi.URLParam(r, "id")
	rec, err := h.runs.Get(r.Context(), id)
	if errors.Is(err, runs.ErrRunNotFound) {
		h.writeError(w, http.StatusNotFound, "Run not found")
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		h.writeError(w, http.StatusInternalServerError, "Failed to get run")
		return nil, false
	}
	return rec, true
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var schemaErr *dataset.SchemaError
	switch {
	case errors.Is(err, optimization.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, optimization.ErrInfeasibleConstraint),
		errors.Is(err, optimization.ErrInfeasibleOptimization),
		errors.Is(err, dataset.ErrEmptyDataset),
		errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
