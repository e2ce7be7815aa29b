package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/STRATINT/citypulse/internal/ingestion"
	"github.com/STRATINT/citypulse/internal/models"
)

// PipelineRunner is the ingestion pipeline as seen by the admin surface.
// The Start methods take the run guard before returning, so a conflict is
// known before the request is answered.
type PipelineRunner interface {
	StartFullCycle() (func(context.Context) models.RunReport, error)
	StartSingleSource(name string) (func(context.Context) models.ScrapeResult, error)
	RunMaintenanceSweep(ctx context.Context) (models.MaintenanceResult, error)
	Status() models.PipelineStatus
}

// PipelineHandler exposes pipeline control endpoints. Runs are started in
// the background and outlive the request.
type PipelineHandler struct {
	pipeline PipelineRunner
	logger   *slog.Logger
	async    func(func())
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(pipeline PipelineRunner, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{
		pipeline: pipeline,
		logger:   logger,
		async:    func(f func()) { go f() },
	}
}

// RunSourceRequest is the body of POST /api/admin/scraper/run-source.
type RunSourceRequest struct {
	Name string `json:"name"`
}

type runResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GetStatus handles GET /api/admin/scraper/status
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Status(), h.logger)
}

// RunAll handles POST /api/admin/scraper/run
func (h *PipelineHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	run, err := h.pipeline.StartFullCycle()
	if err != nil {
		writeJSON(w, http.StatusConflict, runResponse{Message: err.Error()}, h.logger)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	h.async(func() {
		report := run(ctx)
		h.logger.Info("admin-triggered ingestion cycle finished",
			"success", report.Success,
			"message", report.Message,
			"events", report.TotalEventsProcessed)
	})

	h.logger.Info("admin triggered ingestion cycle")
	writeJSON(w, http.StatusAccepted, runResponse{Success: true, Message: "Scraping started"}, h.logger)
}

// RunSource handles POST /api/admin/scraper/run-source
func (h *PipelineHandler) RunSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		http.Error(w, "Source name is required", http.StatusBadRequest)
		return
	}

	run, err := h.pipeline.StartSingleSource(name)
	switch {
	case errors.Is(err, ingestion.ErrSourceNotFound):
		writeJSON(w, http.StatusNotFound, runResponse{Message: err.Error()}, h.logger)
		return
	case err != nil:
		writeJSON(w, http.StatusConflict, runResponse{Message: err.Error()}, h.logger)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	h.async(func() {
		res := run(ctx)
		h.logger.Info("admin-triggered source run finished",
			"source", name,
			"success", res.Success,
			"events", res.EventCount,
			"error", res.Error)
	})

	h.logger.Info("admin triggered source run", "source", name)
	writeJSON(w, http.StatusAccepted, runResponse{Success: true, Message: "Scraping " + name + " started"}, h.logger)
}

// RunMaintenance handles POST /api/admin/maintenance
func (h *PipelineHandler) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := h.pipeline.RunMaintenanceSweep(r.Context())
	if err != nil {
		h.logger.Error("admin maintenance sweep failed", "error", err)
		http.Error(w, "Maintenance sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res, h.logger)
}
