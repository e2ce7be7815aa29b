package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/STRATINT/citypulse/internal/database"
)

type IngestionErrorHandler struct {
	repo   database.IngestionErrorRepository
	logger *slog.Logger
}

func NewIngestionErrorHandler(repo database.IngestionErrorRepository, logger *slog.Logger) *IngestionErrorHandler {
	return &IngestionErrorHandler{
		repo:   repo,
		logger: logger,
	}
}

// ListErrors returns ingestion errors with optional filtering
// GET /api/admin/ingestion-errors?limit=100&unresolved_only=true
func (h *IngestionErrorHandler) ListErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse query parameters
	limitStr := r.URL.Query().Get("limit")
	limit := 100
	if limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	unresolvedOnly := r.URL.Query().Get("unresolved_only") == "true"

	ctx := r.Context()
	errors, err := h.repo.List(ctx, limit, unresolvedOnly)
	if err != nil {
		h.logger.Error("failed to list ingestion errors", "error", err)
		http.Error(w, "Failed to list errors", http.StatusInternalServerError)
		return
	}

	// Get count of unresolved errors
	unresolvedCount, err := h.repo.CountUnresolved(ctx)
	if err != nil {
		h.logger.Error("failed to count unresolved errors", "error", err)
		unresolvedCount = 0
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"errors":           errors,
		"count":            len(errors),
		"unresolved_count": unresolvedCount,
	}, h.logger)
}

// ResolveError marks an error as resolved
// POST /api/admin/ingestion-errors/:id/resolve
func (h *IngestionErrorHandler) ResolveError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/resolve") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// Extract ID from path
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/ingestion-errors/")
	id := strings.TrimSuffix(path, "/resolve")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Error ID required", http.StatusBadRequest)
		return
	}

	if err := h.repo.MarkResolved(r.Context(), id); err != nil {
		h.logger.Error("failed to resolve error", "id", id, "error", err)
		http.Error(w, "Failed to resolve error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("resolved ingestion error", "id", id)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      id,
	}, h.logger)
}
