package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/STRATINT/citypulse/internal/auth"
	"github.com/STRATINT/citypulse/internal/models"
)

// EventManager is the catalog surface the admin handlers use.
type EventManager interface {
	ListEvents(ctx context.Context, query models.EventQuery) ([]models.StoredEvent, int, error)
	GetEvent(ctx context.Context, eventID string) (*models.StoredEvent, error)
	Import(ctx context.Context, eventID, actor, notes string) (*models.StoredEvent, error)
}

type Handler struct {
	manager EventManager
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandler(manager EventManager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
		now:     time.Now,
	}
}

// EventsResponse is the body of GET /api/admin/events.
type EventsResponse struct {
	Events []models.StoredEvent `json:"events"`
	Count  int                  `json:"count"`
	Total  int                  `json:"total"`
	Query  models.EventQuery    `json:"query"`
}

// ImportRequest is the optional body of an import call.
type ImportRequest struct {
	Notes string `json:"notes"`
}

// ListEventsHandler handles GET /api/admin/events
func (h *Handler) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query, err := h.parseQueryParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, total, err := h.manager.ListEvents(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	query.Normalize()
	writeJSON(w, http.StatusOK, EventsResponse{
		Events: events,
		Count:  len(events),
		Total:  total,
		Query:  query,
	}, h.logger)
}

// HandleEventByID handles GET /api/admin/events/:id and
// POST /api/admin/events/:id/import
func (h *Handler) HandleEventByID(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/events/"), "/")
	if path == "" {
		http.Error(w, "Event ID required", http.StatusBadRequest)
		return
	}

	if id, ok := strings.CutSuffix(path, "/import"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.importEvent(w, r, id)
		return
	}

	if r.Method != http.MethodGet || strings.Contains(path, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	event, err := h.manager.GetEvent(r.Context(), path)
	if errors.Is(err, models.ErrEventNotFound) {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get event by ID", "id", path, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, event, h.logger)
}

func (h *Handler) importEvent(w http.ResponseWriter, r *http.Request, id string) {
	var req ImportRequest
	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				http.Error(w, "Invalid JSON body", http.StatusBadRequest)
				return
			}
		}
	}

	actor, _ := auth.GetUserIDFromContext(r.Context())
	if actor == "" {
		actor = "admin"
	}

	event, err := h.manager.Import(r.Context(), id, actor, req.Notes)
	if errors.Is(err, models.ErrEventNotFound) {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to import event", "id", id, "error", err)
		http.Error(w, "Failed to import event", http.StatusInternalServerError)
		return
	}

	h.logger.Info("event imported via admin API", "id", id, "actor", actor)
	writeJSON(w, http.StatusOK, event, h.logger)
}

// parseQueryParams converts URL query parameters to EventQuery
func (h *Handler) parseQueryParams(r *http.Request) (models.EventQuery, error) {
	q := r.URL.Query()
	query := models.EventQuery{
		City:       strings.TrimSpace(q.Get("city")),
		SourceName: strings.TrimSpace(q.Get("source")),
	}

	if status := q.Get("status"); status != "" {
		s := models.EventStatus(strings.ToLower(status))
		if !s.Valid() {
			return query, errors.New("invalid status")
		}
		query.Status = &s
	}

	if q.Get("upcoming") == "true" {
		now := h.now().UTC()
		query.UpcomingFrom = &now
	}

	// Pagination
	if limit := q.Get("limit"); limit != "" {
		val, err := strconv.Atoi(limit)
		if err != nil {
			return query, errors.New("invalid limit")
		}
		query.Limit = val
	}
	if offset := q.Get("offset"); offset != "" {
		val, err := strconv.Atoi(offset)
		if err != nil {
			return query, errors.New("invalid offset")
		}
		query.Offset = val
	}

	return query, nil
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
