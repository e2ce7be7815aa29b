package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/STRATINT/citypulse/internal/models"
)

// ActivityLister reads the activity log.
type ActivityLister interface {
	List(ctx context.Context, limit int, activityType models.ActivityType, source string) ([]models.ActivityLog, error)
}

type ActivityLogHandlers struct {
	repo   ActivityLister
	logger *slog.Logger
}

func NewActivityLogHandlers(repo ActivityLister, logger *slog.Logger) *ActivityLogHandlers {
	return &ActivityLogHandlers{
		repo:   repo,
		logger: logger,
	}
}

// ListActivities handles GET /api/admin/activity-logs
func (h *ActivityLogHandlers) ListActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse query parameters
	limitStr := r.URL.Query().Get("limit")
	limit := 100
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	activityType := models.ActivityType(r.URL.Query().Get("activity_type"))
	source := r.URL.Query().Get("source")

	logs, err := h.repo.List(r.Context(), limit, activityType, source)
	if err != nil {
		h.logger.Error("failed to list activity logs", "error", err)
		http.Error(w, "Failed to retrieve activity logs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	}, h.logger)
}
