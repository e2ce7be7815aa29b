package api

import (
	"log/slog"
	"net/http"

	"github.com/STRATINT/citypulse/internal/auth"
	"github.com/STRATINT/citypulse/internal/database"
)

// RouterDeps are the collaborators behind the admin routes. Errors and
// Activity are nil when the store keeps no ledger.
type RouterDeps struct {
	Manager   EventManager
	Pipeline  PipelineRunner
	Errors    database.IngestionErrorRepository
	Activity  ActivityLister
	JWTSecret string
	Logger    *slog.Logger
}

// SetupRoutes configures all API routes. Every route is admin-only.
func SetupRoutes(mux *http.ServeMux, deps RouterDeps) {
	handler := NewHandler(deps.Manager, deps.Logger)
	pipelineHandler := NewPipelineHandler(deps.Pipeline, deps.Logger)

	// Auth middleware
	admin := auth.AdminMiddleware(deps.JWTSecret)
	protect := func(h http.HandlerFunc) http.Handler { return admin(h) }

	authHandler := NewAuthHandler(deps.Logger)
	mux.Handle("/api/admin/auth/validate", protect(authHandler.ValidateToken))

	// Scraper control
	mux.Handle("/api/admin/scraper/status", protect(pipelineHandler.GetStatus))
	mux.Handle("/api/admin/scraper/run", protect(pipelineHandler.RunAll))
	mux.Handle("/api/admin/scraper/run-source", protect(pipelineHandler.RunSource))
	mux.Handle("/api/admin/maintenance", protect(pipelineHandler.RunMaintenance))

	// Catalog
	mux.Handle("/api/admin/events", protect(handler.ListEventsHandler))
	mux.Handle("/api/admin/events/", protect(handler.HandleEventByID))

	// Ledgers
	if deps.Errors != nil {
		errorHandler := NewIngestionErrorHandler(deps.Errors, deps.Logger)
		mux.Handle("/api/admin/ingestion-errors", protect(errorHandler.ListErrors))
		mux.Handle("/api/admin/ingestion-errors/", protect(errorHandler.ResolveError))
	}
	if deps.Activity != nil {
		activityHandler := NewActivityLogHandlers(deps.Activity, deps.Logger)
		mux.Handle("/api/admin/activity-logs", protect(activityHandler.ListActivities))
	}
}
