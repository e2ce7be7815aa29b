package api

import (
	"log/slog"
	"net/http"

	"github.com/STRATINT/citypulse/internal/auth"
)

// AuthHandler reports on the caller's admin token. Tokens are issued by the
// external auth service; this service only verifies them.
type AuthHandler struct {
	logger *slog.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(logger *slog.Logger) *AuthHandler {
	return &AuthHandler{logger: logger}
}

// ValidateToken handles GET /api/admin/auth/validate
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Token validation is handled by the middleware
	// If we reach here, the token is valid
	userID, _ := auth.GetUserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"user_id": userID,
	}, h.logger)
}
