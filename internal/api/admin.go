package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dennisdiepolder/monti/livechat/internal/auth"
	"github.com/dennisdiepolder/monti/livechat/internal/dashboard"
	"github.com/dennisdiepolder/monti/livechat/internal/stream"
	"github.com/rs/zerolog"
)

// Resetter recreates the dashboard charts; satisfied by *dashboard.Controller
type Resetter interface {
	ResetCharts() error
	Mounted() bool
}

// AdminHandler handles operator actions on the running dashboard
type AdminHandler struct {
	dashboard Resetter
	logger    zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(d Resetter, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		dashboard: d,
		logger:    logger.With().Str("component", "admin_api").Logger(),
	}
}

// RequireAdmin middleware, only admin role allowed
func RequireAdmin(next http.Handler) http.Handler {
	return auth.RequireRole(auth.RoleAdmin)(next)
}

// ResetCharts handles POST /api/admin/charts/reset. The reset runs on the
// change stream, so a 202 means it is queued.
func (h *AdminHandler) ResetCharts(w http.ResponseWriter, r *http.Request) {
	err := h.dashboard.ResetCharts()
	switch {
	case errors.Is(err, dashboard.ErrNotMounted):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, stream.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to reset charts")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := "anonymous"
	if claims, ok := auth.GetUserFromContext(r.Context()); ok {
		user = claims.Email
	}
	h.logger.Info().Str("user", user).Msg("chart reset requested")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "chart reset queued",
	})
}

// GetStatus handles GET /api/admin/status
func (h *AdminHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"mounted": h.dashboard.Mounted(),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
