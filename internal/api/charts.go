package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ChartSource exposes the charts currently drawn; satisfied by *render.Renderer
type ChartSource interface {
	Snapshot() []types.ChartFrame
}

// VisibilitySource exposes the department chart visibility; satisfied by *dashboard.Controller
type VisibilitySource interface {
	DepartmentChartVisible() bool
}

// ChartsResponse is the payload of GET /api/charts
type ChartsResponse struct {
	Charts                 []types.ChartFrame `json:"charts"`
	DepartmentChartVisible bool               `json:"department_chart_visible"`
	Timestamp              time.Time          `json:"timestamp"`
}

// ChartsHandler serves the current dashboard state for clients that poll
// instead of holding a websocket open
type ChartsHandler struct {
	charts     ChartSource
	visibility VisibilitySource
	logger     zerolog.Logger
}

// NewChartsHandler creates a new ChartsHandler
func NewChartsHandler(charts ChartSource, visibility VisibilitySource, logger zerolog.Logger) *ChartsHandler {
	return &ChartsHandler{
		charts:     charts,
		visibility: visibility,
		logger:     logger.With().Str("component", "charts_api").Logger(),
	}
}

// GetCharts handles GET /api/charts
func (h *ChartsHandler) GetCharts(w http.ResponseWriter, r *http.Request) {
	charts := h.charts.Snapshot()
	if charts == nil {
		charts = []types.ChartFrame{}
	}

	resp := ChartsResponse{
		Charts:                 charts,
		DepartmentChartVisible: h.visibility.DepartmentChartVisible(),
		Timestamp:              time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode charts")
	}
}

// GetChart handles GET /api/charts/{chart}
func (h *ChartsHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chart")
	for _, frame := range h.charts.Snapshot() {
		if frame.Chart == id {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(frame); err != nil {
				h.logger.Error().Err(err).Str("chart", id).Msg("failed to encode chart")
			}
			return
		}
	}
	writeError(w, http.StatusNotFound, "chart not found")
}
