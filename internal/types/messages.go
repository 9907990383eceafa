package types

import "time"

// ChartFrame is pushed to dashboard clients when a chart is created or updated
type ChartFrame struct {
	Type      string      `json:"type"` // "chart_init" or "chart_update"
	Chart     string      `json:"chart"`
	Kind      string      `json:"kind,omitempty"` // "doughnut" or "line"
	Title     string      `json:"title,omitempty"`
	Labels    []string    `json:"labels,omitempty"`
	Series    []string    `json:"series,omitempty"`
	Data      [][]float64 `json:"data,omitempty"`
	Label     string      `json:"label,omitempty"`
	Values    []float64   `json:"values,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// VisibilityFrame toggles the visibility of a chart section on the dashboard
type VisibilityFrame struct {
	Type      string    `json:"type"` // always "visibility"
	Chart     ChartID   `json:"chart"`
	Visible   bool      `json:"visible"`
	Timestamp time.Time `json:"timestamp"`
}
