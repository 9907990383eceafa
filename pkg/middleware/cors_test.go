package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const dashboardOrigin = "http://localhost:5173"

func corsHandler() http.Handler {
	return CORS([]string{dashboardOrigin})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORSSimpleRequests(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		method     string
		wantOrigin string
	}{
		{name: "charts from dashboard", origin: dashboardOrigin, method: http.MethodGet, wantOrigin: dashboardOrigin},
		{name: "admin reset from dashboard", origin: dashboardOrigin, method: http.MethodPost, wantOrigin: dashboardOrigin},
		{name: "foreign origin", origin: "http://evil.com", method: http.MethodGet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/charts", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			corsHandler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		method        string
		headers       string
		allowed       bool
		wantAllowHdrs string
	}{
		{name: "charts with bearer token", path: "/api/charts", method: http.MethodGet, headers: "Authorization", allowed: true, wantAllowHdrs: "Authorization"},
		{name: "admin reset", path: "/api/admin/charts/reset", method: http.MethodPost, headers: "Content-Type", allowed: true, wantAllowHdrs: "Content-Type"},
		{name: "put is not served", path: "/api/charts", method: http.MethodPut},
		{name: "delete is not served", path: "/api/charts", method: http.MethodDelete},
		{name: "unknown header", path: "/api/charts", method: http.MethodGet, headers: "X-CSRF-Token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, tt.path, nil)
			req.Header.Set("Origin", dashboardOrigin)
			req.Header.Set("Access-Control-Request-Method", tt.method)
			if tt.headers != "" {
				req.Header.Set("Access-Control-Request-Headers", tt.headers)
			}
			rec := httptest.NewRecorder()

			corsHandler().ServeHTTP(rec, req)

			if !tt.allowed {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
				return
			}
			assert.Equal(t, dashboardOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.method, rec.Header().Get("Access-Control-Allow-Methods"))
			assert.True(t, strings.EqualFold(tt.wantAllowHdrs, rec.Header().Get("Access-Control-Allow-Headers")),
				"allowed headers %q", rec.Header().Get("Access-Control-Allow-Headers"))
			assert.Equal(t, "300", rec.Header().Get("Access-Control-Max-Age"))
		})
	}
}
