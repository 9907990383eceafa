package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// Methods and headers browsers may use against the dashboard: GET for charts
// and the websocket upgrade, POST for the admin actions. Bearer tokens travel
// in Authorization.
var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsHeaders = []string{"Accept", "Authorization", "Content-Type"}
)

// CORS allows the dashboard frontends in allowedOrigins to call the API
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsHeaders,
		AllowCredentials: true,
		MaxAge:           300,
	})

	return c.Handler
}
