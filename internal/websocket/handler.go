package websocket

import (
	"net/http"
	"slices"

	"github.com/dennisdiepolder/monti/livechat/internal/auth"
	"github.com/dennisdiepolder/monti/livechat/internal/config"
	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub      *Hub
	config   *config.Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler. Origins are checked against the
// configured allow list; "*" allows any origin.
func NewHandler(hub *Hub, cfg *config.Config, logger zerolog.Logger) *Handler {
	h := &Handler{
		hub:    hub,
		config: cfg,
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.config.AllowedOrigins, "*") || slices.Contains(h.config.AllowedOrigins, origin)
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.Get().RecordWebSocketError()
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	claims, _ := auth.GetUserFromContext(r.Context())
	client := NewClient(h.hub, conn, h.config, h.logger, claims)

	h.hub.Register(client)
	client.Start()
}
