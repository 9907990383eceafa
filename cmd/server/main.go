package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/livechat/internal/aggregator"
	"github.com/dennisdiepolder/monti/livechat/internal/api"
	"github.com/dennisdiepolder/monti/livechat/internal/auth"
	"github.com/dennisdiepolder/monti/livechat/internal/cache"
	"github.com/dennisdiepolder/monti/livechat/internal/chart"
	"github.com/dennisdiepolder/monti/livechat/internal/config"
	"github.com/dennisdiepolder/monti/livechat/internal/dashboard"
	"github.com/dennisdiepolder/monti/livechat/internal/event"
	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/dennisdiepolder/monti/livechat/internal/render"
	"github.com/dennisdiepolder/monti/livechat/internal/rollover"
	"github.com/dennisdiepolder/monti/livechat/internal/stream"
	"github.com/dennisdiepolder/monti/livechat/internal/websocket"
	"github.com/dennisdiepolder/monti/livechat/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// server bundles the long running components wired together by main
type server struct {
	cfg        *config.Config
	hub        *websocket.Hub
	feed       *stream.Feed
	renderer   *render.Renderer
	controller *dashboard.Controller
	scheduler  *rollover.Scheduler
	receiver   *event.Receiver
	authn      *auth.Authenticator
}

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("timezone", cfg.Timezone.String()).
		Str("rollover_schedule", cfg.RolloverSchedule).
		Msg("starting livechat dashboard server")

	srv, err := newServer(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	if err := srv.authn.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize authentication")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

// newServer constructs and wires every component without starting any of them
func newServer(cfg *config.Config, logger zerolog.Logger) (*server, error) {
	metrics.Get()

	hub := websocket.NewHub(logger)
	renderer := render.NewRenderer(hub, logger)

	sessions := cache.NewSessionStore(logger)
	agents := cache.NewAgentStore(logger)
	departments := cache.NewDepartmentStore(logger)

	feed := stream.NewFeed(stream.Stores{
		Sessions:    sessions,
		Agents:      agents,
		Departments: departments,
	}, cfg.FeedBuffer, logger)

	loc := cfg.Timezone
	registry := chart.NewRegistry(renderer, func() time.Time { return time.Now().In(loc) })
	engine := aggregator.NewEngine(aggregator.Sources{
		Sessions:    sessions,
		Agents:      agents,
		Departments: departments,
	}, registry, loc, logger)

	controller := dashboard.NewController(feed, registry, engine, logger)
	controller.SetBroadcaster(hub)
	engine.SetVisibilityNotifier(controller)

	hub.SetSnapshot(func() [][]byte {
		return snapshotFrames(renderer, controller, logger)
	})

	scheduler, err := rollover.NewScheduler(controller, cfg.RolloverSchedule, loc, logger)
	if err != nil {
		return nil, err
	}

	receiver := event.NewReceiver(feed, event.Counts{
		Sessions:    sessions.Count,
		Agents:      agents.Count,
		Departments: departments.DepartmentCount,
		AgentStatus: agents.GetStatusStats,
	}, logger)

	authn := auth.NewAuthenticator(auth.Options{
		SkipAuth:        cfg.SkipAuth,
		Issuer:          cfg.OIDCIssuer,
		VerifySignature: cfg.VerifySignature,
	}, logger)

	return &server{
		cfg:        cfg,
		hub:        hub,
		feed:       feed,
		renderer:   renderer,
		controller: controller,
		scheduler:  scheduler,
		receiver:   receiver,
		authn:      authn,
	}, nil
}

// snapshotFrames encodes the current charts followed by the department chart
// visibility, the sequence a freshly connected dashboard needs
func snapshotFrames(renderer *render.Renderer, controller *dashboard.Controller, logger zerolog.Logger) [][]byte {
	charts := renderer.Snapshot()
	frames := make([][]byte, 0, len(charts)+1)
	for _, frame := range charts {
		data, err := json.Marshal(frame)
		if err != nil {
			logger.Error().Err(err).Str("chart", frame.Chart).Msg("failed to marshal snapshot frame")
			continue
		}
		frames = append(frames, data)
	}
	data, err := json.Marshal(controller.VisibilityFrame())
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal visibility frame")
		return frames
	}
	return append(frames, data)
}

// router builds the HTTP routes
func (s *server) router(logger zerolog.Logger) http.Handler {
	wsHandler := websocket.NewHandler(s.hub, s.cfg, logger)
	charts := api.NewChartsHandler(s.renderer, s.controller, logger)
	admin := api.NewAdminHandler(s.controller, logger)

	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(s.cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - the chat platform pushes changes here)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/sessions", s.receiver.HandleSessions)
		r.Post("/agents", s.receiver.HandleAgents)
		r.Post("/departments", s.receiver.HandleDepartments)
		r.Get("/feed/stats", s.receiver.GetStats)
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authn.Middleware)
		r.Get("/ws", wsHandler.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Get("/charts", charts.GetCharts)
			r.Get("/charts/{chart}", charts.GetChart)

			r.Route("/admin", func(r chi.Router) {
				r.Use(api.RequireAdmin)
				r.Get("/status", admin.GetStatus)
				r.Post("/charts/reset", admin.ResetCharts)
			})
		})
	})

	return r
}

// run starts every component and blocks until ctx is cancelled or one of
// them fails
func (s *server) run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router(log.Logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.feed.Run(ctx) })
	g.Go(func() error { return s.hub.Run(ctx) })

	// Mount queues onto the feed, so it only needs the feed goroutine started
	if err := s.controller.Mount(); err != nil {
		return fmt.Errorf("mount dashboard: %w", err)
	}

	g.Go(func() error { return s.scheduler.Start(ctx) })

	g.Go(func() error {
		log.Info().Msgf("server listening on :%s", s.cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"livechat-dashboard"}`)
}
