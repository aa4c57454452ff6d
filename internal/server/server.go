/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server assembles the process: database, cache, event bus,
// schedule engine, and the HTTP listeners that expose them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_player/internal/api"
	"github.com/friendsincode/grimnir_player/internal/cache"
	"github.com/friendsincode/grimnir_player/internal/catalog"
	"github.com/friendsincode/grimnir_player/internal/config"
	"github.com/friendsincode/grimnir_player/internal/db"
	"github.com/friendsincode/grimnir_player/internal/duration"
	"github.com/friendsincode/grimnir_player/internal/engine"
	"github.com/friendsincode/grimnir_player/internal/eventbus"
	"github.com/friendsincode/grimnir_player/internal/schedule"
	"github.com/friendsincode/grimnir_player/internal/storage"
	"github.com/friendsincode/grimnir_player/internal/telemetry"
	"github.com/friendsincode/grimnir_player/internal/version"
)

// Server bundles the HTTP API, the metrics listener, and the engine loop.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db      *gorm.DB
	cache   *cache.Cache
	bus     *eventbus.NATSBus
	store   *schedule.Store
	builder *schedule.Builder
	catalog *catalog.Service
	engine  *engine.Engine
	api     *api.API
	updates *version.Checker

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "grimnir-player-api")
	})
	router.Use(telemetry.MetricsMiddleware)
	// The decision stream holds its connection open indefinitely, so the
	// request timeout must not apply to websocket upgrades.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Header deadline guards against slowloris. Read and write
		// deadlines stay off: the decision stream writes for as long as
		// the subscriber stays connected.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.MetricsBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", telemetry.Handler())
		srv.metricsServer = &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return srv, nil
}

// securityHeadersMiddleware sets the JSON-API security baseline. The
// process serves no HTML, so the CSP can deny everything.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return fmt.Errorf("register db telemetry: %w", err)
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	// NATS fans decision and schedule events out to other instances; a
	// single instance without NATS degrades to the in-process bus.
	natsCfg := eventbus.DefaultNATSConfig()
	natsCfg.URL = s.cfg.NATSURL
	natsCfg.SubjectPrefix = s.cfg.NATSSubjectPrefix
	bus, err := eventbus.NewNATSBus(natsCfg, s.logger)
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.bus = bus
	s.DeferClose(bus.Close)

	if s.cfg.CacheEnabled() {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		if s.cfg.CacheTTL > 0 {
			cacheCfg.DecisionTTL = s.cfg.CacheTTL
		}
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(s.cache.Close)
		}
	}

	s.catalog = catalog.NewService(database, s.cache, s.logger)
	s.store = schedule.NewStore(database, s.cache, s.bus, s.logger)
	resolver := duration.NewResolver(s.catalog, s.logger)
	s.builder = schedule.NewBuilder(s.store, resolver, s.bus, s.cfg.ExpansionHorizon, s.logger)
	validator := schedule.NewValidator(s.builder, s.logger)
	s.engine = engine.New(s.builder, s.bus, s.cache, s.cfg.EngineTick, s.logger)

	archive, err := storage.NewObjectStore(context.Background(), s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("create archive store: %w", err)
	}
	if err := archive.CheckAccess(context.Background()); err != nil {
		s.logger.Warn().Err(err).Msg("export archive inaccessible, exports will not be archived")
		archive = nil
	}
	export := schedule.NewExportService(s.store, s.builder, archive, s.bus, s.logger)

	s.updates = version.NewChecker(s.logger)

	api.Version = version.Version
	a := api.New(database, []byte(s.cfg.JWTSigningKey), s.bus, s.store, s.builder, validator, s.catalog, resolver, s.logger)
	a.SetEngine(s.engine)
	a.SetExportService(export)
	a.SetUpdateChecker(s.updates)
	a.SetAdminCredentials(s.cfg.AdminUser, s.cfg.AdminPasswordHash)
	s.api = a

	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer exposes the metrics listener, nil when disabled.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// The engine owns snapshot rebuilds: one up front, then on every
	// definition change event and on staleness.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("playback engine exited")
		}
	}()

	s.updates.Start(ctx)

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	if s.updates != nil {
		s.updates.Stop()
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := `{"status":"ok"`
		if snap := s.builder.Current(); snap != nil {
			response += fmt.Sprintf(`,"snapshotVersion":%d`, snap.Version)
		}
		response += `}`
		_, _ = w.Write([]byte(response))
	})

	// Metrics stay on the main router when no dedicated listener is bound.
	if s.cfg.MetricsBind == "" {
		s.router.Handle("/metrics", telemetry.Handler())
	}

	s.api.Routes(s.router)
}
