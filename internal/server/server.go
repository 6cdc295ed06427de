/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/volund_planner/internal/api"
	"github.com/friendsincode/volund_planner/internal/audit"
	"github.com/friendsincode/volund_planner/internal/config"
	"github.com/friendsincode/volund_planner/internal/db"
	"github.com/friendsincode/volund_planner/internal/eventbus"
	"github.com/friendsincode/volund_planner/internal/models"
	"github.com/friendsincode/volund_planner/internal/planner"
	"github.com/friendsincode/volund_planner/internal/qc"
	"github.com/friendsincode/volund_planner/internal/store"
	"github.com/friendsincode/volund_planner/internal/telemetry"
	"github.com/friendsincode/volund_planner/internal/timeline"
)

// defaultLanes seeds an empty installation so the board is usable on first
// boot.
var defaultLanes = []models.Lane{
	{Name: "Press 1", Color: "#2563eb"},
	{Name: "Press 2", Color: "#16a34a"},
	{Name: "Press 3", Color: "#d97706"},
	{Name: "Finishing", Color: "#9333ea"},
}

// Server bundles HTTP and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db       *gorm.DB
	store    *store.Store
	bus      *eventbus.RedisBus
	planner  *planner.Service
	qcSvc    *qc.Service
	auditSvc *audit.Service
	api      *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.api.Routes(router)
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.Handler())
	srv.metricsServer = &http.Server{
		Addr:              cfg.MetricsBind,
		Handler:           metricsMux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	s.db = database
	s.closers = append(s.closers, func() error { return db.Close(database) })

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	s.store = store.New(database, s.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.SeedLanes(ctx, defaultLanes); err != nil {
		return fmt.Errorf("seed lanes: %w", err)
	}
	lanes, err := s.store.ListLanes(ctx)
	if err != nil {
		return fmt.Errorf("load lanes: %w", err)
	}

	nodeID := s.cfg.InstanceID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	busCfg := eventbus.DefaultRedisConfig()
	busCfg.Addr = s.cfg.RedisAddr
	busCfg.Password = s.cfg.RedisPassword
	busCfg.DB = s.cfg.RedisDB
	bus, err := eventbus.NewRedisBus(busCfg, nodeID, s.logger)
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	s.bus = bus
	s.closers = append(s.closers, bus.Close)

	opts := []timeline.Option{timeline.WithFallbackRate(s.cfg.FallbackOutputRate)}
	if restriction := resolveLanes(lanes, s.cfg.CleaningLanes); len(restriction) > 0 {
		opts = append(opts, timeline.WithKindRestriction(models.KindCleaning, restriction...))
	}
	if restriction := resolveLanes(lanes, s.cfg.MaintenanceLanes); len(restriction) > 0 {
		opts = append(opts, timeline.WithKindRestriction(models.KindMaintenance, restriction...))
	}

	engine := timeline.NewEngine(lanes, s.logger, opts...)
	s.planner = planner.New(engine, s.store, bus, nodeID, s.logger, opts...)
	if err := s.planner.Load(ctx); err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	qcCfg := qc.Config{
		RedisAddr:      s.cfg.RedisAddr,
		RedisPassword:  s.cfg.RedisPassword,
		RedisDB:        s.cfg.RedisDB,
		TTL:            time.Duration(s.cfg.QCCacheTTLMinutes) * time.Minute,
		DisableOnError: true,
	}
	s.qcSvc = qc.New(s.store, qcCfg, s.logger)
	s.closers = append(s.closers, s.qcSvc.Close)

	s.auditSvc = audit.NewService(database, bus, s.logger)

	s.api = api.New(database, []byte(s.cfg.JWTSigningKey), s.planner, s.qcSvc, s.auditSvc, bus, s.logger)
	return nil
}

// resolveLanes maps configured lane names (or IDs) onto lane IDs, dropping
// entries that match nothing.
func resolveLanes(lanes []models.Lane, configured []string) []string {
	var out []string
	for _, want := range configured {
		for _, lane := range lanes {
			if lane.ID == want || lane.Name == want {
				out = append(out, lane.ID)
				break
			}
		}
	}
	return out
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.auditSvc.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.planner.Start(ctx)
	}()
}

// HTTPServer exposes the configured HTTP server for the caller to run.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer exposes the Prometheus endpoint server.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Planner exposes the planner service (used by CLI subcommands).
func (s *Server) Planner() *planner.Service {
	return s.planner
}

// Close stops background workers and releases resources.
func (s *Server) Close() error {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
