// Package server exposes the TRMNL device API over HTTP: screen content
// delivery, device provisioning, telemetry ingest, and manual refresh.
// All goal computation lives behind the tracker; handlers only plumb.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/blackwell-systems/habitboard/internal/hub"
	"github.com/blackwell-systems/habitboard/internal/render"
	"github.com/blackwell-systems/habitboard/internal/store"
	"github.com/blackwell-systems/habitboard/internal/tracker"
)

// SnapshotSource serves the current computed goal snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context, force bool) *tracker.Snapshot
}

// HubStatus reports connection info for the status endpoint.
type HubStatus interface {
	Host() string
	State() hub.ConnState
}

// Config holds the server's own settings.
type Config struct {
	Addr            string
	Version         string
	RefreshInterval int // seconds between device polls
	Debug           bool
}

// Server is the HTTP front end.
type Server struct {
	cfg      Config
	source   SnapshotSource
	renderer *render.Renderer
	devices  *store.DB
	hubInfo  HubStatus
	log      *slog.Logger

	engine   *gin.Engine
	httpSrv  *http.Server
	started  time.Time

	// Memoize the last render so polls between refreshes reuse one image.
	renderMu   sync.Mutex
	renderedAt time.Time
	renderName string
}

// New wires the HTTP server. Dependencies are injected so tests can use
// doubles for the tracker and store.
func New(cfg Config, source SnapshotSource, renderer *render.Renderer, devices *store.DB, hubInfo HubStatus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "ID", "Access-Token", "FW-Version", "Battery-Voltage"}
	engine.Use(cors.New(corsCfg))

	s := &Server{
		cfg:      cfg,
		source:   source,
		renderer: renderer,
		devices:  devices,
		hubInfo:  hubInfo,
		log:      log,
		engine:   engine,
		started:  time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/images/:name", s.handleImage)

	api := s.engine.Group("/api")
	api.GET("/display", s.handleDisplay)
	api.POST("/setup", s.handleSetup)
	api.POST("/log", s.handleLog)
	api.POST("/refresh", s.handleRefresh)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
