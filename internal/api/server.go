// Package api wires the services into the HTTP server.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/driveindex/driveindex/internal/api/middleware"
	"github.com/driveindex/driveindex/internal/api/ratelimit"
	"github.com/driveindex/driveindex/internal/aria2"
	"github.com/driveindex/driveindex/internal/auth"
	"github.com/driveindex/driveindex/internal/cache"
	"github.com/driveindex/driveindex/internal/config"
	"github.com/driveindex/driveindex/internal/health"
	"github.com/driveindex/driveindex/internal/offline"
	"github.com/driveindex/driveindex/internal/scheduler"
	"github.com/driveindex/driveindex/internal/scheduler/tasks"
	"github.com/driveindex/driveindex/internal/settings"
	"github.com/driveindex/driveindex/internal/startup"
	"github.com/driveindex/driveindex/internal/upload"
	"github.com/driveindex/driveindex/internal/websocket"
)

const healthCheckTimeout = 5 * time.Second

// Server handles HTTP requests for the admin API.
type Server struct {
	echo      *echo.Echo
	db        *sql.DB
	hub       *websocket.Hub
	scheduler *scheduler.Scheduler
	logs      LogsProvider
	logger    zerolog.Logger
	cfg       *config.Config

	// Services
	settingsService *settings.Service
	authService     *auth.Service
	offlineService  *offline.Service
	cacheService    *cache.Service
	healthService   *health.Service
	dispatcher      *upload.Dispatcher
	limiter         *ratelimit.AuthLimiter
	settingsCache   *cache.Cache

	daemonMu sync.RWMutex
	daemon   *aria2.Client
}

// NewServer creates the server and its services. hub, sched and logs may be nil.
func NewServer(ctx context.Context, db *sql.DB, hub *websocket.Hub, sched *scheduler.Scheduler, sink upload.Sink, logs LogsProvider, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		db:        db,
		hub:       hub,
		scheduler: sched,
		logs:      logs,
		logger:    logger,
		cfg:       cfg,
		limiter:   ratelimit.NewAuthLimiter(),
	}

	if err := s.initServices(ctx, sink); err != nil {
		return nil, err
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) initServices(ctx context.Context, sink upload.Sink) error {
	var err error

	s.settingsCache = cache.New(cache.DefaultTTL)
	s.settingsService = settings.NewService(s.db, daemonDefaults(s.cfg.Aria2), s.logger)
	s.settingsService.SetCache(s.settingsCache)
	if err := s.settingsService.EnableEncryption(ctx, s.cfg.Auth.SecretKey); err != nil {
		return fmt.Errorf("failed to enable settings encryption: %w", err)
	}

	s.authService, err = auth.NewService(s.db, s.cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	if seeded, err := s.authService.EnsureAdmin(ctx, s.cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("failed to seed admin password: %w", err)
	} else if seeded {
		s.logger.Info().Msg("admin password initialized from configuration")
	} else if !s.authService.IsPasswordSet(ctx) {
		s.logger.Warn().Msg("no admin password set, configure auth.admin_password to log in")
	}

	s.dispatcher = upload.NewDispatcher(upload.Config{
		Workers:   s.cfg.Upload.Workers,
		QueueSize: s.cfg.Upload.QueueSize,
	}, sink, nil, s.logger)

	s.offlineService = offline.NewService(offline.NewStore(s.db), s.dispatcher, s.logger)
	s.dispatcher.SetTracker(s.offlineService)
	if s.hub != nil {
		s.offlineService.SetBroadcaster(s.hub)
	}

	daemonCfg, err := s.settingsService.Daemon(ctx)
	if err != nil {
		return fmt.Errorf("failed to load daemon settings: %w", err)
	}
	s.applyDaemon(daemonCfg)
	s.settingsService.OnDaemonChange(s.applyDaemon)

	var deferrer cache.Deferrer
	if s.scheduler != nil {
		deferrer = s.scheduler
	}
	s.cacheService = cache.NewService(s.settingsService, deferrer, s.logger)
	s.cacheService.Register(s.settingsCache)
	s.cacheService.OnRefresh(s.reloadDaemon)

	s.healthService = health.NewService(healthCheckTimeout, s.logger)
	if s.hub != nil {
		s.healthService.SetBroadcaster(s.hub)
	}
	s.healthService.Register(health.ComponentDaemon, "Download daemon", func(ctx context.Context) error {
		_, err := s.currentDaemon().GetVersion(ctx)
		return err
	})
	if checker, ok := sink.(upload.Checker); ok {
		s.healthService.Register(health.ComponentStorage, "Upload storage ("+sink.Name()+")", checker.Check)
	}

	if s.scheduler != nil {
		if err := tasks.RegisterHealthCheckTask(s.scheduler, s.healthService); err != nil {
			return err
		}
		if s.cfg.Sweeper.Enabled {
			if err := tasks.RegisterOfflineSweepTask(s.scheduler, s.offlineService, s.cfg.Sweeper.Cron); err != nil {
				return err
			}
		}
		if err := tasks.RegisterLoginLimiterCleanupTask(s.scheduler, s.limiter); err != nil {
			return err
		}
	}

	return nil
}

func daemonDefaults(c config.Aria2Config) aria2.Config {
	return aria2.Config{
		Host:    c.Host,
		Port:    c.Port,
		Token:   c.Token,
		UseSSL:  c.UseSSL,
		Timeout: c.Timeout,
	}
}

// applyDaemon points the offline workflow at a daemon built from cfg.
// The rpc token doubles as the completion callback secret.
func (s *Server) applyDaemon(cfg aria2.Config) {
	client := aria2.New(cfg)

	s.daemonMu.Lock()
	s.daemon = client
	s.daemonMu.Unlock()

	s.offlineService.SetDaemon(client, cfg.Token)
	s.logger.Info().Str("url", cfg.URL()).Msg("download daemon configured")
}

func (s *Server) reloadDaemon(ctx context.Context) error {
	cfg, err := s.settingsService.Daemon(ctx)
	if err != nil {
		return err
	}
	s.applyDaemon(cfg)
	return nil
}

func (s *Server) currentDaemon() *aria2.Client {
	s.daemonMu.RLock()
	defer s.daemonMu.RUnlock()
	return s.daemon
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.APIHeaders("/api/", "/offline/"))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", redactCallback(v.URI)).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("requestId", v.RequestID).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", redactCallback(v.URI)).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("requestId", v.RequestID).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.IsWebSocket()
		},
	}))
}

// Start starts the upload workers, connects to the daemon in the background and
// begins listening for HTTP requests.
func (s *Server) Start(ctx context.Context, address string) error {
	s.dispatcher.Start(ctx)

	if daemon := s.currentDaemon(); daemon != nil {
		go func() {
			_, err := startup.WaitForDaemon(ctx, daemon, startup.DefaultRetryConfig(), s.logger.With().Str("component", "startup").Logger())
			s.healthService.Report(health.ComponentDaemon, err)
		}()
	}

	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown stops accepting requests, then drains the upload workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	err := s.echo.Shutdown(ctx)
	s.dispatcher.Stop()
	return err
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// OfflineService exposes the offline workflow to the CLI.
func (s *Server) OfflineService() *offline.Service {
	return s.offlineService
}
