package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"session-tracker/internal/auth"
	"session-tracker/internal/config"
	"session-tracker/internal/database"
	"session-tracker/internal/events"
	"session-tracker/internal/handlers"
	"session-tracker/internal/metrics"
	"session-tracker/internal/presence"
	"session-tracker/internal/services"
	"session-tracker/internal/websocket"
	"session-tracker/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

func runServe(ctx context.Context, v *viper.Viper) error {
	// Load configuration
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Console)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event sinks run until the server and hub have stopped publishing.
	sinkCtx, stopSinks := context.WithCancel(context.Background())
	defer stopSinks()

	bus := events.NewBus(events.LogSink(logger.L()))
	var asyncSinks []*events.AsyncSink

	// Initialize database journal
	var journal database.EventRepository
	if cfg.Database.URL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		journal = db

		sink := events.JournalSink(db, cfg.Database.QueueSize)
		sink.Start(sinkCtx)
		bus.Subscribe(sink)
		asyncSinks = append(asyncSinks, sink)
		logger.Info("Event journal enabled")
	}

	// Initialize redis fan-out
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		sink := events.RedisSink(client, cfg.Redis.Channel, cfg.Redis.QueueSize)
		sink.Start(sinkCtx)
		bus.Subscribe(sink)
		asyncSinks = append(asyncSinks, sink)
		logger.Info("Publishing events to redis channel %s", cfg.Redis.Channel)
	}

	// Initialize presence engine
	engine := presence.NewEngine(presence.Config{
		SessionTimeout:     cfg.Tracker.SessionTimeout,
		MaxUsersPerSession: cfg.Tracker.MaxUsersPerSession,
		HistorySize:        cfg.Tracker.HistorySize,
		EventLogSize:       cfg.Tracker.EventLogSize,
	}, bus)

	var m *metrics.Metrics
	var observer websocket.MessageObserver
	if cfg.Metrics.Enabled {
		m = metrics.New(engine.Stats)
		bus.Subscribe(m)
		observer = m
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(engine, cfg.WebSocket, cfg.Tracker.HeartbeatInterval, observer)
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth)
	sessionService := services.NewSessionService(engine, journal, hub, cfg.Tracker.DefaultTTL)

	routerCfg := handlers.RouterConfig{
		Sessions:  handlers.NewSessionHandlers(sessionService),
		WebSocket: handlers.NewWebSocketHandlers(hub),
		Auth:      authService,
	}
	if m != nil {
		routerCfg.Metrics = m.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handlers.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.Info("🚀 Server started on http://localhost:%d", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost:%d/ws", cfg.Server.Port)
	if !authService.Enabled() {
		logger.Warn("auth.jwt_secret is empty, session creation and deletion are unauthenticated")
	}
	printAPIEndpoints(cfg)

	// Wait for interrupt signal to gracefully shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			stopHub()
			<-hubDone
			return fmt.Errorf("server error: %w", err)
		}
	}
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error: %v", err)
	}

	stopHub()
	<-hubDone

	for _, sink := range asyncSinks {
		sink.Close()
	}
	logger.Info("Server stopped")
	return nil
}

func printAPIEndpoints(cfg *config.Config) {
	logger.Info("🔗 API endpoints:")
	logger.Info("   POST   /api/v1/sessions")
	logger.Info("   GET    /api/v1/sessions")
	logger.Info("   GET    /api/v1/sessions/{id}")
	logger.Info("   DELETE /api/v1/sessions/{id}")
	logger.Info("   GET    /api/v1/sessions/{id}/events")
	logger.Info("   GET    /api/v1/health")
	logger.Info("   GET    /api/v1/stats")
	if cfg.Metrics.Enabled {
		logger.Info("   GET    %s", cfg.Metrics.Path)
	}
	logger.Info("   GET    /ws")
}
