package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/services"
	httphandlers "rillcall/internal/handlers/http"
	"rillcall/internal/infrastructure/monitoring"
	"rillcall/internal/infrastructure/presence"
	hub "rillcall/internal/infrastructure/signal"
	"rillcall/internal/infrastructure/transport"
	webrtcinfra "rillcall/internal/infrastructure/webrtc"
	"rillcall/pkg/config"
	"rillcall/pkg/logger"
	"rillcall/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// loadConfig tries the explicit path first, then the usual locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	if explicit != "" {
		cfg, err := config.Load(explicit)
		return cfg, explicit, err
	}

	for _, path := range []string{"configs/config.yaml", "config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			cfg, err := config.Load(path)
			return cfg, path, err
		}
	}
	// no file: defaults plus environment overrides
	cfg, err := config.Load("")
	return cfg, "", err
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		logger.New("info").Sugar().Fatalw("Invalid configuration", "path", path, "error", err)
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer func() { _ = zapLogger.Sync() }()
	log := zapLogger.Sugar()

	self := domain.ParticipantID{Username: cfg.Participant.Username, ClientID: cfg.Participant.ClientID}
	log = log.With("participant", self.String())
	log.Infow("Loaded configuration", "path", path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	tracingCfg := tracing.DefaultConfig()
	tracingCfg.Enabled = cfg.Tracing.Enabled
	tracingCfg.JaegerURL = cfg.Tracing.JaegerEndpoint
	tracingCfg.Environment = cfg.Tracing.Environment
	tracingCfg.Participant = self.String()
	tp, err := tracing.Init(tracingCfg)
	if err != nil {
		log.Warnw("Tracing disabled", "error", err)
		tp = &tracing.TracerProvider{}
	}

	// Transport and presence
	factory := transport.NewFactory(ctx, cfg, log)
	defer func() {
		if err := factory.Close(); err != nil {
			log.Errorw("Error closing Redis client", "error", err)
		}
	}()
	signalTransport := factory.CreateTransport()
	directory := factory.CreatePresenceDirectory()

	// Monitoring
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := monitoring.NewPrometheusCollector(registry)

	notifications := hub.NewNotificationHub(hub.HubConfig{
		PingInterval:   cfg.Server.PingInterval,
		PongTimeout:    cfg.Server.PongTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}, log)

	media := webrtcinfra.NewMediaController(webrtcinfra.ConfigFrom(cfg), collector, log)

	engineCfg := services.DefaultEngineConfig(self)
	engineCfg.RingInterval = cfg.Signal.RingInterval
	engineCfg.RingAttempts = cfg.Signal.RingAttempts
	engineCfg.PublishTimeout = cfg.Signal.PublishTimeout
	engineCfg.MediaTimeout = cfg.Signal.MediaTimeout
	engineCfg.OutboxSize = cfg.Signal.OutboxSize
	engineCfg.EventQueueSize = cfg.Signal.EventQueueSize
	if cfg.RateLimiting.Enabled {
		engineCfg.InboundRate = rate.Limit(cfg.RateLimiting.Signal.MessagesPerSecond)
		engineCfg.InboundBurst = cfg.RateLimiting.Signal.Burst
	}

	engine := services.NewCallEngine(engineCfg, services.EngineDeps{
		Transport: signalTransport,
		Media:     media,
		Notifier:  notifications,
		Metrics:   collector,
		Logger:    log,
	})

	engineErr := make(chan error, 1)
	go func() {
		engineErr <- engine.Run(ctx)
	}()

	go presence.Heartbeat(ctx, directory, self, cfg.Presence.Heartbeat, log)

	health := monitoring.NewHealthChecker()
	health.AddEngineCheck(engine.Done(), time.Second)
	health.AddPresenceCheck(directory, 2*time.Second)
	if client := factory.RedisClient(); client != nil {
		health.AddRedisCheck(client, 2*time.Second)
	}

	var metricsHandler http.Handler
	if cfg.Monitoring.PrometheusEnabled {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httphandlers.NewRouter(httphandlers.RouterDeps{
		Config:        cfg,
		Calls:         engine,
		Presence:      directory,
		Auth:          services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL),
		Health:        health,
		Notifications: notifications.HandleWebSocket,
		Metrics:       metricsHandler,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting call agent UI server", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Errorw("Server failed", "error", err)
		stop()
	case err := <-engineErr:
		log.Errorw("Call engine failed", "error", err)
		stop()
	case <-ctx.Done():
		log.Infow("Received shutdown signal")
	}

	log.Infow("Shutting down call agent")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// the engine sends its farewell message while the transport is still open
	select {
	case <-engine.Done():
	case <-shutdownCtx.Done():
		log.Warnw("Call engine did not stop in time")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}
	notifications.Close()

	if err := signalTransport.Close(); err != nil {
		log.Errorw("Error closing transport", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}

	log.Infow("Call agent stopped")
}
