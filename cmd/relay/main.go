package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/services"
	httphandlers "telecall/internal/handlers/http"
	"telecall/internal/infrastructure/middleware"
	"telecall/internal/infrastructure/monitoring"
	signalinfra "telecall/internal/infrastructure/signal"
	repositories "telecall/internal/infrastructure/repositories"
	"telecall/pkg/config"
	"telecall/pkg/logger"
	"telecall/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/telecall/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(tracing.Config{
			ServiceName: "telecall-relay",
			JaegerURL:   cfg.Tracing.JaegerURL,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			log.Warnw("tracing disabled", "error", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(ctx)
			}()
		}
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	roomRepo := repoFactory.CreateRoomRepository()
	sessionRepo := repoFactory.CreateSessionRepository()

	sessionService := services.NewSessionService(roomRepo, sessionRepo, log)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	collector := monitoring.NewPrometheusCollector()

	relay := signalinfra.NewRelay(roomRepo, log,
		signalinfra.WithKeepalive(cfg.Relay.PingInterval, cfg.Relay.PongTimeout),
		signalinfra.WithWriteTimeout(cfg.Relay.WriteTimeout),
		signalinfra.WithMessageRate(cfg.RateLimiting.MessagesPerSecond, cfg.RateLimiting.MessageBurst),
		signalinfra.WithRelayMetrics(collector),
	)

	health := monitoring.NewHealthChecker()
	health.AddRoomStoreCheck(roomRepo, 2*time.Second)

	iceServers := make([]domain.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, domain.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []domain.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	sessionHandler := httphandlers.NewSessionHandler(sessionService, authService, iceServers)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	router.Use(middleware.ErrorHandlerMiddleware(log))

	sessionHandler.SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := health.CheckAll(ctx)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	wsAuth := middleware.WebSocketAuth(authService, log)
	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", wsAuth(relay.Handler()))

	wsServer := &http.Server{
		Addr:    cfg.Relay.Address,
		Handler: wsMux,
	}
	apiServer := &http.Server{
		Addr:         cfg.Relay.APIAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 2)
	go func() {
		log.Infof("Starting signaling relay on %s", cfg.Relay.Address)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	go func() {
		log.Infof("Starting session API on %s", cfg.Relay.APIAddress)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down relay...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("API server shutdown failed", "error", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Relay server shutdown failed", "error", err)
	}

	log.Info("Relay stopped")
}
