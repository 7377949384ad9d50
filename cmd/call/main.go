package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/services"
	"telecall/internal/infrastructure/booking"
	"telecall/internal/infrastructure/media"
	"telecall/internal/infrastructure/monitoring"
	signalinfra "telecall/internal/infrastructure/signal"
	webrtcinfra "telecall/internal/infrastructure/webrtc"
	"telecall/pkg/circuitbreaker"
	"telecall/pkg/config"
	"telecall/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")
		sessionID  = flag.String("session", "", "booked session id (required)")
		userName   = flag.String("user", "participant", "display name")
		token      = flag.String("token", "", "session access token (required)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	if *sessionID == "" || *token == "" {
		log.Fatal("both -session and -token are required")
	}

	signaling := signalinfra.NewClient(signalinfra.ClientConfig{
		URL:               cfg.Signaling.URL,
		Token:             *token,
		UserName:          *userName,
		DialTimeout:       cfg.Signaling.DialTimeout,
		ReconnectAttempts: uint64(cfg.Signaling.ReconnectAttempts),
		ReconnectDelay:    cfg.Signaling.ReconnectDelay,
	}, log)

	bookingClient := booking.NewClient(cfg.Booking.BaseURL, *token, cfg.Booking.RequestTimeout, log)

	collector := monitoring.NewPrometheusCollector()
	if cfg.Monitoring.PrometheusEnabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Infow("serving call metrics", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Warnw("metrics server stopped", "error", err)
			}
		}()
	}

	camera := media.NewPatternSource("camera", log)
	screen := media.NewPatternSource("screen", log)

	jitter := 0.0
	if cfg.Reconnect.Jitter {
		jitter = 0.3
	}

	thresholds := services.QualityThresholds{
		ExcellentLoss: cfg.Quality.Thresholds.ExcellentLoss,
		ExcellentRTT:  cfg.Quality.Thresholds.ExcellentRTT,
		GoodLoss:      cfg.Quality.Thresholds.GoodLoss,
		GoodRTT:       cfg.Quality.Thresholds.GoodRTT,
		FairLoss:      cfg.Quality.Thresholds.FairLoss,
		FairRTT:       cfg.Quality.Thresholds.FairRTT,
	}

	orch := services.NewCallOrchestrator(services.OrchestratorConfig{
		SessionID:       domain.SessionID(*sessionID),
		InitialTier:     domain.TierHigh,
		PeerJoinTimeout: cfg.WebRTC.PeerJoinTimeout,
		SampleInterval:  cfg.Quality.SampleInterval,
		SampleWindow:    cfg.Quality.WindowSize,
		OfflineGrace:    cfg.Quality.OfflineGrace,
	}, services.OrchestratorDeps{
		Media:        services.NewMediaAcquisition(camera, log),
		ScreenSource: screen,
		Signaling:    signaling,
		Peers:        webrtcinfra.NewLinkFactory(log),
		Booking:      bookingClient,
		Classifier:   services.NewQualityClassifier(thresholds),
		Degrader: services.NewDegradationManager(
			cfg.Quality.PoorGrace,
			cfg.Quality.UpgradeWindow,
			cfg.Quality.SampleInterval,
			log,
		),
		Policy: services.NewReconnectPolicy(
			cfg.Reconnect.BaseDelay,
			cfg.Reconnect.MaxDelay,
			cfg.Reconnect.MaxAttempts,
			jitter,
		),
		Breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		Metrics: collector,
		Logger:  log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		log.Fatalw("failed to start call", "error", err)
	}

	go func() {
		for update := range orch.Updates() {
			log.Infow("call state",
				"status", update.Status,
				"tier", update.Tier,
				"attempt", update.Attempt,
				"error", update.Err,
			)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infow("shutting down", "signal", sig)
		orch.End()
		select {
		case <-orch.Done():
		case <-time.After(10 * time.Second):
			log.Warn("teardown timed out")
		}
	case <-orch.Done():
	}

	if err := orch.Err(); err != nil {
		log.Errorw("call ended with error", "error", err)
		os.Exit(1)
	}
	log.Info("call ended")
}
