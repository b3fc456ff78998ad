package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"peerlink/internal/core/services"
	"peerlink/internal/infrastructure/middleware"
	"peerlink/internal/infrastructure/monitoring"
	"peerlink/internal/infrastructure/relay"
	"peerlink/internal/infrastructure/repositories"
	"peerlink/pkg/config"
	"peerlink/pkg/logger"
	"peerlink/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
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

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	directory := repoFactory.CreateDirectoryRepository()
	mailbox := repoFactory.CreateMailboxRepository()

	collector := monitoring.NewPrometheusCollector()
	relayService := services.NewRelayService(directory, mailbox, collector, log)

	handler := relay.NewHandler(relayService, log)
	presence := relay.NewPresenceServer(
		directory,
		collector,
		cfg.Relay.PingInterval,
		cfg.Relay.PongTimeout,
		log,
	)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewRateLimitMiddleware(cfg))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.NewAuthMiddleware(cfg))

	handler.SetupRoutes(router)
	router.GET("/ws/presence", gin.WrapF(presence.HandlePresence))

	server := &http.Server{
		Addr:         cfg.Relay.Address,
		Handler:      router,
		ReadTimeout:  cfg.Relay.ReadTimeout,
		WriteTimeout: cfg.Relay.WriteTimeout,
	}

	var metricsServer *http.Server
	if cfg.Monitoring.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Monitoring.PrometheusAddress, Handler: mux}
		go func() {
			log.Infow("metrics server listening", "address", cfg.Monitoring.PrometheusAddress)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("metrics server error", "error", err)
			}
		}()
	}

	go func() {
		log.Infow("relay listening", "address", cfg.Relay.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("relay server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorw("relay shutdown error", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Errorw("metrics server shutdown error", "error", err)
		}
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		log.Errorw("tracing shutdown error", "error", err)
	}
}
