// Package main runs the attention tracking service: a WebSocket frame intake
// server and an HTTP report API, with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/attention/config"
	"github.com/aura-webinar/attention/internal/attention"
	"github.com/aura-webinar/attention/internal/detector"
	"github.com/aura-webinar/attention/internal/middleware"
	"github.com/aura-webinar/attention/internal/reports"
	"github.com/aura-webinar/attention/internal/stream"
	"github.com/aura-webinar/attention/pkg/netutil"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	httpPort, wsPort, err := resolvePorts(cfg)
	if err != nil {
		logger.Fatal("resolve ports", zap.Error(err))
	}

	var det detector.Detector
	cascade, err := detector.NewCascade(cfg.Detector.CascadePath)
	if err != nil {
		// fail-open: frames are still counted without face detection
		logger.Warn("face detection disabled", zap.Error(err))
	} else {
		det = cascade
		defer cascade.Close()
	}

	store := attention.NewStore()
	registry := stream.NewRegistry()
	processor := attention.NewProcessor(store, det, logger)

	reportSvc := reports.NewService(store, registry, det != nil, reports.PortInfo{
		HTTP:      httpPort,
		WebSocket: wsPort,
	})
	reportHandler := reports.NewHandler(reportSvc, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/", reportHandler.Health)
	router.GET("/health", reportHandler.Health)
	router.GET("/attention-report", reportHandler.AttentionReport)
	router.GET("/session/:session_id/report", reportHandler.SessionReport)
	router.POST("/reset-attention", reportHandler.ResetAttention)
	router.GET("/stats", reportHandler.Stats)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", httpPort),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	wsSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", wsPort),
		Handler: stream.ServeWS(registry, processor, store, logger, stream.Options{
			MaxMessageBytes: cfg.Stream.MaxMessageBytes,
			PingInterval:    time.Duration(cfg.Stream.PingIntervalSec) * time.Second,
			PongWait:        time.Duration(cfg.Stream.PongWaitSec) * time.Second,
		}),
	}

	go func() {
		logger.Info("report API listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("report server", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("stream server listening", zap.Int("port", wsPort))
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("stream server", zap.Error(err))
		}
	}()

	logger.Info("attention tracking service started",
		zap.Bool("face_detection", det != nil),
		zap.String("report_api", fmt.Sprintf("http://localhost:%d", httpPort)),
		zap.String("stream", fmt.Sprintf("ws://localhost:%d", wsPort)),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := wsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("stream server shutdown", zap.Error(err))
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("report server shutdown", zap.Error(err))
	}
	logger.Info("service stopped")
}

// resolvePorts fills unset ports by scanning for free ones: the report port
// from the configured base, the stream port from just above the report port.
func resolvePorts(cfg *config.Config) (httpPort, wsPort int, err error) {
	httpPort = cfg.Server.Port
	if httpPort == 0 {
		httpPort, err = netutil.FindFreePort(cfg.Server.PortScanBase, cfg.Server.PortScanAttempts)
		if err != nil {
			return 0, 0, err
		}
	}
	wsPort = cfg.Stream.Port
	if wsPort == 0 {
		wsPort, err = netutil.FindFreePort(httpPort+1, cfg.Server.PortScanAttempts)
		if err != nil {
			return 0, 0, err
		}
	}
	return httpPort, wsPort, nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
