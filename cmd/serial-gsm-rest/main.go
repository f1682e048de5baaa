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

	"github.com/sirupsen/logrus"

	"github.com/telaak/serial-gsm-rest/internal/config"
	"github.com/telaak/serial-gsm-rest/internal/constants"
	"github.com/telaak/serial-gsm-rest/internal/database"
	"github.com/telaak/serial-gsm-rest/internal/gsm"
	"github.com/telaak/serial-gsm-rest/internal/service"
	"github.com/telaak/serial-gsm-rest/internal/tracing"
	"github.com/telaak/serial-gsm-rest/internal/ws"
	"github.com/telaak/serial-gsm-rest/pkg/modem"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"

	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("serial-gsm-rest %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	logger.WithFields(logrus.Fields{
		"version": Version,
		"commit":  GitCommit,
		"device":  cfg.Serial.Device,
	}).Info("Starting serial-gsm-rest")

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open message store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close message store: %v", err)
		}
	}()

	driver := modem.NewClient(modem.SerialDialer{
		PortName: cfg.Serial.Device,
		BaudRate: cfg.Serial.BaudRate,
	}, logger)

	gateway := gsm.NewGateway(driver, logger)
	if err := gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start modem gateway: %w", err)
	}
	defer gateway.Stop()

	hub := ws.NewHub(logger)
	defer hub.Shutdown()

	pipeline := service.NewPipeline(gateway, db, hub, logger)
	if err := pipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ingestion pipeline: %w", err)
	}
	defer pipeline.Stop()

	server := NewServer(gateway, db, hub.Handler(), logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Graceful shutdown failed: %v", err)
	}
	return nil
}
