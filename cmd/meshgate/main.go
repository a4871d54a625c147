package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meshgate/internal/config"
	"meshgate/internal/constants"
	"meshgate/internal/database"
	"meshgate/internal/service"
	"meshgate/internal/tracing"
	"meshgate/pkg/carrier"
	carriertypes "meshgate/pkg/carrier/types"
	"meshgate/pkg/meshcore"
	meshtypes "meshgate/pkg/meshcore/types"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("meshgate %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	// Best-effort .env loading for local development
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting meshgate")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			if level > logrus.InfoLevel {
				level = logrus.InfoLevel
			}
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Initialize OpenTelemetry tracing
	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

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
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	usage := service.NewUsageTracker(db, cfg.Gateway.DailyLimit, cfg.Gateway.HistorySize, logger)
	if err := usage.Load(ctx); err != nil {
		// Non-fatal: the bridge continues with empty in-memory state.
		logger.WithError(err).Warn("Failed to restore gateway state, starting fresh")
	}

	carrierClient := carrier.NewClientWithLogger(carriertypes.ClientConfig{
		BaseURL:    cfg.Carrier.APIBaseURL,
		AccountSID: cfg.Carrier.AccountSID,
		AuthToken:  cfg.Carrier.AuthToken,
		TimeoutSec: cfg.Carrier.TimeoutSec,
	}, logger)

	meshClient := meshcore.NewClientWithLogger(meshtypes.ClientConfig{
		APIBaseURL: cfg.MeshCore.APIBaseURL,
		TimeoutSec: cfg.MeshCore.TimeoutSec,
	}, logger)

	bridge := service.NewCommandRouter(cfg.Gateway, carrierClient, meshClient, usage, logger)

	logger.WithFields(logrus.Fields{
		"bot_name":    cfg.Gateway.BotName,
		"daily_limit": cfg.Gateway.DailyLimit,
	}).Info("Bridge initialized")

	scheduler := service.NewScheduler(usage, constants.DefaultResetCheckIntervalMin, logger)
	go scheduler.Start(ctx)

	if cfg.MeshCore.ListenerEnabled {
		listener := meshcore.NewEventListener(cfg.MeshCore.EventsURL, bridge.HandleMeshEvent, cfg.MeshCore.ReconnectDelaySec, logger)
		if err := listener.Start(ctx); err != nil {
			logger.Warnf("Failed to start mesh event listener: %v", err)
		} else {
			defer listener.Stop()
		}
	} else {
		logger.Info("Mesh event listener is disabled")
	}

	server := NewServer(cfg, bridge, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	if err := usage.Save(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Failed to persist gateway state on shutdown")
	}

	logger.Info("Server shutdown completed")
	return nil
}
