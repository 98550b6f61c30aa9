package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zredlined/frc-ai-camera/internal/config"
	"github.com/zredlined/frc-ai-camera/internal/core"
	"github.com/zredlined/frc-ai-camera/internal/recorder"
	"github.com/zredlined/frc-ai-camera/internal/web"
)

const defaultConfigPath = "config/fieldcam.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	outputDir := flag.String("output-dir", "", "Clip output directory (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("config file not found, using defaults", "path", *configPath)
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *outputDir != "" {
		cfg.Storage.OutputDir = *outputDir
	}

	slog.Info("starting fieldcam service",
		"config", *configPath,
		"listen", cfg.Server.Listen,
		"output_dir", cfg.Storage.OutputDir,
		"debug", *debug,
	)

	if err := recorder.CheckFFmpeg(); err != nil {
		// Recording finalize will fail without ffmpeg, but preview and
		// status still work; run degraded rather than refuse to start.
		slog.Warn("ffmpeg not found, clip finalize will fail", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	svc, err := core.NewService(cfg, nil)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(cfg.Server.Listen, svc)
	server.Start()

	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			slog.Error("service error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("fieldcam service stopped successfully")
}
