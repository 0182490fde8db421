package main

// Fulfillment service entry point: HTTP API plus the background tracking poller.

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amberline/fulfillment/app"
	"github.com/amberline/fulfillment/server"
)

func main() {
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	application, err := app.New()
	if err != nil {
		fallbackLogger.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	srv, err := server.New(application.Config, application.Logger, application.Handlers)
	if err != nil {
		fallbackLogger.Error("failed to initialize server", "error", err)
		application.Close()
		os.Exit(1)
	}

	pollCtx, pollCancel := context.WithCancel(context.Background())
	defer pollCancel()
	if application.Config.TrackingPollEnabled {
		go runTrackingPoller(pollCtx, application)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			application.Logger.Error("server failed", "error", err)
			application.Close()
			os.Exit(1)
		}
		application.Close()
		return
	case <-quit:
	}

	pollCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	if err := srv.Close(ctx); err != nil {
		cancel()
		application.Logger.Error("server forced to shutdown", "error", err)
		application.Close()
		os.Exit(1)
	}
	cancel()

	application.Close()
}

func runTrackingPoller(ctx context.Context, application *app.App) {
	interval := application.Config.TrackingPollInterval
	logger := application.Logger.With("component", "tracking_poller")
	logger.Info("tracking poller started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("tracking poller stopped")
			return
		case <-ticker.C:
			if err := application.TrackingService.RefreshAll(ctx); err != nil {
				logger.Error("tracking refresh failed", "error", err)
			}
		}
	}
}
