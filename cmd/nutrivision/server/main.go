package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutrivision"
	"nutrivision/server"
	"nutrivision/setup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := setup.LoadConfig()
	if err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	tracerProvider, meterProvider, otelShutdown, err := nutrivision.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	var logger nutrivision.TurnLogger = nutrivision.NewNoOpTurnLogger()
	if cfg.Assistant.TurnLogPath != "" {
		lineLogger, cleanup, err := setup.LineTurnLogger(cfg.Assistant.TurnLogPath, cfg.Model.ModelID)
		if err != nil {
			slog.Error("SETUP: Failed to create turn logger", "error", err)
			return
		}
		defer func() {
			if err := cleanup(); err != nil {
				slog.Error("SETUP: Failed to close turn log", "error", err)
			}
		}()
		logger = lineLogger
	}

	app, err := setup.Build(ctx, cfg, tracerProvider, meterProvider, logger)
	if err != nil {
		slog.Error("SETUP: Failed to build assistant", "error", err)
		return
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("SETUP: Failed to close chat store", "error", err)
		}
	}()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.NewRouter(server.Options{
			Assistant:           app.Responder,
			Store:               app.Store,
			Recognizer:          app.Recognizer,
			AllowedOrigins:      cfg.Server.AllowedOrigins,
			MaxImageBytes:       cfg.Server.MaxImageMB << 20,
			ConfidenceThreshold: cfg.Assistant.ConfidenceThreshold,
			Tracer:              tracerProvider.Tracer(nutrivision.TracerNameServer),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("SERVER: Listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("SERVER: Listen failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("SERVER: Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("SERVER: Graceful shutdown failed", "error", err)
	}
}
