// Cheerboard - Real-time Challenge Notification Kiosk
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cheerboard

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cheerboard/internal/api"
	"github.com/tomtom215/cheerboard/internal/config"
	"github.com/tomtom215/cheerboard/internal/logging"
	"github.com/tomtom215/cheerboard/internal/notifier"
	"github.com/tomtom215/cheerboard/internal/supervisor"
	"github.com/tomtom215/cheerboard/internal/supervisor/services"
)

func main() {
	cfgManager, err := config.LoadManager()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg := cfgManager.Get()

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("config_file", cfgManager.Path()).
		Str("stream_url", cfg.Stream.URL).
		Str("poller_base_url", cfg.Poller.BaseURL).
		Bool("webhook_enabled", cfg.Webhook.Enabled).
		Bool("relay_enabled", cfg.Relay.Enabled).
		Msg("Starting Cheerboard")

	if cfg.Webhook.Enabled && cfg.Webhook.Secret == "" {
		logging.Warn().Msg("WEBHOOK_SECRET is not set; webhook signatures are not verified")
	}
	for _, origin := range cfg.Server.CORSOrigins {
		if origin == "*" {
			logging.Warn().Msg("CORS_ORIGINS is a wildcard; any site may open a display connection")
			break
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	pipeline, err := notifier.New(cfgManager)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create notification pipeline")
	}
	defer pipeline.Close()
	pipeline.Supervise(tree)

	router := api.NewRouter(pipeline.Handler())
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	tree.AddAPIService(services.NewConfigWatchService(cfgManager))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Cheerboard stopped")
}
