// Package main is the entry point for the fabrica-toolgate gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfabrica/fabrica-toolgate/internal/access"
	"github.com/openfabrica/fabrica-toolgate/internal/audit"
	"github.com/openfabrica/fabrica-toolgate/internal/catalog"
	"github.com/openfabrica/fabrica-toolgate/internal/config"
	"github.com/openfabrica/fabrica-toolgate/internal/dispatch"
	"github.com/openfabrica/fabrica-toolgate/internal/metrics"
	"github.com/openfabrica/fabrica-toolgate/internal/server"
	"github.com/openfabrica/fabrica-toolgate/internal/session"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "toolgate").Str("version", version).Logger()
	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger := log.With().Str("component", "main").Logger()
	logger.Info().Str("catalog_file", cfg.CatalogFile).Msg("starting fabrica-toolgate")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	file, err := config.LoadFile(cfg.CatalogFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog file")
	}
	tiers, err := access.NewTiers(file.TierConfigs())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid tier configuration")
	}

	var gauges *metrics.Metrics
	if cfg.MetricsEnabled {
		gauges = metrics.New()
	}

	// The catalog is assembled once, before the gateway starts listening.
	buildCtx, buildCancel := context.WithTimeout(ctx, cfg.CatalogTimeout)
	services := file.ServiceConfigs()
	cat := catalog.NewBuilder(catalog.NewSource(cfg.CatalogTimeout), log.Logger).Build(buildCtx, services)
	buildCancel()
	if cat.Len() == 0 {
		logger.Warn().Msg("catalog is empty; every backend failed or was disabled")
	}
	for _, svc := range services {
		count := 0
		for _, tool := range cat.List() {
			if tool.Service == svc.Name {
				count++
			}
		}
		gauges.SetCatalogSize(svc.Name, count)
	}

	sink := audit.Fanout{audit.NewLogger(log.Logger)}
	if cfg.NATSURL != "" {
		publisher, pubErr := audit.NewPublisher(cfg.NATSURL, cfg.NATSSubject, log.Logger)
		if pubErr != nil {
			logger.Fatal().Err(pubErr).Msg("failed to connect audit publisher")
		}
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close audit publisher")
			}
		}()
		sink = append(sink, publisher)
	}

	resolver := session.NewHTTPIdentityResolver(cfg.IdentityURL, cfg.DispatchTimeout)
	sessions := session.NewStore(resolver, log.Logger)
	defer sessions.Shutdown()

	dispatcher := dispatch.New(cfg.DispatchTimeout, sink, gauges, log.Logger)
	gateway := server.New(version, commit, buildDate, cat, tiers, sessions, dispatcher, gauges, log.Logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gateway.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Int("tools", cat.Len()).Msg("HTTP server listening")
		if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case serveErr := <-errCh:
		logger.Error().Err(serveErr).Msg("HTTP server error")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("HTTP server shutdown error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped gracefully")
}
