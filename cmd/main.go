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

	"github.com/UnknownOlympus/cartograph/internal/batch"
	"github.com/UnknownOlympus/cartograph/internal/config"
	"github.com/UnknownOlympus/cartograph/internal/events"
	"github.com/UnknownOlympus/cartograph/internal/geocoding"
	"github.com/UnknownOlympus/cartograph/internal/metrics"
	"github.com/UnknownOlympus/cartograph/internal/repository"
	"github.com/UnknownOlympus/cartograph/internal/server"
	"github.com/UnknownOlympus/cartograph/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

const shutdownTimeout = 5 * time.Second

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Initialize the database connection.
	dtb, err := repository.NewDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dtb.Close()

	repo := repository.NewRepository(dtb, logger)
	creds := cfg.HereCredentials()

	// Single-item lookups are served over HTTP next to the monitoring endpoints.
	geoProvider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:   geocoding.ProviderType(cfg.ProviderType),
		APIKey: cfg.GoogleAPIKey,
		Creds:  creds,
		Endpoints: geocoding.HereEndpoints{
			Geocode:      cfg.Here.GeocodeURL,
			Reverse:      cfg.Here.ReverseURL,
			Autocomplete: cfg.Here.AutocompleteURL,
		},
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create geocoding provider: %v", err)
	}
	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.ProviderType)

	lookup, err := geocoding.NewGeoCoder(geoProvider, cfg.CacheCapacity, cfg.Country.Suggestion, logger, appMetrics)
	if err != nil {
		log.Fatalf("Failed to create geocoder: %v", err)
	}

	// Bulk geocoding runs as HERE batch jobs.
	batchClient := batch.NewClient(creds, batch.ClientConfig{
		BaseURL:       cfg.Here.BatchURL,
		PollInterval:  cfg.Batch.PollInterval,
		RetryAttempts: cfg.Batch.RetryAttempts,
		RetryDelay:    cfg.Batch.RetryDelay,
	}, logger, appMetrics)
	batchGeoCoder := batch.NewGeoCoder(batchClient, cfg.Country.Default, logger, appMetrics)

	publisher := events.NewPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	geoService := service.NewGeocodingService(logger, repo, batchGeoCoder, publisher, appMetrics, service.Options{
		BatchSize:  cfg.Batch.Size,
		Interval:   cfg.Interval,
		JobTimeout: cfg.Batch.JobTimeout,
	})

	srv := server.New(cfg.Port, reg, repo, lookup, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "Monitoring server failed", "error", err)
		}
	}()

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	go geoService.Run(ctx)

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()
	logger.Info("Shutdown signal received. Stopping application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to stop monitoring server", "error", err)
	}

	logger.Info("Application stopped gracefully.")
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
