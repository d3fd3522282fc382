// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/venuecal/internal/config"
	"github.com/codr1/venuecal/internal/datetime"
	"github.com/codr1/venuecal/internal/db"
	"github.com/codr1/venuecal/internal/metrics"
	"github.com/codr1/venuecal/internal/ratelimit"
	"github.com/codr1/venuecal/internal/scheduler"
	"github.com/codr1/venuecal/internal/slots"
)

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("No config file found, using defaults")
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogger(environment string, debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	seedPath := flag.String("seed-venues", "", "Optional YAML file of venues to upsert at startup")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.App.Environment, cfg.Features.EnableDebug)

	if err := run(cfg, *seedPath); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, seedPath string) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	clock := datetime.SystemClock()
	store := db.NewStore(database, db.StoreOptions{
		Location: loc,
		Clock:    clock,
		Logger:   &log.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if seedPath != "" {
		n, err := store.SeedVenuesFile(ctx, seedPath)
		if err != nil {
			return fmt.Errorf("seed venues: %w", err)
		}
		log.Info().Int("venues", n).Str("path", seedPath).Msg("Venues seeded")
	}

	var registry *prometheus.Registry
	if cfg.Features.EnableMetrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	// A nil registerer keeps the collectors local.
	var reg prometheus.Registerer
	if registry != nil {
		reg = registry
	}

	limiter := ratelimit.New(&ratelimit.Config{
		PerMinute: cfg.RateLimit.MutationsPerMinute,
		Burst:     cfg.RateLimit.Burst,
		Clock:     clock,
	})
	defer limiter.Close()

	sched, err := scheduler.New(scheduler.Options{Logger: &log.Logger, Location: loc})
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	if _, err := scheduler.RegisterStatusSweep(sched, store, cfg.Scheduler.StatusSweepCron, metrics.NewStore(reg)); err != nil {
		return fmt.Errorf("register status sweep: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown failed")
		}
	}()

	server := newServer(cfg, serverDeps{
		Store:    store,
		Limiter:  limiter,
		Registry: registry,
		Metrics:  metrics.NewHTTP(reg),
		Location: loc,
		Clock:    clock,
		Geometry: slots.Geometry{SlotHeight: cfg.Calendar.SlotHeight, MinHeight: cfg.Calendar.MinHeight},
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("timezone", loc.String()).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}
