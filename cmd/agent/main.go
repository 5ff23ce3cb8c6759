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
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/directprint/agent/internal/api"
	"github.com/directprint/agent/internal/api/handlers"
	"github.com/directprint/agent/internal/api/middleware"
	"github.com/directprint/agent/internal/archive"
	"github.com/directprint/agent/internal/config"
	"github.com/directprint/agent/internal/core"
	"github.com/directprint/agent/internal/logging"
	"github.com/directprint/agent/internal/metrics"
	"github.com/directprint/agent/internal/winspool"
)

func main() {
	configPath := flag.String("config", "agent.yaml", "path to the config file")
	host := flag.String("host", "", "listen host (overrides config)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("agent exited")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spooler := winspool.New(logger)

	registry := core.NewRegistry(logger)
	registry.StartReaper(cfg.Spool.ReapInterval, cfg.Spool.Retention)
	defer registry.StopReaper()

	stager, err := core.NewStager(cfg.Spool.TempDir, logger)
	if err != nil {
		return err
	}
	defer stager.Close()

	dispatcher := core.NewDispatcher(registry, spooler, core.DispatcherConfig{
		Workers:      cfg.Spool.Workers,
		QueueSize:    cfg.Spool.QueueSize,
		PollInterval: cfg.Spool.PollInterval,
		JobTimeout:   cfg.Spool.JobTimeout,
	}, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	directory := core.NewDirectory(spooler)
	m := metrics.New(prometheus.DefaultRegisterer)

	var arc *archive.Archive
	if cfg.Archive.Enabled {
		arc, err = archive.Open(cfg.Archive.Path, cfg.Archive.RetentionDays, logger)
		if err != nil {
			return err
		}
		arc.StartPruner()
		defer arc.Close()
	}

	registry.OnTerminal(func(job core.PrintJob) {
		m.JobsInflight.Dec()
		if job.State == core.StateCompleted {
			m.JobsCompleted.Inc()
		} else {
			m.JobsFailed.Inc()
		}
		if arc != nil {
			if err := arc.Record(job); err != nil {
				logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to archive job")
			}
		}
	})

	auth, err := middleware.NewAuthMiddleware(cfg.Auth)
	if err != nil {
		return err
	}

	router := api.NewRouter(logger, auth,
		handlers.NewPrinterHandler(directory),
		handlers.NewJobHandler(registry, stager, directory, dispatcher, arc, m),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("serving print API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
