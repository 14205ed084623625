package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docparse/internal/api"
	"github.com/dgallion1/docparse/internal/config"
	"github.com/dgallion1/docparse/internal/extract"
	"github.com/dgallion1/docparse/internal/pipeline"
	"github.com/dgallion1/docparse/internal/splitter"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the extraction client.
	client := extract.NewClient(cfg.EndpointHost, cfg.ExtractAPIKey, cfg.RateLimitRPS)

	// Initialize the pipeline.
	scheduler := pipeline.NewScheduler(client, pipeline.Options{
		BatchSize:  cfg.BatchSize,
		MaxWorkers: cfg.MaxWorkers,
		Split:      splitter.Config{MaxPages: cfg.SplitSize},
		Policy: pipeline.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseWait:   cfg.BaseRetryWait,
			MaxWait:    cfg.MaxRetryWait,
		},
		PerAttemptTimeout: cfg.PerAttemptTimeout,
		RetryLogStyle:     pipeline.RetryLogStyle(cfg.RetryLogStyle),
		Stats:             client.Stats,
	}, log)

	orch := pipeline.NewOrchestrator(scheduler, splitter.Config{MaxPages: cfg.SplitSize},
		cfg.WorkerCount, cfg.MaxQueueSize, cfg.JobTTL, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, client, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting requests before draining the job queue, so no
		// handler submits into a stopped orchestrator.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		client.Close()
	}()

	log.Info("starting docparse", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
