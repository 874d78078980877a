package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"extraction-api/internal/config"
	"extraction-api/internal/extraction"
	"extraction-api/internal/job"
	"extraction-api/internal/metrics"
	"extraction-api/internal/platform/sqlite"
	jobrepo "extraction-api/internal/repository/job"
	resultrepo "extraction-api/internal/repository/result"
	"extraction-api/internal/server"
	"extraction-api/internal/source/mockapi"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	// Root context: cancelled on SIGINT/SIGTERM so workers and in-flight
	// requests wind down during graceful shutdown.
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open database
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Repositories
	jobRepo := jobrepo.NewRepository(db.DB)
	resultRepo := resultrepo.NewRepository(db.DB)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	// Remote source client and extraction pipeline
	client := mockapi.New()
	fetcher := extraction.NewFetcher(client,
		extraction.WithPageSize(cfg.PageSize),
		extraction.WithMaxPages(cfg.MaxPages),
		extraction.WithPageDelay(time.Duration(cfg.PageDelayMs)*time.Millisecond),
	)

	// Services
	jobSvc := job.NewService(jobRepo)
	scanSvc := extraction.NewService(jobRepo, resultRepo, fetcher, m)

	// Worker pool: picks up pending extraction jobs in the background.
	pool := job.NewWorkerPool(jobRepo, scanSvc, cfg.Workers)
	scanSvc.SetNotify(pool.Notify)

	// Jobs stranded in_progress by a crash can never finish (their
	// credentials lived in the old process), so fail them up front.
	if err := jobSvc.FailInterruptedJobs(rootCtx); err != nil {
		slog.Error("failed to clean up interrupted jobs", "error", err)
	}

	srv := server.New(rootCtx, cfg.Port, server.Deps{
		ScanSvc:  scanSvc,
		JobSvc:   jobSvc,
		DB:       db.DB,
		Gatherer: reg,
	})

	g, gCtx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		pool.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("server started", "port", cfg.Port, "workers", cfg.Workers)

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
