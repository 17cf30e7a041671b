package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/akhbar-mr/akhbar-harvester/internal/api"
	"github.com/akhbar-mr/akhbar-harvester/internal/app"
	"github.com/akhbar-mr/akhbar-harvester/internal/config"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
	"github.com/akhbar-mr/akhbar-harvester/internal/scheduler"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "harvester: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close resources", zap.Error(err))
		}
	}()

	sched, err := scheduler.New(cfg.CronSpec, a.Orchestrator.Ingest, 0, log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	if cfg.RunOnStartup {
		go sched.RunOnce(ctx)
	}

	server := api.NewServer(a.Store, sched, api.Options{
		CronSecret: cfg.CronSecret,
		PageSize:   cfg.QueryPageSize,
	}, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	return nil
}
