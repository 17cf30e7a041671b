package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/akhbar-mr/akhbar-harvester/internal/app"
	"github.com/akhbar-mr/akhbar-harvester/internal/config"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print articles as JSON instead of storing them")
	flag.Parse()

	if err := run(*dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
}

func run(dryRun bool) error {
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

	if dryRun {
		articles := a.Orchestrator.Run(ctx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(articles)
	}

	summary := a.Orchestrator.Ingest(ctx)
	log.InfoObj("ingestion finished", "summary", map[string]any{
		"scraped": summary.Scraped,
		"saved":   summary.Saved,
	})
	return nil
}
