// Package main runs a single rank batch from the command line.
//
// Intended for operators and cron-style scheduling outside the API server's
// built-in ticker, e.g. after a bulk import.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/okplace/listrank/internal/completeness"
	"github.com/okplace/listrank/internal/config"
	"github.com/okplace/listrank/internal/counters"
	"github.com/okplace/listrank/internal/db"
	"github.com/okplace/listrank/internal/ledger"
	"github.com/okplace/listrank/internal/middleware"
	"github.com/okplace/listrank/internal/overall"
	"github.com/okplace/listrank/internal/property"
	"github.com/okplace/listrank/internal/rank"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	reconcile := flag.Bool("reconcile", false, "resync ledger completeness scores before ranking")
	flag.Parse()

	if *help {
		fmt.Println("Listrank Batch Runner")
		fmt.Println()
		fmt.Println("Usage: rankbatch [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.BatchTimeout)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	registry := property.NewPostgresRepository(database, logger)
	ledgerStore := ledger.NewPostgresStore(database, logger)
	counterStore := counters.NewPostgresStore(database, logger)
	rankStore := rank.NewPostgresStore(database, logger)

	traffic := counters.NewAggregator(counterStore, logger)
	calculator := overall.NewCalculator(ledgerStore, traffic, rankStore, logger)
	assignor := rank.NewAssignor(registry, calculator, rankStore, rank.AssignorConfig{
		Logger:        logger,
		GatherWorkers: cfg.GatherWorkers,
	})

	if *reconcile {
		source := completeness.NewPostgresAttributeSource(database)
		reconciler := completeness.NewReconciler(
			completeness.DefaultChecklist(), source, registry, ledgerStore, logger)
		reconciled, failed, err := reconciler.ReconcileAll(ctx)
		if err != nil {
			logger.Error("reconcile pass failed", "error", err)
			os.Exit(1)
		}
		logger.Info("reconcile pass completed", "reconciled", reconciled, "failed", failed)
	}

	report, err := assignor.RunBatch(ctx)
	if err != nil {
		logger.Error("rank batch failed", "error", err)
		os.Exit(1)
	}

	logger.Info("rank batch completed",
		"run_id", report.RunID,
		"ranked", report.RankedCount,
		"active", report.ActiveCount,
		"zero", report.ZeroCount,
		"duration_seconds", report.Duration.Seconds())
}
