// Package main runs one market scan and writes the ranked report.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"siege-market-lab/internal/app"
	"siege-market-lab/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	format := flag.String("format", "markdown", "Output format: markdown, csv, json")
	output := flag.String("output", "", "Output file (default stdout)")
	targetCount := flag.Int("target", 0, "Override the candidate target count")
	flag.Parse()

	logger := log.New(os.Stderr, "[scan] ", log.LstdFlags)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := app.RequireCredentials(cfg); err != nil {
		logger.Fatal(err)
	}
	if *targetCount > 0 {
		cfg.Scan.TargetCount = *targetCount
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, cleanup, err := app.OpenStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer cleanup()

	report, err := app.BuildPipeline(cfg, stores, logger).RunMarketScan(ctx)
	if err != nil {
		logger.Fatalf("Market scan failed: %v", err)
	}

	if err := app.WriteReport(report, *format, *output); err != nil {
		logger.Fatalf("Failed to write report: %v", err)
	}
}
