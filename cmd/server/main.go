// Package main runs the report server: scheduled market scans, JSON report
// endpoints, Prometheus metrics, and a WebSocket feed of finished runs.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"siege-market-lab/internal/app"
	"siege-market-lab/internal/config"
	"siege-market-lab/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := app.RequireCredentials(cfg); err != nil {
		logger.Fatal(err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, cleanup, err := app.OpenStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer cleanup()

	srv := server.New(server.Options{
		Runner:       app.BuildPipeline(cfg, stores, logger),
		Addr:         cfg.Server.Addr,
		ScanInterval: cfg.ScanInterval(),
		Logger:       logger,
	})

	logger.Printf("starting with scan interval %s", cfg.ScanInterval())
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}
