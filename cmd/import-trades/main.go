// Package main imports trade history pasted from the marketplace web page.
// The page blocks are parsed into trade events and appended to the stored
// trade log; duplicate blocks are skipped, so re-importing overlapping
// pastes is safe.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"siege-market-lab/internal/app"
	"siege-market-lab/internal/config"
	"siege-market-lab/internal/domain"
	"siege-market-lab/internal/storage"
	"siege-market-lab/internal/tradeparse"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	input := flag.String("input", "", "File with pasted trade history (default stdin)")
	dryRun := flag.Bool("dry-run", false, "Parse and report without writing to storage")
	flag.Parse()

	logger := log.New(os.Stderr, "[import-trades] ", log.LstdFlags)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	raw, err := readInput(*input)
	if err != nil {
		logger.Fatalf("Failed to read input: %v", err)
	}

	blocks, err := tradeparse.Parse(raw, logger)
	if err != nil {
		logger.Fatalf("Failed to parse trade history: %v", err)
	}
	logger.Printf("parsed %d trade events", len(blocks))

	if *dryRun {
		events := make([]domain.TradeEvent, len(blocks))
		for i, b := range blocks {
			events[i] = b.Event
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(events); err != nil {
			logger.Fatalf("Failed to encode events: %v", err)
		}
		return
	}
	if cfg.Storage.PostgresDSN == "" {
		logger.Fatal("storage.postgres_dsn is required to import (or use -dry-run)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, cleanup, err := app.OpenStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer cleanup()

	var inserted, skipped int
	for _, b := range blocks {
		ev := b.Event
		err := stores.Events.Insert(ctx, &ev)
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, storage.ErrDuplicateKey):
			skipped++
		default:
			logger.Fatalf("Failed to insert event %s: %v", ev.EventID, err)
		}
	}
	logger.Printf("imported %d events, %d duplicates skipped", inserted, skipped)
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
