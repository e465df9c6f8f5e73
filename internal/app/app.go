// Package app wires configuration into a runnable pipeline. The cmd
// binaries share this assembly so transport, stores, and stage configs are
// built one way everywhere.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"siege-market-lab/internal/catalog"
	"siege-market-lab/internal/config"
	"siege-market-lab/internal/pipeline"
	"siege-market-lab/internal/rank"
	"siege-market-lab/internal/reporting"
	"siege-market-lab/internal/resolver"
	"siege-market-lab/internal/storage"
	chstore "siege-market-lab/internal/storage/clickhouse"
	pgstore "siege-market-lab/internal/storage/postgres"
	"siege-market-lab/internal/tradelog"
	"siege-market-lab/internal/ubi"
)

// Stores holds the optional persistence backends. Nil fields mean the
// backend is not configured.
type Stores struct {
	Events  storage.TradeEventStore
	Results storage.ScoredResultStore
	History storage.PriceHistoryStore
}

// OpenStores connects the backends named by the configuration. The returned
// cleanup closes whatever was opened; it is safe to call after an error.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	stores := &Stores{}
	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		stores.Events = pgstore.NewTradeEventStore(pool)
		stores.Results = pgstore.NewScoredResultStore(pool)
	}
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("connect to clickhouse: %w", err)
		}
		cleanups = append(cleanups, func() { conn.Close() })
		stores.History = chstore.NewPriceHistoryStore(conn)
	}
	return stores, cleanup, nil
}

// BuildPipeline assembles the transport, stage configs, and stores into a
// ready pipeline.
func BuildPipeline(cfg *config.Config, stores *Stores, logger *log.Logger) *pipeline.Pipeline {
	client := ubi.NewHTTPClient(
		ubi.Credentials{
			Token:     cfg.Auth.Token,
			SessionID: cfg.Auth.SessionID,
			AppID:     cfg.Auth.AppID,
		},
		ubi.WithTimeout(cfg.RequestTimeout()),
		ubi.WithLocale(cfg.Auth.Locale),
	)

	catalogCfg := catalog.DefaultConfig(cfg.SpaceID)
	catalogCfg.PageSize = cfg.Scan.PageSize
	catalogCfg.TargetCount = cfg.Scan.TargetCount
	catalogCfg.MinSellPrice = cfg.Scan.MinSellPrice
	catalogCfg.MaxSellPrice = cfg.Scan.MaxSellPrice
	catalogCfg.MinSellOrders = cfg.Scan.MinSellOrders
	catalogCfg.MinBuyOrders = cfg.Scan.MinBuyOrders
	catalogCfg.PageDelay = cfg.PageDelay()

	tradelogCfg := tradelog.DefaultConfig(cfg.SpaceID)
	tradelogCfg.PageDelay = cfg.PageDelay()

	return pipeline.New(pipeline.Options{
		Sender:   client,
		SpaceID:  cfg.SpaceID,
		Catalog:  catalogCfg,
		TradeLog: tradelogCfg,
		Resolver: resolver.Options{
			BatchSize:   cfg.Resolve.BatchSize,
			MaxAttempts: cfg.Resolve.MaxAttempts,
			BaseDelay:   cfg.BaseDelay(),
			Concurrency: cfg.Resolve.Concurrency,
			Logger:      logger,
		},
		Ranking: rank.Config{
			FeeRate:               cfg.Scoring.FeeRate,
			SpreadProfitThreshold: cfg.Scoring.SpreadProfitThreshold,
			Windows:               cfg.Windows,
		},
		EventStore:   stores.Events,
		ResultStore:  stores.Results,
		HistoryStore: stores.History,
		Logger:       logger,
	})
}

// WriteReport renders the report in the requested format to the output file,
// or stdout when output is empty.
func WriteReport(report *reporting.Report, format, output string) error {
	var out io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "markdown", "md":
		_, err := io.WriteString(out, reporting.RenderMarkdown(report))
		return err
	case "csv":
		_, err := io.WriteString(out, reporting.RenderCSV(report))
		return err
	case "json":
		return reporting.WriteJSON(out, report)
	default:
		return fmt.Errorf("unknown format %q (use markdown, csv, or json)", format)
	}
}

// RequireCredentials fails fast before any network use when the session
// credentials are absent.
func RequireCredentials(cfg *config.Config) error {
	if cfg.Auth.Token == "" || cfg.Auth.SessionID == "" {
		return fmt.Errorf("marketplace credentials missing: set %s and %s", config.EnvToken, config.EnvSessionID)
	}
	return nil
}
