// Package main generates the platform report (REPORT.md, rounds.csv, fills.csv)
// from the persisted rounds, orders, referrals and fills.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"acdm-platform/internal/config"
	"acdm-platform/internal/domain"
	"acdm-platform/internal/observability"
	"acdm-platform/internal/reporting"
	"acdm-platform/internal/storage"
	chstore "acdm-platform/internal/storage/clickhouse"
	pgstore "acdm-platform/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", os.Getenv("ACDM_CONFIG"), "Path to YAML config file (DSNs and log settings)")
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall timeout")
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *postgresDSN != "" {
		cfg.Database.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Database.ClickHouseDSN = *clickhouseDSN
	}
	if cfg.Database.PostgresDSN == "" || cfg.Database.ClickHouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn and --clickhouse-dsn (or a config file) are required")
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := observability.Component(logger, "report")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("connect to postgres")
	}
	defer pool.Close()

	chConn, err := chstore.NewConn(ctx, cfg.Database.ClickHouseDSN)
	if err != nil {
		log.WithError(err).Fatal("connect to clickhouse")
	}
	defer chConn.Close()

	var (
		roundStore    storage.RoundStore    = pgstore.NewRoundStore(pool)
		orderStore    storage.OrderStore    = pgstore.NewOrderStore(pool)
		referralStore storage.ReferralStore = pgstore.NewReferralStore(pool)
		fillStore     storage.FillStore     = chstore.NewFillStore(chConn)
	)

	start := time.Now()
	report, err := reporting.NewGenerator(roundStore, fillStore, referralStore, orderStore).Generate(ctx)
	if err != nil {
		log.WithError(err).Fatal("generate report")
	}

	fills, err := fillStore.GetByTimeRange(ctx, 0, time.Now().UnixMilli())
	if err != nil {
		log.WithError(err).Fatal("load fills")
	}

	written, err := reporting.WriteFiles(*outputDir, report, fills)
	if err != nil {
		log.WithError(err).Fatal("write report")
	}
	for _, path := range written {
		log.WithField("path", path).Info("written")
	}

	s := report.Summary
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Infof(
		"%d sale / %d trade rounds, %d tokens sold, %s ETH traded",
		s.SaleRounds, s.TradeRounds, s.TokensSold, domain.FormatEther(s.TradeVolume))

	if len(report.IntegrityErrors) > 0 {
		for _, e := range report.IntegrityErrors {
			log.Warn(e)
		}
		os.Exit(2)
	}
}
