// Package main runs the ACDM platform server:
// - HTTP API and event stream over a single in-process platform
// - write-through persistence to PostgreSQL and ClickHouse (or memory)
// - optional keeper that advances elapsed rounds on a cron schedule
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"acdm-platform/internal/api"
	"acdm-platform/internal/config"
	"acdm-platform/internal/keeper"
	"acdm-platform/internal/ledger"
	"acdm-platform/internal/observability"
	"acdm-platform/internal/platform"
	"acdm-platform/internal/service"
	chstore "acdm-platform/internal/storage/clickhouse"
	"acdm-platform/internal/storage/memory"
	"acdm-platform/internal/storage/migrations"
	pgstore "acdm-platform/internal/storage/postgres"
	"acdm-platform/internal/verification"
)

func main() {
	// Load .env file if exists
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", os.Getenv("ACDM_CONFIG"), "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations on startup")
	metricsAddr := flag.String("metrics-addr", "", "Separate Prometheus metrics address (empty serves on the API listener)")
	noKeeper := flag.Bool("no-keeper", false, "Disable the round keeper")
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	// Flags override the file
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *postgresDSN != "" {
		cfg.Database.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Database.ClickHouseDSN = *clickhouseDSN
	}
	if *useMemory {
		cfg.Database.UseMemory = true
	}
	if *migrate {
		cfg.Database.Migrate = true
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *noKeeper {
		cfg.Keeper.Enabled = false
	}
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log := observability.Component(logger, "server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg.Database, logger)
	if err != nil {
		log.WithError(err).Fatal("failed to create stores")
	}
	defer cleanup()

	hub := api.NewHub(nil, observability.DefaultMetrics, logger)
	svc, err := newService(cfg, stores, hub, logger)
	if err != nil {
		log.WithError(err).Fatal("failed to build platform")
	}

	var limiter *api.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = api.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, logger)
		limiter.StartCleanup(time.Minute, ctx.Done())
	}

	metricsPath := cfg.Metrics.Path
	if cfg.Metrics.Addr != "" {
		metricsPath = ""
	}
	verifier := verification.NewVerifier(svc, stores.Rounds, stores.Orders, stores.Referrals)
	handler := api.NewHandler(api.Options{
		Service:     svc,
		Hub:         hub,
		RateLimiter: limiter,
		Verifier:    verifier,
		MetricsPath: metricsPath,
		Logger:      logger,
	})

	servers := []*http.Server{{Addr: cfg.Server.Addr, Handler: handler}}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, observability.Handler())
		servers = append(servers, &http.Server{Addr: cfg.Metrics.Addr, Handler: mux})
	}

	var k *keeper.Keeper
	if cfg.Keeper.Enabled {
		k, err = keeper.New(keeper.Options{
			Rounds:    svc,
			Admin:     svc.Platform().Config().Admin,
			Schedule:  cfg.Keeper.Schedule,
			Bootstrap: cfg.Keeper.Bootstrap,
			Logger:    logger,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to create keeper")
		}
		k.Start()
		log.WithField("schedule", cfg.Keeper.Schedule).Info("keeper started")
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Infof("received signal %v, initiating graceful shutdown", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			log.Warnf("received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(cfg.Server.ShutdownTimeout + 5*time.Second):
			log.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			log.WithField("addr", srv.Addr).Info("starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.WithError(err).Error("server failed")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if k != nil {
		if err := k.Stop(shutdownCtx); err != nil {
			log.WithError(err).Warn("keeper did not stop in time")
		}
	}
	hub.Close()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warnf("shutdown %s", srv.Addr)
		}
	}
	if report, err := verifier.VerifyAll(shutdownCtx); err != nil {
		log.WithError(err).Warn("final store verification failed")
	} else if !report.Match() {
		for _, d := range report.Divergences {
			log.WithFields(logrus.Fields{
				"entity": d.Entity,
				"key":    d.Key,
				"field":  d.Field,
				"live":   d.Expected,
				"stored": d.Actual,
			}).Warn("store diverges from live state")
		}
	}
	close(done)

	stats := svc.Stats()
	log.WithFields(logrus.Fields{
		"committed":    stats.Committed,
		"rejected":     stats.Rejected,
		"store_errors": stats.StoreErrors,
	}).Info("shutdown complete")
}

// newService builds the ledgers and platform from config and wraps them in a service.
func newService(cfg *config.Config, stores service.Stores, pub service.Publisher, logger *logrus.Logger) (*service.Service, error) {
	pcfg, err := cfg.PlatformConfig()
	if err != nil {
		return nil, err
	}

	token := ledger.NewToken("ACADEM Coin", "ACDM", 6)
	token.GrantRole(ledger.RoleMinter, pcfg.Account)
	token.GrantRole(ledger.RoleBurner, pcfg.Account)
	bank := ledger.NewBank()

	for _, g := range cfg.Platform.Genesis {
		addr, coins, tokens, err := g.Balances()
		if err != nil {
			return nil, fmt.Errorf("genesis %s: %w", g.Address, err)
		}
		if coins.Sign() > 0 {
			if err := bank.Deposit(addr, coins); err != nil {
				return nil, fmt.Errorf("genesis deposit %s: %w", addr, err)
			}
		}
		if tokens.Sign() > 0 {
			if err := token.Mint(pcfg.Account, addr, tokens); err != nil {
				return nil, fmt.Errorf("genesis mint %s: %w", addr, err)
			}
		}
	}

	p, err := platform.New(pcfg, token, bank)
	if err != nil {
		return nil, err
	}
	return service.New(service.Options{
		Platform:  p,
		Token:     token,
		Coins:     bank,
		Stores:    stores,
		Metrics:   observability.DefaultMetrics,
		Publisher: pub,
		Logger:    logger,
	}), nil
}

// createStores opens the write-through stores. The cleanup func closes connections.
func createStores(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Logger) (service.Stores, func(), error) {
	log := observability.Component(logger, "storage")
	if cfg.UseMemory {
		log.Info("using in-memory stores")
		return service.Stores{
			Rounds:    memory.NewRoundStore(),
			Orders:    memory.NewOrderStore(),
			Referrals: memory.NewReferralStore(),
			Fills:     memory.NewFillStore(),
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return service.Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return service.Stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		log.Info("postgres migrations applied")
	}

	// ClickHouse
	var chConn *chstore.Conn
	if cfg.Migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
	}
	if err != nil {
		pool.Close()
		return service.Stores{}, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := service.Stores{
		Rounds:    pgstore.NewRoundStore(pool),
		Orders:    pgstore.NewOrderStore(pool),
		Referrals: pgstore.NewReferralStore(pool),
		Fills:     chstore.NewFillStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}
