// Package config loads the server configuration from YAML with environment expansion.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"acdm-platform/internal/domain"
	"acdm-platform/internal/fees"
	"acdm-platform/internal/observability"
	"acdm-platform/internal/platform"
	"acdm-platform/internal/rounds"
)

// Config is the top-level server configuration.
type Config struct {
	Platform PlatformConfig          `yaml:"platform"`
	Server   ServerConfig            `yaml:"server"`
	Database DatabaseConfig          `yaml:"database"`
	Keeper   KeeperConfig            `yaml:"keeper"`
	Metrics  MetricsConfig           `yaml:"metrics"`
	Log      observability.LogConfig `yaml:"log"`
}

// PlatformConfig holds identities and economics. Coin values are in ether.
type PlatformConfig struct {
	Admin           string        `yaml:"admin"`
	Account         string        `yaml:"account"`
	Treasury        string        `yaml:"treasury"`
	RoundDuration   time.Duration `yaml:"round_duration"`
	BootstrapPrice  string        `yaml:"bootstrap_price"`
	BootstrapSupply int64         `yaml:"bootstrap_supply"`
	PriceGrowthBps  int64         `yaml:"price_growth_bps"`
	PriceIncrement  string        `yaml:"price_increment"`
	SaleRates       fees.Rates    `yaml:"sale_rates"`
	TradeRates      fees.Rates    `yaml:"trade_rates"`
	Genesis         []Genesis     `yaml:"genesis"`
}

// Genesis seeds the in-process ledgers for one account.
type Genesis struct {
	Address string `yaml:"address"`
	Coins   string `yaml:"coins"`  // ether
	Tokens  int64  `yaml:"tokens"` // whole tokens
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int           `yaml:"rate_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the stores.
type DatabaseConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	UseMemory     bool   `yaml:"use_memory"`
	Migrate       bool   `yaml:"migrate"`
}

// KeeperConfig configures the round keeper.
type KeeperConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Schedule  string `yaml:"schedule"`
	Bootstrap bool   `yaml:"bootstrap"` // start the first sale round when none exists
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr serves it on the API listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

func (c *Config) applyDefaults() {
	p := &c.Platform
	def := rounds.DefaultParams()
	if p.RoundDuration == 0 {
		p.RoundDuration = def.Duration
	}
	if p.BootstrapPrice == "" {
		p.BootstrapPrice = domain.FormatEther(def.BootstrapPrice)
	}
	if p.BootstrapSupply == 0 {
		p.BootstrapSupply = def.BootstrapSupply.Int64()
	}
	if p.PriceGrowthBps == 0 {
		p.PriceGrowthBps = def.GrowthBps
	}
	if p.PriceIncrement == "" {
		p.PriceIncrement = domain.FormatEther(def.Increment)
	}
	if p.SaleRates == (fees.Rates{}) {
		p.SaleRates = fees.SaleRates
	}
	if p.TradeRates == (fees.Rates{}) {
		p.TradeRates = fees.TradeRates
	}
	if p.Account == "" {
		p.Account = p.Admin
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 20
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Keeper.Schedule == "" {
		c.Keeper.Schedule = "@every 1m"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks addresses, amounts, DSNs and the keeper schedule.
func (c *Config) Validate() error {
	var errs []error
	for name, v := range map[string]string{
		"platform.admin":    c.Platform.Admin,
		"platform.account":  c.Platform.Account,
		"platform.treasury": c.Platform.Treasury,
	} {
		if _, err := domain.ParseAddress(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if _, err := c.Platform.Params(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Platform.SaleRates.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("platform.sale_rates: %w", err))
	}
	if err := c.Platform.TradeRates.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("platform.trade_rates: %w", err))
	}
	for i, g := range c.Platform.Genesis {
		if _, _, _, err := g.Balances(); err != nil {
			errs = append(errs, fmt.Errorf("platform.genesis[%d]: %w", i, err))
		}
	}

	if !c.Database.UseMemory {
		if c.Database.PostgresDSN == "" || c.Database.ClickHouseDSN == "" {
			errs = append(errs, errors.New("database.postgres_dsn and database.clickhouse_dsn are required unless database.use_memory is set"))
		}
		if c.Database.PostgresDSN != "" {
			if _, err := url.Parse(c.Database.PostgresDSN); err != nil {
				errs = append(errs, fmt.Errorf("database.postgres_dsn: %w", err))
			}
		}
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Keeper.Enabled {
		if _, err := cron.ParseStandard(c.Keeper.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("keeper.schedule: %w", err))
		}
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, errors.New("metrics.path must start with /"))
	}
	return errors.Join(errs...)
}

// Params converts the economics section to round parameters.
func (p PlatformConfig) Params() (rounds.Params, error) {
	price, err := domain.ParseEther(p.BootstrapPrice)
	if err != nil {
		return rounds.Params{}, fmt.Errorf("platform.bootstrap_price: %w", err)
	}
	inc, err := domain.ParseEther(p.PriceIncrement)
	if err != nil {
		return rounds.Params{}, fmt.Errorf("platform.price_increment: %w", err)
	}
	params := rounds.Params{
		Duration:        p.RoundDuration,
		BootstrapPrice:  price,
		BootstrapSupply: big.NewInt(p.BootstrapSupply),
		GrowthBps:       p.PriceGrowthBps,
		Increment:       inc,
	}
	if err := params.Validate(); err != nil {
		return rounds.Params{}, fmt.Errorf("platform: %w", err)
	}
	return params, nil
}

// PlatformConfig builds the platform construction config. The clock is left for the caller.
func (c *Config) PlatformConfig() (platform.Config, error) {
	params, err := c.Platform.Params()
	if err != nil {
		return platform.Config{}, err
	}
	return platform.Config{
		Admin:      domain.Address(c.Platform.Admin),
		Account:    domain.Address(c.Platform.Account),
		Treasury:   domain.Address(c.Platform.Treasury),
		Rounds:     params,
		SaleRates:  c.Platform.SaleRates,
		TradeRates: c.Platform.TradeRates,
	}, nil
}

// Balances parses the genesis entry into wei and token amounts.
func (g Genesis) Balances() (domain.Address, *big.Int, *big.Int, error) {
	addr, err := domain.ParseAddress(g.Address)
	if err != nil {
		return "", nil, nil, err
	}
	coins := new(big.Int)
	if g.Coins != "" {
		if coins, err = domain.ParseEther(g.Coins); err != nil {
			return "", nil, nil, err
		}
	}
	if coins.Sign() < 0 || g.Tokens < 0 {
		return "", nil, nil, errors.New("genesis balances must not be negative")
	}
	return addr, coins, big.NewInt(g.Tokens), nil
}
