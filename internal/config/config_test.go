package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acdm-platform/internal/domain/domaintest"
	"acdm-platform/internal/fees"
)

var (
	admin    = domaintest.Address(1)
	treasury = domaintest.Address(2)
	alice    = domaintest.Address(3)
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAndValidate_Defaults(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`
platform:
  admin: %s
  treasury: %s
database:
  use_memory: true
`, admin, treasury))

	cfg, err := LoadAndValidate(path)
	require.NoError(t, err)

	assert.Equal(t, string(admin), cfg.Platform.Account, "account defaults to admin")
	assert.Equal(t, 72*time.Hour, cfg.Platform.RoundDuration)
	assert.Equal(t, fees.SaleRates, cfg.Platform.SaleRates)
	assert.Equal(t, fees.TradeRates, cfg.Platform.TradeRates)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	pc, err := cfg.PlatformConfig()
	require.NoError(t, err)
	assert.Equal(t, "10000000000000", pc.Rounds.BootstrapPrice.String())
	assert.Equal(t, "4000000000000", pc.Rounds.Increment.String())
	assert.Equal(t, int64(100000), pc.Rounds.BootstrapSupply.Int64())
	assert.Equal(t, int64(10300), pc.Rounds.GrowthBps)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("ACDM_TREASURY", string(treasury))
	t.Setenv("ACDM_PG", "postgres://u:p@localhost:5432/acdm")
	path := writeConfig(t, fmt.Sprintf(`
platform:
  admin: %s
  treasury: ${ACDM_TREASURY}
  round_duration: 1h
  bootstrap_price: "0.001"
  genesis:
    - address: %s
      coins: "2.5"
      tokens: 10
database:
  postgres_dsn: ${ACDM_PG}
  clickhouse_dsn: clickhouse://localhost:9000/acdm
keeper:
  enabled: true
  schedule: "*/5 * * * *"
log:
  format: json
`, admin, alice))

	cfg, err := LoadAndValidate(path)
	require.NoError(t, err)
	assert.Equal(t, string(treasury), cfg.Platform.Treasury)
	assert.Equal(t, "postgres://u:p@localhost:5432/acdm", cfg.Database.PostgresDSN)
	assert.Equal(t, time.Hour, cfg.Platform.RoundDuration)

	addr, coins, tokens, err := cfg.Platform.Genesis[0].Balances()
	require.NoError(t, err)
	assert.Equal(t, alice, addr)
	assert.Equal(t, "2500000000000000000", coins.String())
	assert.Equal(t, int64(10), tokens.Int64())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "bad admin",
			body: fmt.Sprintf("platform:\n  admin: nope\n  treasury: %s\ndatabase:\n  use_memory: true\n", treasury),
			want: "platform.admin",
		},
		{
			name: "missing dsn",
			body: fmt.Sprintf("platform:\n  admin: %s\n  treasury: %s\n", admin, treasury),
			want: "postgres_dsn",
		},
		{
			name: "bad keeper schedule",
			body: fmt.Sprintf("platform:\n  admin: %s\n  treasury: %s\ndatabase:\n  use_memory: true\nkeeper:\n  enabled: true\n  schedule: never\n", admin, treasury),
			want: "keeper.schedule",
		},
		{
			name: "rates too high",
			body: fmt.Sprintf("platform:\n  admin: %s\n  treasury: %s\n  sale_rates:\n    level1_bps: 9000\n    level2_bps: 2000\ndatabase:\n  use_memory: true\n", admin, treasury),
			want: "platform.sale_rates",
		},
		{
			name: "bad price",
			body: fmt.Sprintf("platform:\n  admin: %s\n  treasury: %s\n  bootstrap_price: cheap\ndatabase:\n  use_memory: true\n", admin, treasury),
			want: "platform.bootstrap_price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAndValidate(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ACDM_TEST_ONLY=from-file\n"), 0o600))
	t.Setenv("ACDM_TEST_ONLY", "")
	require.NoError(t, os.Unsetenv("ACDM_TEST_ONLY"))

	require.NoError(t, LoadEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("ACDM_TEST_ONLY"))
}
