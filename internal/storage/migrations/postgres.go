package migrations

import (
	"context"
	"fmt"
	"strings"

	"acdm-platform/internal/storage/postgres"
)

// RunPostgresMigrations creates the rounds, orders and referrals tables.
// Each file is sent as one Exec and must be safe to re-run on every server start.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := migrationFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, file := range files {
		sql, err := readMigration(PostgresFS, "postgres", file)
		if err != nil {
			return err
		}
		if strings.TrimSpace(sql) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}
