// Package migrations holds the platform's schema: PostgreSQL for the round, order and
// referral state the service writes through, ClickHouse for the fill history and the
// per-round volume view the reports read.
package migrations

import "embed"

// PostgresFS is the round/order/referral schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS is the fill history schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
