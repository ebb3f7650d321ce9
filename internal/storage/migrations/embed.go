// Package migrations applies the audit log schema to its backends.
// SQL files are embedded so the server binary carries its own schema.
package migrations

import "embed"

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
