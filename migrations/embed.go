// Package migrations embeds the SQL schema, one directory per dialect.
package migrations

import "embed"

// MySQL holds the production schema.
//
//go:embed mysql/*.sql
var MySQL embed.FS

// SQLite holds the schema used for local runs and tests.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
