package migrations

import "embed"

// FS contains embedded SQLite migrations for compare storage.
//
//go:embed *.sql
var FS embed.FS
