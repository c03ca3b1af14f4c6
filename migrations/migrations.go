// Package migrations embeds the PostgreSQL schema so the server can apply it
// at startup.
package migrations

import "embed"

// FS holds the versioned .sql files, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
