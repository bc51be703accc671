// Package migrations embeds the SQL migration files that define the
// conversation history and vector chunk schema.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
