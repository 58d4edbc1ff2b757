// Package migrations embeds the service schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS

// Dir is the directory passed to the migration manager for the embedded files.
const Dir = "."
