// Package migrations holds the versioned PostgreSQL schema.
package migrations

import "embed"

// FS contains every migration file, embedded so the binaries need no
// migrations directory at runtime.
//
//go:embed *.sql
var FS embed.FS
