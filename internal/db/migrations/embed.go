// Package migrations holds the goose migrations of the document database
package migrations

import "embed"

// FS contains every *.sql migration, for goose.SetBaseFS
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory to pass to goose.Up when using FS
const Dir = "."
