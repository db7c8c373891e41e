package migrations

import (
	"embed"
	"io/fs"
)

// Files exposes the embedded schema files for both families. SQLite paths
// are read directly (sqlite/001_init.sql); Postgres files are applied
// lexicographically from the subtree returned by Postgres.
//
//go:embed postgres/*.sql sqlite/*.sql
var Files embed.FS

// Postgres returns the v2 schema files rooted at the postgres directory.
func Postgres() (fs.FS, error) {
	return fs.Sub(Files, "postgres")
}
