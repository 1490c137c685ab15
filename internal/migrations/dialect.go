package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// IsPostgreSQL reports whether the database speaks the Postgres dialect.
// Migrations branch on it for DDL SQLite cannot evaluate, like the
// gen_random_uuid() column default.
func IsPostgreSQL(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}
