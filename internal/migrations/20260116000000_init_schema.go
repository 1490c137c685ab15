package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260116000000, down_20260116000000)
}

// up_20260116000000 creates the identity tables (users, sessions)
func up_20260116000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`)
	if err != nil {
		return fmt.Errorf("failed to create index on users.email: %w", err)
	}
	// IDs are generated client-side; on Postgres a server-side default covers
	// rows inserted outside the application. SQLite has no uuid function.
	if IsPostgreSQL(db) {
		_, err = db.Exec(`ALTER TABLE users ALTER COLUMN id SET DEFAULT gen_random_uuid()`)
		if err != nil {
			return fmt.Errorf("failed to set uuid default on users.id: %w", err)
		}
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating sessions table...")
	_, err = db.NewCreateTable().
		Model((*models.Session)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	// token_hash is the hot auth lookup path; expires_at drives renewal scans.
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_token_hash ON sessions(token_hash)`)
	if err != nil {
		return fmt.Errorf("failed to create index on sessions.token_hash: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create index on sessions.expires_at: %w", err)
	}
	if IsPostgreSQL(db) {
		_, err = db.Exec(`ALTER TABLE sessions ALTER COLUMN id SET DEFAULT gen_random_uuid()`)
		if err != nil {
			return fmt.Errorf("failed to set uuid default on sessions.id: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}

// down_20260116000000 drops the identity tables
func down_20260116000000(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewDropTable().Model((*models.Session)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop sessions table: %w", err)
	}
	if _, err := db.NewDropTable().Model((*models.User)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop users table: %w", err)
	}
	return nil
}
