package migrations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/migrate"
	_ "modernc.org/sqlite"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
)

func testDB(t *testing.T) *bun.DB {
	t.Helper()
	// A private in-memory database pinned to a single connection so it
	// survives for the whole test.
	sqldb, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchemaOnSQLite(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if IsPostgreSQL(db) {
		t.Fatal("sqlite database must not be detected as Postgres")
	}

	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("init migrator: %v", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if group.IsZero() {
		t.Fatal("expected migrations to run")
	}

	// The resulting schema must accept the rows the repositories write,
	// including client-generated IDs with no server-side uuid default.
	user := &models.User{ID: "user-1", Email: "user@example.com", Name: "User"}
	if _, err := db.NewInsert().Model(user).Exec(ctx); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	session := &models.Session{
		ID:        "session-1",
		UserID:    user.ID,
		TokenHash: "hash-1",
		Source:    models.SessionSourceFallback,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if _, err := db.NewInsert().Model(session).Exec(ctx); err != nil {
		t.Fatalf("insert session: %v", err)
	}
}

func TestInitSchemaRollsBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("init migrator: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := migrator.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	var count int
	err := db.NewSelect().Model((*models.User)(nil)).ColumnExpr("count(*)").Scan(ctx, &count)
	if err == nil {
		t.Fatal("users table should be gone after rollback")
	}
}
