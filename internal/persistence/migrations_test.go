package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/authguard/internal/config"
)

func TestMigrationFiles(t *testing.T) {
	pg, err := MigrationFiles(DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_principals.sql", "0002_principals_role_check.sql"}, pg)

	lite, err := MigrationFiles(DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_principals.sql"}, lite)

	_, err = MigrationFiles("oracle")
	assert.Error(t, err)
}

func TestRunMigrationsOnSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, config.SQLiteConfig{Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, DialectSQLite, DBExec(db.DB), zap.NewNop()))
	require.NoError(t, RunMigrations(ctx, DialectSQLite, DBExec(db.DB), zap.NewNop()), "migrations are idempotent")

	var name string
	err = db.DB.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='principals'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "principals", name)
}

func TestRunMigrationsStopsOnError(t *testing.T) {
	calls := 0
	exec := func(context.Context, string) error {
		calls++
		return errors.New("boom")
	}
	err := RunMigrations(context.Background(), DialectPostgres, exec, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_create_principals.sql")
	assert.Equal(t, 1, calls)
}

func TestNewSQLiteCreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/auth.db"
	db, err := NewSQLite(context.Background(), config.SQLiteConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.DB.Ping())
}

func TestNewPostgresRequiresDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	assert.Error(t, err)
}
