package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Migration dialects, one directory each under migrations/.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

//go:embed migrations
var migrationFS embed.FS

// ExecFunc runs one migration script.
type ExecFunc func(ctx context.Context, statement string) error

// PoolExec adapts a pgx pool.
func PoolExec(pool *pgxpool.Pool) ExecFunc {
	return func(ctx context.Context, statement string) error {
		_, err := pool.Exec(ctx, statement)
		return err
	}
}

// DBExec adapts a database/sql handle.
func DBExec(db *sql.DB) ExecFunc {
	return func(ctx context.Context, statement string) error {
		_, err := db.ExecContext(ctx, statement)
		return err
	}
}

// MigrationFiles lists the embedded scripts for dialect in application order.
func MigrationFiles(dialect string) ([]string, error) {
	dir := path.Join("migrations", dialect)
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations for %s: %w", dialect, err)
	}

	filenames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		filenames = append(filenames, entry.Name())
	}
	sort.Strings(filenames)
	return filenames, nil
}

// RunMigrations executes the embedded SQL migrations for dialect. Every script is idempotent
// so they are simply re-applied on each start.
func RunMigrations(ctx context.Context, dialect string, exec ExecFunc, logger *zap.Logger) error {
	filenames, err := MigrationFiles(dialect)
	if err != nil {
		return err
	}

	for _, name := range filenames {
		content, err := migrationFS.ReadFile(path.Join("migrations", dialect, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		logger.Info("applying migration", zap.String("dialect", dialect), zap.String("file", name))
		if err := exec(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	logger.Info("migrations applied", zap.String("dialect", dialect), zap.Int("count", len(filenames)))
	return nil
}
