package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/authguard/internal/config"
	"github.com/spec-kit/authguard/internal/domain"
)

func TestOpenSQLiteRunsMigrations(t *testing.T) {
	cfg := &config.Config{
		Store:  config.StoreConfig{Backend: config.StoreSQLite, RunMigrations: true},
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "nested", "authguard.db")},
	}
	store, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	ctx := context.Background()
	require.NoError(t, store.Principals.Create(ctx, &domain.Principal{Identity: "alice", Role: domain.RoleUser, PasswordHash: "h"}))
	got, err := store.Principals.GetByIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, got.Role)
}

func TestOpenMemoryAndUnknown(t *testing.T) {
	store, err := Open(context.Background(), &config.Config{Store: config.StoreConfig{Backend: config.StoreMemory}}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, store.Principals.Ping(context.Background()))
	store.Close()

	_, err = Open(context.Background(), &config.Config{Store: config.StoreConfig{Backend: "mongo"}}, zap.NewNop())
	assert.Error(t, err)
}
