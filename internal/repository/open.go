package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/authguard/internal/config"
	"github.com/spec-kit/authguard/internal/persistence"
)

// Store is an opened credential store and the function releasing it.
type Store struct {
	Principals PrincipalRepository
	Close      func()
}

// Open connects the backend selected by CREDENTIAL_STORE and applies migrations when enabled.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Store.RunMigrations {
			if err := persistence.RunMigrations(ctx, persistence.DialectPostgres, persistence.PoolExec(pg.PoolHandle()), logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return &Store{Principals: NewPostgresPrincipalRepository(pg.PoolHandle()), Close: pg.Close}, nil

	case config.StoreSQLite:
		db, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Store.RunMigrations {
			if err := persistence.RunMigrations(ctx, persistence.DialectSQLite, persistence.DBExec(db.DB), logger); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &Store{Principals: NewSQLitePrincipalRepository(db.DB), Close: db.Close}, nil

	case config.StoreMemory:
		logger.Warn("using in-memory credential store; principals are lost on restart")
		return &Store{Principals: NewMemoryPrincipalRepository(), Close: func() {}}, nil

	default:
		return nil, fmt.Errorf("unknown credential store %q", cfg.Store.Backend)
	}
}
