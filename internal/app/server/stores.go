package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/platform/config"
	"hrpay/internal/platform/db"
)

type auditBackend interface {
	audit.Logger
	audit.Reader
}

// backends is what a store driver provides to the rest of the app.
type backends struct {
	payroll payroll.Repository
	audit   auditBackend
	ping    func(ctx context.Context) error
	close   func()
}

func openBackends(ctx context.Context, cfg config.Config, log *zap.Logger) (backends, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return backends{}, fmt.Errorf("db connect: %w", err)
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				pool.Close()
				return backends{}, fmt.Errorf("migrations: %w", err)
			}
		}
		log.Info("using postgres store")
		return backends{
			payroll: payroll.NewStore(pool),
			audit:   audit.NewStore(pool),
			ping:    pool.Ping,
			close:   pool.Close,
		}, nil

	case config.StoreSQLite:
		gdb, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return backends{}, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return backends{}, fmt.Errorf("sqlite handle: %w", err)
		}
		repo, err := payroll.NewGormStore(gdb)
		if err != nil {
			_ = sqlDB.Close()
			return backends{}, fmt.Errorf("migrate payroll tables: %w", err)
		}
		events, err := audit.NewGormStore(gdb)
		if err != nil {
			_ = sqlDB.Close()
			return backends{}, fmt.Errorf("migrate audit table: %w", err)
		}
		log.Info("using sqlite store", zap.String("path", cfg.SQLitePath))
		return backends{
			payroll: repo,
			audit:   events,
			ping:    sqlDB.PingContext,
			close:   func() { _ = sqlDB.Close() },
		}, nil

	default:
		log.Warn("using in-memory store, data is lost on restart")
		return backends{
			payroll: payroll.NewMemoryStore(),
			audit:   audit.NewMemory(),
			ping:    func(context.Context) error { return nil },
			close:   func() {},
		}, nil
	}
}
