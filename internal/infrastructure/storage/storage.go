package storage

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	"salesmanager/internal/config"
	syncdomain "salesmanager/internal/domain/sync"
	"salesmanager/internal/infrastructure/storage/memory"
	"salesmanager/internal/infrastructure/storage/postgres"
)

// Storage источник хранилищ для движка синхронизации
type Storage interface {
	Stores() syncdomain.Stores
	Ping(ctx context.Context) error
	Close() error
}

// Open выбирает реализацию по STORAGE_DRIVER
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case config.DriverPostgres, "":
		if cfg.DB.DatabaseURI == "" {
			return nil, fmt.Errorf("DATABASE_URI is required for %s storage", config.DriverPostgres)
		}
		return postgres.New(ctx, cfg.DB.DatabaseURI, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
