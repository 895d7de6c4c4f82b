package sync

import (
	"context"
	"time"
)

// EntityStore хранилище синхронизируемых сущностей
type EntityStore interface {
	// FindByID возвращает ErrEntityNotFound, если сущности нет
	FindByID(ctx context.Context, kind EntityType, id int64) (Entity, error)
	// Save вставляет сущность с нулевым ID или обновляет существующую
	Save(ctx context.Context, e Entity) (Entity, error)
	DeleteByID(ctx context.Context, kind EntityType, id int64) error
	// FindUpdatedAfter сущности с (updated_at, id) > after в порядке (updated_at, id)
	FindUpdatedAfter(ctx context.Context, kind EntityType, after Watermark, limit int) ([]Entity, error)
	Count(ctx context.Context, kind EntityType) (int64, error)
}

// ConflictStore хранилище конфликтов
type ConflictStore interface {
	Save(ctx context.Context, c *SyncConflict) (*SyncConflict, error)
	// FindUnresolved конфликты с resolved_at = null, при userID != nil только этого пользователя
	FindUnresolved(ctx context.Context, userID *int64) ([]SyncConflict, error)
	FindByID(ctx context.Context, id int64) (*SyncConflict, error)
	// Resolve закрывает конфликт. ErrConflictAlreadyResolved, если он уже закрыт
	Resolve(ctx context.Context, id int64, strategy ResolutionStrategy, resolvedBy string, at time.Time) (*SyncConflict, error)
}

// SyncLogStore журнал вызовов синхронизации
type SyncLogStore interface {
	Append(ctx context.Context, l *SyncLog) error
}

// TxStores хранилища, привязанные к одной транзакции
type TxStores struct {
	Entities  EntityStore
	Conflicts ConflictStore
}

// Transactor выполняет fn в отдельной транзакции. Ошибка fn откатывает транзакцию
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxStores) error) error
}

// Stores набор хранилищ, необходимых движку
type Stores struct {
	Entities  EntityStore
	Conflicts ConflictStore
	Logs      SyncLogStore
	Tx        Transactor
}
