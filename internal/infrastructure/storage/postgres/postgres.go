package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	syncdomain "salesmanager/internal/domain/sync"
)

// Querier общий набор методов пула и транзакции
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool пул соединений. Реализуется *pgxpool.Pool и pgxmock
type PgxPool interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Storage хранилище движка синхронизации в PostgreSQL
type Storage struct {
	pool PgxPool
	log  *slog.Logger
}

// New открывает пул соединений и проверяет доступность базы
func New(ctx context.Context, dsn string, log *slog.Logger) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewWithPool(pool, log), nil
}

// NewWithPool создает хранилище поверх готового пула
func NewWithPool(pool PgxPool, log *slog.Logger) *Storage {
	return &Storage{
		pool: pool,
		log:  log.With("component", "postgres_storage"),
	}
}

// Stores набор хранилищ для движка синхронизации
func (s *Storage) Stores() syncdomain.Stores {
	return syncdomain.Stores{
		Entities:  NewEntityRepository(s.pool, s.log),
		Conflicts: NewConflictRepository(s.pool, s.log),
		Logs:      NewSyncLogRepository(s.pool, s.log),
		Tx:        s,
	}
}

// WithinTx выполняет fn в транзакции: commit при успехе, rollback при ошибке или панике
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx syncdomain.TxStores) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.log.Warn("rollback failed", "error", rbErr)
			}
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = fmt.Errorf("commit tx: %w", e)
		}
	}()

	return fn(ctx, syncdomain.TxStores{
		Entities:  NewEntityRepository(tx, s.log),
		Conflicts: NewConflictRepository(tx, s.log),
	})
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}
