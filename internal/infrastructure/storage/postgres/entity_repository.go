package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	syncdomain "salesmanager/internal/domain/sync"
)

// EntityRepository хранилище товаров, продаж и движений склада
type EntityRepository struct {
	db  Querier
	log *slog.Logger
}

// NewEntityRepository создает репозиторий поверх пула или транзакции
func NewEntityRepository(db Querier, log *slog.Logger) *EntityRepository {
	return &EntityRepository{db: db, log: log}
}

func lookupTable(kind syncdomain.EntityType) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("no table for entity type %q", kind)
	}
	return t, nil
}

// FindByID возвращает сущность по ID
func (r *EntityRepository) FindByID(ctx context.Context, kind syncdomain.EntityType, id int64) (syncdomain.Entity, error) {
	t, err := lookupTable(kind)
	if err != nil {
		return nil, err
	}
	e, err := t.scan(r.db.QueryRow(ctx, t.findSQL(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, syncdomain.ErrEntityNotFound
		}
		return nil, fmt.Errorf("find %s %d: %w", kind, id, err)
	}
	return e, nil
}

// Save вставляет новую сущность или обновляет существующую
func (r *EntityRepository) Save(ctx context.Context, e syncdomain.Entity) (syncdomain.Entity, error) {
	t, err := lookupTable(e.Kind())
	if err != nil {
		return nil, err
	}
	values, err := t.values(e)
	if err != nil {
		return nil, err
	}

	if e.GetID() == 0 {
		var id int64
		if err := r.db.QueryRow(ctx, t.insertSQL(), values...).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert %s: %w", e.Kind(), err)
		}
		return r.FindByID(ctx, e.Kind(), id)
	}

	tag, err := r.db.Exec(ctx, t.updateSQL(), append([]any{e.GetID()}, values...)...)
	if err != nil {
		return nil, fmt.Errorf("update %s %d: %w", e.Kind(), e.GetID(), err)
	}
	if tag.RowsAffected() == 0 {
		return nil, syncdomain.ErrEntityNotFound
	}
	return r.FindByID(ctx, e.Kind(), e.GetID())
}

// DeleteByID физически удаляет сущность
func (r *EntityRepository) DeleteByID(ctx context.Context, kind syncdomain.EntityType, id int64) error {
	t, err := lookupTable(kind)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, t.deleteSQL(), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return syncdomain.ErrEntityNotFound
	}
	return nil
}

// FindUpdatedAfter выборка по ключу (updated_at, id) для дельты
func (r *EntityRepository) FindUpdatedAfter(ctx context.Context, kind syncdomain.EntityType, after syncdomain.Watermark, limit int) ([]syncdomain.Entity, error) {
	t, err := lookupTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, t.updatedAfterSQL(), after.UpdatedAt, after.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s updated after: %w", kind, err)
	}
	defer rows.Close()

	var res []syncdomain.Entity
	for rows.Next() {
		e, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", kind, err)
	}
	return res, nil
}

func (r *EntityRepository) Count(ctx context.Context, kind syncdomain.EntityType) (int64, error) {
	t, err := lookupTable(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRow(ctx, t.countSQL()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}
