package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	syncdomain "salesmanager/internal/domain/sync"
)

const conflictColumns = `id, user_id, entity_type, entity_id, conflict_type, local_data, server_data,
	local_version, server_version, resolution_strategy, resolved_at, resolved_by, created_at, conflict_details`

// ConflictRepository хранилище конфликтов синхронизации
type ConflictRepository struct {
	db  Querier
	log *slog.Logger
}

// NewConflictRepository создает репозиторий конфликтов
func NewConflictRepository(db Querier, log *slog.Logger) *ConflictRepository {
	return &ConflictRepository{db: db, log: log}
}

// Save сохраняет новый конфликт
func (r *ConflictRepository) Save(ctx context.Context, c *syncdomain.SyncConflict) (*syncdomain.SyncConflict, error) {
	query := `
		INSERT INTO sync_conflicts
			(user_id, entity_type, entity_id, conflict_type, local_data, server_data,
			 local_version, server_version, created_at, conflict_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	saved := *c
	err := r.db.QueryRow(ctx, query,
		c.UserID,
		string(c.EntityType),
		c.EntityID,
		string(c.ConflictType),
		c.LocalData,
		c.ServerData,
		c.LocalVersion,
		c.ServerVersion,
		c.CreatedAt,
		c.ConflictDetails,
	).Scan(&saved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to save conflict: %w", err)
	}
	return &saved, nil
}

// FindUnresolved возвращает открытые конфликты, новые первыми
func (r *ConflictRepository) FindUnresolved(ctx context.Context, userID *int64) ([]syncdomain.SyncConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM sync_conflicts WHERE resolved_at IS NULL`
	var args []any
	if userID != nil {
		query += ` AND user_id = $1`
		args = append(args, *userID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	res := []syncdomain.SyncConflict{}
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		res = append(res, *c)
	}
	return res, rows.Err()
}

// FindByID возвращает конфликт по ID
func (r *ConflictRepository) FindByID(ctx context.Context, id int64) (*syncdomain.SyncConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM sync_conflicts WHERE id = $1`
	c, err := scanConflict(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, syncdomain.ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return c, nil
}

// Resolve закрывает открытый конфликт одним UPDATE
func (r *ConflictRepository) Resolve(ctx context.Context, id int64, strategy syncdomain.ResolutionStrategy, resolvedBy string, at time.Time) (*syncdomain.SyncConflict, error) {
	query := `
		UPDATE sync_conflicts
		SET resolution_strategy = $2, resolved_by = $3, resolved_at = $4
		WHERE id = $1 AND resolved_at IS NULL
		RETURNING ` + conflictColumns

	c, err := scanConflict(r.db.QueryRow(ctx, query, id, string(strategy), resolvedBy, at))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to resolve conflict: %w", err)
	}

	// UPDATE не затронул строк: конфликта нет или он уже закрыт
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, syncdomain.ErrConflictAlreadyResolved
}

func scanConflict(row pgx.Row) (*syncdomain.SyncConflict, error) {
	var (
		c                        syncdomain.SyncConflict
		entityType, conflictType string
		strategy, resolvedBy     *string
		resolvedAt               *time.Time
	)
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&entityType,
		&c.EntityID,
		&conflictType,
		&c.LocalData,
		&c.ServerData,
		&c.LocalVersion,
		&c.ServerVersion,
		&strategy,
		&resolvedAt,
		&resolvedBy,
		&c.CreatedAt,
		&c.ConflictDetails,
	)
	if err != nil {
		return nil, err
	}
	c.EntityType = syncdomain.EntityType(entityType)
	c.ConflictType = syncdomain.ConflictType(conflictType)
	c.ResolutionStrategy = syncdomain.ResolutionStrategy(deref(strategy))
	c.ResolvedBy = deref(resolvedBy)
	c.CreatedAt = utc(c.CreatedAt)
	if resolvedAt != nil {
		t := resolvedAt.UTC()
		c.ResolvedAt = &t
	}
	return &c, nil
}
