package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	syncdomain "salesmanager/internal/domain/sync"
)

// Storage локальное хранилище устройства: очередь операций, маппинг ID, реплика и watermark
type Storage interface {
	Enqueue(ctx context.Context, op *OutboxOp) error
	Pending(ctx context.Context, limit int) ([]*OutboxOp, error)
	ListOutbox(ctx context.Context, status OutboxStatus) ([]*OutboxOp, error)
	MarkResult(ctx context.Context, op *OutboxOp) error
	MapID(ctx context.Context, kind syncdomain.EntityType, localID, serverID string) error
	ServerID(ctx context.Context, kind syncdomain.EntityType, localID string) (string, error)
	UpsertEntity(ctx context.Context, e *LocalEntity) error
	GetEntity(ctx context.Context, kind syncdomain.EntityType, id string) (*LocalEntity, error)
	CountEntities(ctx context.Context) (map[syncdomain.EntityType]int, error)
	Watermark(ctx context.Context) (time.Time, error)
	SetWatermark(ctx context.Context, t time.Time) error
	Close() error
}

var (
	ErrNotMapped      = errors.New("локальный ID еще не сопоставлен с серверным")
	ErrEntityNotFound = errors.New("сущность не найдена")
)

const watermarkKey = "last_sync_timestamp"

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db}

	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS outbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			local_id TEXT NOT NULL UNIQUE,
			entity_type TEXT NOT NULL,
			operation_type TEXT NOT NULL,
			entity_id TEXT NOT NULL DEFAULT '',
			ref_local_id TEXT NOT NULL DEFAULT '',
			entity_data TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			server_id TEXT NOT NULL DEFAULT '',
			last_error TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, seq);

		CREATE TABLE IF NOT EXISTS id_map (
			entity_type TEXT NOT NULL,
			local_id TEXT NOT NULL,
			server_id TEXT NOT NULL,
			PRIMARY KEY (entity_type, local_id)
		);

		CREATE TABLE IF NOT EXISTS entities (
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			data TEXT NOT NULL,
			last_modified TEXT NOT NULL,
			PRIMARY KEY (entity_type, entity_id)
		);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)

	return err
}

// Enqueue ставит операцию в очередь. Пустой LocalID заполняется новым UUID
func (s *SQLiteStorage) Enqueue(ctx context.Context, op *OutboxOp) error {
	if op.LocalID == "" {
		op.LocalID = uuid.NewString()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = syncdomain.Truncate(time.Now())
	}
	if op.Status == "" {
		op.Status = OutboxPending
	}

	data, err := json.Marshal(op.EntityData)
	if err != nil {
		return fmt.Errorf("ошибка сериализации данных: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (local_id, entity_type, operation_type, entity_id, ref_local_id,
		                    entity_data, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, op.LocalID, op.EntityType, op.OperationType, op.EntityID, op.RefLocalID,
		string(data), syncdomain.FormatTimestamp(op.CreatedAt), op.Status)
	if err != nil {
		return fmt.Errorf("ошибка записи операции: %w", err)
	}

	op.Seq, err = res.LastInsertId()
	return err
}

// Pending операции в порядке записи на устройстве
func (s *SQLiteStorage) Pending(ctx context.Context, limit int) ([]*OutboxOp, error) {
	return s.queryOutbox(ctx, `WHERE status = ? ORDER BY seq LIMIT ?`, OutboxPending, limit)
}

func (s *SQLiteStorage) ListOutbox(ctx context.Context, status OutboxStatus) ([]*OutboxOp, error) {
	if status == "" {
		return s.queryOutbox(ctx, `ORDER BY seq`)
	}
	return s.queryOutbox(ctx, `WHERE status = ? ORDER BY seq`, status)
}

func (s *SQLiteStorage) queryOutbox(ctx context.Context, where string, args ...any) ([]*OutboxOp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, local_id, entity_type, operation_type, entity_id, ref_local_id, entity_data,
		       created_at, attempts, status, server_id, last_error
		FROM outbox `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var ops []*OutboxOp
	for rows.Next() {
		var (
			op        OutboxOp
			data      string
			createdAt string
		)
		if err := rows.Scan(&op.Seq, &op.LocalID, &op.EntityType, &op.OperationType, &op.EntityID,
			&op.RefLocalID, &data, &createdAt, &op.Attempts, &op.Status, &op.ServerID, &op.LastError); err != nil {
			return nil, fmt.Errorf("ошибка сканирования операции: %w", err)
		}
		if err := decodeData(data, &op.EntityData); err != nil {
			return nil, fmt.Errorf("ошибка разбора данных операции %s: %w", op.LocalID, err)
		}
		op.CreatedAt, _ = syncdomain.ParseTimestamp(createdAt)
		ops = append(ops, &op)
	}

	return ops, rows.Err()
}

// MarkResult сохраняет итог отправки операции
func (s *SQLiteStorage) MarkResult(ctx context.Context, op *OutboxOp) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET status = ?, attempts = ?, server_id = ?, last_error = ?, entity_id = ?
		WHERE seq = ?
	`, op.Status, op.Attempts, op.ServerID, op.LastError, op.EntityID, op.Seq)
	if err != nil {
		return fmt.Errorf("ошибка обновления операции: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) MapID(ctx context.Context, kind syncdomain.EntityType, localID, serverID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO id_map (entity_type, local_id, server_id) VALUES (?, ?, ?)
		ON CONFLICT (entity_type, local_id) DO UPDATE SET server_id = excluded.server_id
	`, kind, localID, serverID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения маппинга: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ServerID(ctx context.Context, kind syncdomain.EntityType, localID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT server_id FROM id_map WHERE entity_type = ? AND local_id = ?`, kind, localID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotMapped
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения маппинга: %w", err)
	}
	return id, nil
}

// UpsertEntity перезаписывает локальную копию, если серверная версия не старее сохраненной
func (s *SQLiteStorage) UpsertEntity(ctx context.Context, e *LocalEntity) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сущности: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (entity_type, entity_id, data, last_modified) VALUES (?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE
		SET data = excluded.data, last_modified = excluded.last_modified
		WHERE excluded.last_modified >= entities.last_modified
	`, e.EntityType, e.EntityID, string(data), syncdomain.FormatTimestamp(e.LastModified))
	if err != nil {
		return fmt.Errorf("ошибка сохранения сущности: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetEntity(ctx context.Context, kind syncdomain.EntityType, id string) (*LocalEntity, error) {
	var (
		e            = LocalEntity{EntityType: kind, EntityID: id}
		data, lastTs string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, last_modified FROM entities WHERE entity_type = ? AND entity_id = ?`, kind, id).
		Scan(&data, &lastTs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сущности: %w", err)
	}
	if err := decodeData(data, &e.Data); err != nil {
		return nil, fmt.Errorf("ошибка разбора сущности: %w", err)
	}
	e.LastModified, _ = syncdomain.ParseTimestamp(lastTs)
	return &e, nil
}

func (s *SQLiteStorage) CountEntities(ctx context.Context) (map[syncdomain.EntityType]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета сущностей: %w", err)
	}
	defer rows.Close()

	counts := make(map[syncdomain.EntityType]int)
	for rows.Next() {
		var (
			kind syncdomain.EntityType
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// Watermark время последней успешной дельты. Нулевое время, если синхронизации не было
func (s *SQLiteStorage) Watermark(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, watermarkKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("ошибка чтения watermark: %w", err)
	}
	return syncdomain.ParseTimestamp(value)
}

func (s *SQLiteStorage) SetWatermark(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, watermarkKey, syncdomain.FormatTimestamp(t))
	if err != nil {
		return fmt.Errorf("ошибка сохранения watermark: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// decodeData сохраняет числа как json.Number, чтобы не терять точность денежных сумм
func decodeData(raw string, dst *map[string]any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}
