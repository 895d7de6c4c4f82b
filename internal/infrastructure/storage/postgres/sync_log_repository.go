package postgres

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	syncdomain "salesmanager/internal/domain/sync"
)

// SyncLogRepository журнал вызовов синхронизации
type SyncLogRepository struct {
	db  Querier
	log *slog.Logger
}

func NewSyncLogRepository(db Querier, log *slog.Logger) *SyncLogRepository {
	return &SyncLogRepository{db: db, log: log}
}

// Append добавляет запись журнала
func (r *SyncLogRepository) Append(ctx context.Context, l *syncdomain.SyncLog) error {
	query := `
		INSERT INTO sync_logs
			(sync_type, device_id, app_version, sync_session_id, operations_count,
			 success_count, error_count, conflict_count, processing_time_ms, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		string(l.SyncType),
		nullString(l.DeviceID),
		nullString(l.AppVersion),
		l.SyncSessionID,
		l.OperationsCount,
		l.SuccessCount,
		l.ErrorCount,
		l.ConflictCount,
		l.ProcessingTimeMs,
		l.Timestamp,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}
	return nil
}
