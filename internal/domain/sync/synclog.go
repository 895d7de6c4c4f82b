package sync

import (
	"context"

	"golang.org/x/exp/slog"
)

// SyncLogger пишет одну запись аудита на каждый вызов batch или delta.
// Ошибки журнала не влияют на ответ клиенту
type SyncLogger struct {
	store SyncLogStore
	clock Clock
	log   *slog.Logger
}

// NewSyncLogger создает SyncLogger
func NewSyncLogger(store SyncLogStore, clock Clock, log *slog.Logger) *SyncLogger {
	if clock == nil {
		clock = systemClock
	}
	return &SyncLogger{
		store: store,
		clock: clock,
		log:   log.With("component", "sync_logger"),
	}
}

// Batch журналирует обработанный или отклоненный пакет
func (l *SyncLogger) Batch(ctx context.Context, req BatchPush, reply *BatchReply) {
	l.append(ctx, &SyncLog{
		SyncType:         SyncTypeBatch,
		DeviceID:         req.DeviceID,
		AppVersion:       req.AppVersion,
		SyncSessionID:    reply.SyncSessionID,
		OperationsCount:  len(req.Operations),
		SuccessCount:     reply.SuccessCount,
		ErrorCount:       reply.ErrorCount,
		ConflictCount:    reply.ConflictCount,
		ProcessingTimeMs: reply.ProcessingTimeMs,
	})
}

// Delta журналирует выдачу страницы изменений
func (l *SyncLogger) Delta(ctx context.Context, req DeltaRequest, reply *DeltaReply, processingTimeMs int64) {
	l.append(ctx, &SyncLog{
		SyncType:         SyncTypeDelta,
		DeviceID:         req.DeviceID,
		AppVersion:       req.AppVersion,
		SyncSessionID:    reply.SyncSessionID,
		OperationsCount:  reply.TotalModified,
		SuccessCount:     reply.TotalModified,
		ProcessingTimeMs: processingTimeMs,
	})
}

func (l *SyncLogger) append(ctx context.Context, rec *SyncLog) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Warn("sync log panicked", "sync_type", rec.SyncType, "panic", r)
		}
	}()
	if l.store == nil {
		return
	}
	rec.Timestamp = l.clock()
	// запись журнала не должна теряться из-за отмены запроса клиентом
	if err := l.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		l.log.Warn("failed to append sync log", "sync_type", rec.SyncType,
			"session_id", rec.SyncSessionID, "error", err)
	}
}
