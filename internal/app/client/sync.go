package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	syncdomain "salesmanager/internal/domain/sync"
)

// productRefKey ссылка движения склада на товар, созданный на устройстве и еще не получивший серверный ID
const productRefKey = "product_local_id"

// SyncConfig параметры синхронизации
type SyncConfig struct {
	BatchSize  int
	PageLimit  int
	MaxRetries int
	DeviceID   string
	AppVersion string
}

// PushResult итог отправки очереди
type PushResult struct {
	Batches   int
	Sent      int
	Failed    int
	Conflicts int
	Retried   int
	Deferred  int
}

// PullResult итог получения дельты
type PullResult struct {
	Pages      int
	Downloaded int
	Watermark  time.Time
}

// SyncService отправляет очередь устройства и забирает изменения сервера
type SyncService struct {
	store     Storage
	transport Transport
	log       *slog.Logger
	config    SyncConfig
	now       func() time.Time
}

func NewSyncService(store Storage, transport Transport, cfg SyncConfig, log *slog.Logger) *SyncService {
	if cfg.BatchSize <= 0 || cfg.BatchSize > 100 {
		cfg.BatchSize = 100
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	return &SyncService{
		store:     store,
		transport: transport,
		log:       log.With("component", "client_sync"),
		config:    cfg,
		now:       time.Now,
	}
}

// Push отправляет очередь пакетами в порядке записи.
// Операция, ссылающаяся на еще не сопоставленный локальный ID, закрывает пакет:
// ее отправка откладывается до ответа на предыдущие операции
func (s *SyncService) Push(ctx context.Context) (*PushResult, error) {
	result := &PushResult{}
	deferred := make(map[int64]struct{})

	for {
		pending, err := s.store.Pending(ctx, s.config.BatchSize+len(deferred))
		if err != nil {
			return result, err
		}

		batch, ops := s.buildBatch(ctx, pending, deferred)
		if len(ops) == 0 {
			result.Deferred = len(deferred)
			return result, nil
		}

		resp, err := s.transport.PushBatch(ctx, batch)
		if err != nil {
			return result, fmt.Errorf("отправка пакета: %w", err)
		}
		result.Batches++

		if err := s.applyResults(ctx, ops, resp, result, deferred); err != nil {
			return result, err
		}
		s.log.Info("batch pushed",
			"session", resp.SyncSessionID,
			"success", resp.SuccessCount,
			"errors", resp.ErrorCount,
			"conflicts", resp.ConflictCount,
		)
	}
}

// buildBatch собирает пакет из начала очереди
func (s *SyncService) buildBatch(ctx context.Context, pending []*OutboxOp, deferred map[int64]struct{}) (BatchRequest, []*OutboxOp) {
	batch := BatchRequest{
		ClientTimestamp: syncdomain.FormatTimestamp(s.now()),
		DeviceID:        s.config.DeviceID,
		AppVersion:      s.config.AppVersion,
	}

	var ops []*OutboxOp
	for _, op := range pending {
		if _, skip := deferred[op.Seq]; skip {
			continue
		}
		if len(ops) == s.config.BatchSize {
			break
		}

		wire, err := s.resolveRefs(ctx, op)
		if errors.Is(err, ErrNotMapped) {
			// ссылка на создание из этого же пакета: отправим после ответа сервера
			if len(ops) > 0 {
				break
			}
			deferred[op.Seq] = struct{}{}
			continue
		}
		if err != nil {
			s.log.Warn("skip outbox op", "local_id", op.LocalID, "error", err)
			deferred[op.Seq] = struct{}{}
			continue
		}

		batch.Operations = append(batch.Operations, wire)
		ops = append(ops, op)
	}

	return batch, ops
}

// resolveRefs подставляет серверные ID вместо локальных
func (s *SyncService) resolveRefs(ctx context.Context, op *OutboxOp) (wireOperation, error) {
	wire := wireOperation{
		EntityType:    string(op.EntityType),
		OperationType: string(op.OperationType),
		EntityID:      op.EntityID,
		LocalID:       op.LocalID,
		EntityData:    op.EntityData,
		Timestamp:     syncdomain.FormatTimestamp(op.CreatedAt),
		RetryCount:    op.Attempts,
	}

	if wire.EntityID == "" && op.RefLocalID != "" {
		id, err := s.store.ServerID(ctx, op.EntityType, op.RefLocalID)
		if err != nil {
			return wire, err
		}
		wire.EntityID = id
		op.EntityID = id
	}

	if ref, ok := op.EntityData[productRefKey].(string); ok && ref != "" {
		id, err := s.store.ServerID(ctx, syncdomain.EntityProduct, ref)
		if err != nil {
			return wire, err
		}
		data := make(map[string]any, len(op.EntityData))
		for k, v := range op.EntityData {
			if k != productRefKey {
				data[k] = v
			}
		}
		data["productId"] = id
		wire.EntityData = data
	}

	return wire, nil
}

func (s *SyncService) applyResults(ctx context.Context, ops []*OutboxOp, resp *BatchResponse, result *PushResult, deferred map[int64]struct{}) error {
	byLocalID := make(map[string]OperationResult, len(resp.Results))
	for _, r := range resp.Results {
		byLocalID[r.LocalID] = r
	}

	for _, op := range ops {
		r, ok := byLocalID[op.LocalID]
		if !ok {
			deferred[op.Seq] = struct{}{}
			continue
		}

		op.Attempts++
		op.LastError = r.Message
		switch syncdomain.OperationStatus(r.Status) {
		case syncdomain.StatusSuccess:
			op.Status = OutboxSent
			op.LastError = ""
			op.ServerID = r.ServerID
			if op.OperationType == syncdomain.OperationCreate && r.ServerID != "" {
				if err := s.store.MapID(ctx, op.EntityType, op.LocalID, r.ServerID); err != nil {
					return err
				}
			}
			result.Sent++
		case syncdomain.StatusConflict:
			op.Status = OutboxConflict
			result.Conflicts++
		default:
			// INTERNAL повторяется до MaxRetries, остальные ошибки окончательные
			if r.ErrorCode == string(syncdomain.CodeInternal) && op.Attempts < s.config.MaxRetries {
				op.Status = OutboxPending
				result.Retried++
			} else {
				op.Status = OutboxFailed
				result.Failed++
			}
		}

		if err := s.store.MarkResult(ctx, op); err != nil {
			return err
		}
		if op.Status == OutboxPending {
			// повтор в следующем вызове Push, а не в этом
			deferred[op.Seq] = struct{}{}
		}
	}
	return nil
}

// Pull забирает изменения сервера страницами до has_more=false.
// Watermark сохраняется после каждой страницы, прерванная загрузка продолжится с него
func (s *SyncService) Pull(ctx context.Context, kinds ...syncdomain.EntityType) (*PullResult, error) {
	since, err := s.store.Watermark(ctx)
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}

	result := &PullResult{Watermark: since}
	cursor := ""
	for {
		page, err := s.transport.PullDelta(ctx, DeltaQuery{
			LastSyncTimestamp: since,
			EntityTypes:       kinds,
			Limit:             s.config.PageLimit,
			Cursor:            cursor,
		})
		if err != nil {
			return result, fmt.Errorf("получение дельты: %w", err)
		}
		result.Pages++

		for _, m := range page.ModifiedEntities {
			modified, err := syncdomain.ParseTimestamp(m.LastModified)
			if err != nil {
				return result, fmt.Errorf("сущность %s/%s: %w", m.EntityType, m.EntityID, err)
			}
			if err := s.store.UpsertEntity(ctx, &LocalEntity{
				EntityType:   syncdomain.EntityType(m.EntityType),
				EntityID:     m.EntityID,
				Data:         m.EntityData,
				LastModified: modified,
			}); err != nil {
				return result, err
			}
			result.Downloaded++
		}

		next, err := syncdomain.ParseTimestamp(page.NextSyncTimestamp)
		if err != nil {
			return result, fmt.Errorf("next_sync_timestamp: %w", err)
		}
		if err := s.store.SetWatermark(ctx, next); err != nil {
			return result, err
		}
		result.Watermark = next

		if !page.HasMore || page.NextCursor == "" {
			return result, nil
		}
		cursor = page.NextCursor
	}
}

// Sync отправляет очередь, затем забирает изменения
func (s *SyncService) Sync(ctx context.Context) (*PushResult, *PullResult, error) {
	pushed, err := s.Push(ctx)
	if err != nil {
		return pushed, nil, err
	}
	pulled, err := s.Pull(ctx)
	return pushed, pulled, err
}
