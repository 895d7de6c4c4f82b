package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// ConflictPriority приоритет конфликта в ответе клиенту
const ConflictPriority = "MEDIUM"

// Coordinator обрабатывает пакет операций последовательно, в порядке получения
type Coordinator struct {
	processor *Processor
	registry  *Registry
	entities  EntityStore
	logger    *SyncLogger
	validate  *validator.Validate
	maxBatch  int
	clock     Clock
	log       *slog.Logger
}

// NewCoordinator создает Coordinator
func NewCoordinator(
	processor *Processor,
	registry *Registry,
	entities EntityStore,
	logger *SyncLogger,
	maxBatch int,
	clock Clock,
	log *slog.Logger,
) *Coordinator {
	if clock == nil {
		clock = systemClock
	}
	return &Coordinator{
		processor: processor,
		registry:  registry,
		entities:  entities,
		logger:    logger,
		validate:  validator.New(),
		maxBatch:  maxBatch,
		clock:     clock,
		log:       log.With("component", "sync_batch"),
	}
}

// Process применяет пакет. Пустой или слишком большой пакет отклоняется
// до обработки операций ошибкой *BatchRejectedError
func (c *Coordinator) Process(ctx context.Context, req BatchPush) (*BatchReply, error) {
	start := time.Now()
	reply := &BatchReply{
		ServerTimestamp: c.clock(),
		SyncSessionID:   uuid.NewString(),
		Results:         []OperationResult{},
		Conflicts:       []ConflictEnvelope{},
		Errors:          []ErrorEnvelope{},
		Statistics: BatchStatistics{
			ByEntityType:    map[string]int{},
			ByOperationType: map[string]int{},
		},
	}

	if err := c.check(req); err != nil {
		reply.Errors = append(reply.Errors, ErrorEnvelope{
			ErrorCode:    err.Code,
			ErrorMessage: err.Message,
			Timestamp:    reply.ServerTimestamp,
		})
		reply.ProcessingTimeMs = time.Since(start).Milliseconds()
		err.Reply = reply
		c.log.Warn("batch rejected", "code", err.Code, "operations", len(req.Operations), "device_id", req.DeviceID)
		c.logger.Batch(ctx, req, reply)
		return nil, err
	}

	c.log.Info("batch started", "session_id", reply.SyncSessionID, "operations", len(req.Operations),
		"device_id", req.DeviceID)

	for _, op := range req.Operations {
		res := c.processor.Process(ctx, op)
		reply.Results = append(reply.Results, res)

		reply.Statistics.ByEntityType[string(op.EntityType)]++
		reply.Statistics.ByOperationType[string(op.OperationType)]++
		reply.Statistics.TotalDataSizeBytes += payloadSize(op.EntityData)

		switch res.Status {
		case StatusSuccess:
			reply.SuccessCount++
		case StatusConflict:
			reply.ConflictCount++
			reply.Conflicts = append(reply.Conflicts, c.conflictEnvelope(ctx, op, res))
		case StatusFailed:
			reply.ErrorCount++
			reply.Errors = append(reply.Errors, ErrorEnvelope{
				EntityID:      op.EntityID,
				EntityType:    op.EntityType,
				OperationType: op.OperationType,
				ErrorCode:     res.ErrorCode,
				ErrorMessage:  res.Message,
				Timestamp:     res.Timestamp,
			})
		case StatusSkipped:
			reply.SkippedCount++
		}
	}

	reply.TotalProcessed = reply.SuccessCount + reply.ErrorCount + reply.ConflictCount + reply.SkippedCount
	reply.ProcessingTimeMs = time.Since(start).Milliseconds()
	reply.Statistics.AverageProcessingTimeMs = float64(reply.ProcessingTimeMs) / float64(max(reply.TotalProcessed, 1))

	c.log.Info("batch finished", "session_id", reply.SyncSessionID, "success", reply.SuccessCount,
		"conflicts", reply.ConflictCount, "errors", reply.ErrorCount, "duration_ms", reply.ProcessingTimeMs)
	c.logger.Batch(ctx, req, reply)

	return reply, nil
}

func (c *Coordinator) check(req BatchPush) *BatchRejectedError {
	if err := c.validate.Struct(req); err != nil {
		return &BatchRejectedError{Code: CodeEmptyBatch, Message: "batch contains no operations"}
	}
	if err := c.validate.Var(len(req.Operations), fmt.Sprintf("lte=%d", c.maxBatch)); err != nil {
		return &BatchRejectedError{
			Code:    CodeBatchTooLarge,
			Message: fmt.Sprintf("batch of %d operations exceeds limit of %d", len(req.Operations), c.maxBatch),
		}
	}
	return nil
}

// conflictEnvelope пара данных клиента и текущего снимка сервера.
// Если снимок не загрузился, server_data остается пустым
func (c *Coordinator) conflictEnvelope(ctx context.Context, op Operation, res OperationResult) ConflictEnvelope {
	env := ConflictEnvelope{
		ConflictID:   strconv.FormatInt(res.ConflictID, 10),
		EntityID:     op.EntityID,
		EntityType:   op.EntityType,
		ConflictType: res.Conflict,
		LocalData:    op.EntityData,
		Priority:     ConflictPriority,
		Timestamp:    res.Timestamp,
		Message:      res.Message,
	}

	adapter, err := c.registry.Lookup(op.EntityType)
	if err != nil {
		return env
	}
	id, err := adapter.ParseID(op.EntityID)
	if err != nil {
		return env
	}
	server, err := c.entities.FindByID(ctx, op.EntityType, id)
	if err != nil {
		c.log.Warn("failed to load server snapshot for conflict", "conflict_id", res.ConflictID, "error", err)
		return env
	}
	env.ServerData = adapter.ToMap(server)
	return env
}

func payloadSize(data map[string]any) int64 {
	if data == nil {
		return 0
	}
	b, err := json.Marshal(data)
	if err != nil {
		return 0
	}
	return int64(len(b))
}
