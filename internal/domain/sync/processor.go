package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/exp/slog"
)

// Processor обрабатывает одну операцию в собственной транзакции
type Processor struct {
	registry *Registry
	detector Detector
	recorder *Recorder
	tx       Transactor
	clock    Clock
	log      *slog.Logger
}

// NewProcessor создает Processor
func NewProcessor(registry *Registry, tx Transactor, clock Clock, log *slog.Logger) *Processor {
	if clock == nil {
		clock = systemClock
	}
	return &Processor{
		registry: registry,
		recorder: NewRecorder(clock),
		tx:       tx,
		clock:    clock,
		log:      log.With("component", "sync_processor"),
	}
}

type outcome struct {
	status   OperationStatus
	serverID string
	message  string
	conflict *SyncConflict
}

// Process применяет операцию и возвращает ее результат. Ошибки не прерывают пакет,
// а превращаются в статус failed с кодом
func (p *Processor) Process(ctx context.Context, op Operation) (res OperationResult) {
	startedAt := p.clock()
	res = OperationResult{
		EntityID:      op.EntityID,
		LocalID:       op.LocalID,
		EntityType:    op.EntityType,
		OperationType: op.OperationType,
		Timestamp:     startedAt,
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("operation panicked", "entity_type", op.EntityType, "entity_id", op.EntityID, "panic", r)
			res.Status = StatusFailed
			res.ErrorCode = CodeInternal
			res.Message = fmt.Sprintf("internal error: %v", r)
		}
	}()

	adapter, err := p.registry.Lookup(op.EntityType)
	if err != nil {
		return p.fail(res, err)
	}

	var out outcome
	err = p.tx.WithinTx(ctx, func(ctx context.Context, tx TxStores) error {
		var err error
		switch op.OperationType {
		case OperationCreate:
			out, err = p.create(ctx, tx, adapter, op, startedAt)
		case OperationUpdate:
			out, err = p.update(ctx, tx, adapter, op, startedAt)
		case OperationDelete:
			out, err = p.delete(ctx, tx, adapter, op)
		default:
			err = opErrorf(CodeUnsupportedEntity, "unsupported operation type %q", op.OperationType)
		}
		return err
	})
	if err != nil {
		return p.fail(res, err)
	}

	res.Status = out.status
	res.ServerID = out.serverID
	res.Message = out.message
	if out.conflict != nil {
		res.ConflictID = out.conflict.ID
		res.Conflict = out.conflict.ConflictType
		res.ErrorCode = ErrorCode(out.conflict.ConflictType)
	}
	return res
}

func (p *Processor) fail(res OperationResult, err error) OperationResult {
	res.Status = StatusFailed
	res.ErrorCode = CodeOf(err)
	res.Message = err.Error()
	if res.ErrorCode == CodeInternal {
		p.log.Error("operation failed", "entity_type", res.EntityType, "entity_id", res.EntityID, "error", err)
	} else {
		p.log.Debug("operation rejected", "entity_type", res.EntityType, "entity_id", res.EntityID,
			"code", res.ErrorCode, "error", err)
	}
	return res
}

func (p *Processor) create(ctx context.Context, tx TxStores, adapter Adapter, op Operation, now time.Time) (outcome, error) {
	if op.EntityData == nil {
		return outcome{}, opErrorf(CodeInvalidPayload, "entity data is required for create")
	}
	e, err := adapter.FromMap(op.EntityData)
	if err != nil {
		return outcome{}, err
	}
	adapter.SetLastModified(e, now)

	saved, err := tx.Entities.Save(ctx, e)
	if err != nil {
		return outcome{}, fmt.Errorf("save %s: %w", op.EntityType, err)
	}
	return outcome{
		status:   StatusSuccess,
		serverID: strconv.FormatInt(saved.GetID(), 10),
		message:  "created",
	}, nil
}

func (p *Processor) update(ctx context.Context, tx TxStores, adapter Adapter, op Operation, now time.Time) (outcome, error) {
	id, err := p.targetID(adapter, op)
	if err != nil {
		return outcome{}, err
	}
	if op.EntityData == nil {
		return outcome{}, opErrorf(CodeInvalidPayload, "entity data is required for update")
	}

	existing, err := tx.Entities.FindByID(ctx, op.EntityType, id)
	if errors.Is(err, ErrEntityNotFound) {
		return outcome{}, &OpError{Code: CodeNotFound, Err: fmt.Errorf("%s %d: %w", op.EntityType, id, err)}
	}
	if err != nil {
		return outcome{}, fmt.Errorf("load %s %d: %w", op.EntityType, id, err)
	}

	det, err := p.detector.CheckUpdate(adapter.LastModified(existing), op.EntityData)
	if err != nil {
		return outcome{}, err
	}
	if det != nil {
		return p.conflict(ctx, tx, adapter, op, existing, det)
	}

	if err := adapter.ApplyMap(existing, op.EntityData); err != nil {
		return outcome{}, err
	}
	adapter.SetLastModified(existing, now)
	if _, err := tx.Entities.Save(ctx, existing); err != nil {
		return outcome{}, fmt.Errorf("save %s %d: %w", op.EntityType, id, err)
	}
	return outcome{status: StatusSuccess, serverID: strconv.FormatInt(id, 10), message: "updated"}, nil
}

func (p *Processor) delete(ctx context.Context, tx TxStores, adapter Adapter, op Operation) (outcome, error) {
	id, err := p.targetID(adapter, op)
	if err != nil {
		return outcome{}, err
	}

	existing, err := tx.Entities.FindByID(ctx, op.EntityType, id)
	if errors.Is(err, ErrEntityNotFound) {
		// повторное удаление не ошибка
		return outcome{status: StatusSuccess, serverID: op.EntityID, message: "already deleted"}, nil
	}
	if err != nil {
		return outcome{}, fmt.Errorf("load %s %d: %w", op.EntityType, id, err)
	}

	det, err := p.detector.CheckDelete(adapter.LastModified(existing), op.EntityData)
	if err != nil {
		return outcome{}, err
	}
	if det != nil {
		return p.conflict(ctx, tx, adapter, op, existing, det)
	}

	err = tx.Entities.DeleteByID(ctx, op.EntityType, id)
	if errors.Is(err, ErrEntityNotFound) {
		// строку удалили между чтением и удалением
		return outcome{status: StatusSuccess, serverID: op.EntityID, message: "already deleted"}, nil
	}
	if err != nil {
		return outcome{}, fmt.Errorf("delete %s %d: %w", op.EntityType, id, err)
	}
	return outcome{status: StatusSuccess, serverID: op.EntityID, message: "deleted"}, nil
}

func (p *Processor) conflict(
	ctx context.Context,
	tx TxStores,
	adapter Adapter,
	op Operation,
	existing Entity,
	det *Detection,
) (outcome, error) {
	c, err := p.recorder.Record(ctx, tx.Conflicts, op, adapter, existing, det)
	if err != nil {
		return outcome{}, err
	}
	p.log.Info("conflict detected", "conflict_id", c.ID, "type", c.ConflictType,
		"entity_type", op.EntityType, "entity_id", op.EntityID)
	return outcome{
		status:   StatusConflict,
		serverID: op.EntityID,
		message:  det.Details,
		conflict: c,
	}, nil
}

func (p *Processor) targetID(adapter Adapter, op Operation) (int64, error) {
	if op.EntityID == "" {
		return 0, opErrorf(CodeInvalidPayload, "entity id is required for %s", op.OperationType)
	}
	return adapter.ParseID(op.EntityID)
}
