package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slog"

	"salesmanager/internal/app/client/config"
	syncdomain "salesmanager/internal/domain/sync"
)

// App клиент устройства: локальная очередь плюс API синхронизации
type App struct {
	config    *config.Config
	log       *slog.Logger
	transport Transport
	storage   Storage
	sync      *SyncService
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	httpCl, err := NewHTTPClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации HTTP клиента: %w", err)
	}

	storage, err := NewSQLiteStorage(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}

	return NewWithDeps(cfg, httpCl, storage, log), nil
}

// NewWithDeps собирает приложение из готовых зависимостей
func NewWithDeps(cfg *config.Config, transport Transport, storage Storage, log *slog.Logger) *App {
	return &App{
		config:    cfg,
		log:       log,
		transport: transport,
		storage:   storage,
		sync: NewSyncService(storage, transport, SyncConfig{
			BatchSize:  cfg.BatchSize,
			PageLimit:  cfg.PageLimit,
			MaxRetries: cfg.MaxRetries,
			DeviceID:   cfg.DeviceID,
			AppVersion: cfg.AppVersion,
		}, log),
	}
}

// RecordInput операция, введенная пользователем
type RecordInput struct {
	EntityType    string
	OperationType string
	EntityID      string
	// RefLocalID local_id операции create, если серверный ID еще неизвестен
	RefLocalID string
	Data       string
}

// Record проверяет ввод и ставит операцию в очередь
func (a *App) Record(ctx context.Context, in RecordInput) (*OutboxOp, error) {
	kind, err := syncdomain.ParseEntityType(in.EntityType)
	if err != nil {
		return nil, err
	}

	op := &OutboxOp{
		EntityType:    kind,
		OperationType: syncdomain.OperationType(strings.ToLower(strings.TrimSpace(in.OperationType))),
		EntityID:      strings.TrimSpace(in.EntityID),
		RefLocalID:    strings.TrimSpace(in.RefLocalID),
	}

	switch op.OperationType {
	case syncdomain.OperationCreate:
	case syncdomain.OperationUpdate, syncdomain.OperationDelete:
		if op.EntityID == "" && op.RefLocalID == "" {
			return nil, fmt.Errorf("для %s нужен --id или --ref", op.OperationType)
		}
	default:
		return nil, fmt.Errorf("неизвестная операция %q", in.OperationType)
	}

	if in.Data != "" {
		dec := json.NewDecoder(strings.NewReader(in.Data))
		dec.UseNumber()
		if err := dec.Decode(&op.EntityData); err != nil {
			return nil, fmt.Errorf("некорректный JSON данных: %w", err)
		}
	}
	if op.OperationType != syncdomain.OperationDelete && len(op.EntityData) == 0 {
		return nil, errors.New("данные сущности не заданы")
	}

	if err := a.storage.Enqueue(ctx, op); err != nil {
		return nil, err
	}
	a.log.Debug("operation queued", "local_id", op.LocalID, "type", op.EntityType, "op", op.OperationType)
	return op, nil
}

func (a *App) Outbox(ctx context.Context, status OutboxStatus) ([]*OutboxOp, error) {
	return a.storage.ListOutbox(ctx, status)
}

func (a *App) Push(ctx context.Context) (*PushResult, error) {
	return a.sync.Push(ctx)
}

func (a *App) Pull(ctx context.Context, kinds ...syncdomain.EntityType) (*PullResult, error) {
	return a.sync.Pull(ctx, kinds...)
}

func (a *App) Sync(ctx context.Context) (*PushResult, *PullResult, error) {
	return a.sync.Sync(ctx)
}

// LocalStatus сводка по устройству
type LocalStatus struct {
	Watermark string                        `json:"watermark"`
	Pending   int                           `json:"pending"`
	Failed    int                           `json:"failed"`
	Conflicts int                           `json:"conflicts"`
	Entities  map[syncdomain.EntityType]int `json:"entities"`
}

func (a *App) LocalStatus(ctx context.Context) (*LocalStatus, error) {
	ops, err := a.storage.ListOutbox(ctx, "")
	if err != nil {
		return nil, err
	}
	st := &LocalStatus{}
	for _, op := range ops {
		switch op.Status {
		case OutboxPending:
			st.Pending++
		case OutboxFailed:
			st.Failed++
		case OutboxConflict:
			st.Conflicts++
		}
	}

	wm, err := a.storage.Watermark(ctx)
	if err != nil {
		return nil, err
	}
	if !wm.IsZero() {
		st.Watermark = syncdomain.FormatTimestamp(wm)
	}

	st.Entities, err = a.storage.CountEntities(ctx)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (a *App) ServerStatus(ctx context.Context) (*StatusResponse, error) {
	return a.transport.Status(ctx)
}

func (a *App) CheckConnection(ctx context.Context) error {
	return a.transport.HealthCheck(ctx)
}

func (a *App) ForceSync(ctx context.Context) error {
	return a.transport.ForceSync(ctx)
}

func (a *App) Conflicts(ctx context.Context, userID *int64) ([]Conflict, error) {
	return a.transport.Conflicts(ctx, userID)
}

func (a *App) Resolve(ctx context.Context, id int64, resolution, resolvedBy string) (*Conflict, error) {
	resolution = strings.ToUpper(strings.TrimSpace(resolution))
	switch syncdomain.ResolutionStrategy(resolution) {
	case syncdomain.ResolutionServerWins, syncdomain.ResolutionClientWins,
		syncdomain.ResolutionManual, syncdomain.ResolutionMerged:
	default:
		return nil, fmt.Errorf("неизвестная стратегия %q", resolution)
	}
	return a.transport.Resolve(ctx, id, resolution, resolvedBy)
}

func (a *App) Close() error {
	return a.storage.Close()
}

type appKey struct{}

// WithApp кладет приложение в контекст команды
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// FromContext достает приложение, положенное WithApp
func FromContext(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey{}).(*App)
	if !ok || app == nil {
		return nil, errors.New("приложение не инициализировано")
	}
	return app, nil
}
