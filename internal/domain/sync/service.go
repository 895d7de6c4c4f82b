package sync

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"
)

// Servicer операции движка синхронизации, доступные HTTP слою
type Servicer interface {
	ProcessBatch(ctx context.Context, req BatchPush) (*BatchReply, error)
	ProcessDelta(ctx context.Context, req DeltaRequest) (*DeltaReply, error)
	Status(ctx context.Context) (*StatusReply, error)
	ForceSync(ctx context.Context) error
	ListConflicts(ctx context.Context, userID *int64) ([]SyncConflict, error)
	ResolveConflict(ctx context.Context, req ResolveRequest) (*SyncConflict, error)
}

// Service движок синхронизации
type Service struct {
	coordinator *Coordinator
	delta       *DeltaProducer
	resolver    *Resolver
	registry    *Registry
	entities    EntityStore
	cfg         *ServiceConfig
	clock       Clock
	log         *slog.Logger
}

// Option настройка Service
type Option func(*options)

type options struct {
	clock    Clock
	registry *Registry
}

// WithClock подменяет источник серверного времени
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRegistry подменяет набор адаптеров
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// NewService собирает движок из хранилищ
func NewService(stores Stores, cfg *ServiceConfig, log *slog.Logger, opts ...Option) *Service {
	o := options{clock: systemClock, registry: DefaultRegistry()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}

	logger := NewSyncLogger(stores.Logs, o.clock, log)
	processor := NewProcessor(o.registry, stores.Tx, o.clock, log)

	return &Service{
		coordinator: NewCoordinator(processor, o.registry, stores.Entities, logger, cfg.MaxBatchSize, o.clock, log),
		delta: NewDeltaProducer(o.registry, stores.Entities, logger,
			cfg.DefaultDeltaLimit, cfg.MaxDeltaLimit, o.clock, log),
		resolver: NewResolver(stores.Conflicts, o.clock, log),
		registry: o.registry,
		entities: stores.Entities,
		cfg:      cfg,
		clock:    o.clock,
		log:      log.With("component", "sync_service"),
	}
}

// ProcessBatch применяет пакет операций клиента
func (s *Service) ProcessBatch(ctx context.Context, req BatchPush) (*BatchReply, error) {
	return s.coordinator.Process(ctx, req)
}

// ProcessDelta выдает страницу изменений сервера
func (s *Service) ProcessDelta(ctx context.Context, req DeltaRequest) (*DeltaReply, error) {
	return s.delta.Produce(ctx, req)
}

// Status время сервера и количество сущностей каждого типа
func (s *Service) Status(ctx context.Context) (*StatusReply, error) {
	counts := make(map[string]int64, len(s.registry.Kinds()))
	for _, kind := range s.registry.Kinds() {
		n, err := s.entities.Count(ctx, kind)
		if err != nil {
			s.log.Error("failed to count entities", "entity_type", kind, "error", err)
			return nil, fmt.Errorf("count %s: %w", kind, err)
		}
		counts[string(kind)] = n
	}
	return &StatusReply{
		ServerTime:   s.clock(),
		Status:       "active",
		Version:      s.cfg.Version,
		EntityCounts: counts,
	}, nil
}

// ForceSync точка расширения для оператора, сейчас ничего не делает
func (s *Service) ForceSync(ctx context.Context) error {
	s.log.Info("force sync requested")
	return nil
}

// ListConflicts неразрешенные конфликты
func (s *Service) ListConflicts(ctx context.Context, userID *int64) ([]SyncConflict, error) {
	return s.resolver.ListUnresolved(ctx, userID)
}

// ResolveConflict закрывает конфликт
func (s *Service) ResolveConflict(ctx context.Context, req ResolveRequest) (*SyncConflict, error) {
	return s.resolver.Resolve(ctx, req)
}
