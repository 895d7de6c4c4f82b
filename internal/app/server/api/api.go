//POST /api/sync/batch                    # Пакет операций клиента
//GET  /api/sync/delta                    # Изменения сервера после watermark
//GET  /api/sync/status                   # Состояние сервера
//POST /api/sync/force                    # Принудительная синхронизация
//GET  /api/sync/conflicts                # Неразрешенные конфликты
//POST /api/sync/conflicts/{id}/resolve   # Вердикт оператора
//GET  /api/v1/health                     # Проверка живости (публичный)

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	"salesmanager/internal/app/server/api/http/health"
	"salesmanager/internal/app/server/api/http/middleware"
	"salesmanager/internal/app/server/api/http/middleware/auth"
	"salesmanager/internal/app/server/api/http/middleware/gzip"
	"salesmanager/internal/app/server/api/http/middleware/logger"
	syncAPI "salesmanager/internal/app/server/api/http/sync"
	"salesmanager/internal/config"
	syncdomain "salesmanager/internal/domain/sync"
	"salesmanager/internal/infrastructure/storage"
)

type Handlers struct {
	Health *health.Handler
	Sync   *syncAPI.Handler
}

// New создает *chi.Mux со всеми операциями через huma.Register
func New(cfg *config.Config, store storage.Storage, service syncdomain.Servicer, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(gzip.Decompress(log))
	mux.Use(chimw.Compress(5, "application/json"))

	humaConfig := huma.DefaultConfig("Sales Manager Sync API", cfg.Sync.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(cfg, store, service, log)
	h.Health.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

// NewService движок синхронизации поверх выбранного хранилища
func NewService(cfg *config.Config, store storage.Storage, log *slog.Logger) *syncdomain.Service {
	return syncdomain.NewService(store.Stores(), &syncdomain.ServiceConfig{
		MaxBatchSize:      cfg.Sync.MaxBatchSize,
		DefaultDeltaLimit: cfg.Sync.DefaultDeltaLimit,
		MaxDeltaLimit:     cfg.Sync.MaxDeltaLimit,
		Version:           cfg.Sync.Version,
	}, log)
}

func handlers(cfg *config.Config, store storage.Storage, service syncdomain.Servicer, log *slog.Logger) *Handlers {
	authMW := auth.New(cfg.Auth.Required, cfg.Auth.JWTSecret, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := health.NewHandler(store, health.Info{
		Driver:  cfg.Storage.Driver,
		Version: cfg.Sync.Version,
	}, cfg.HTTP.Prefix, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	syncHandler := syncAPI.NewHandler(service, cfg.HTTP.Prefix, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Sync:   syncHandler,
	}
}
