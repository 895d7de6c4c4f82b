package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	syncdomain "salesmanager/internal/domain/sync"
)

// Pinger проверка доступности хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// Info сведения о сервере в ответе health
type Info struct {
	Driver  string
	Version string
}

type Handler struct {
	store      Pinger
	info       Info
	prefix     string
	log        *slog.Logger
	middleware huma.Middlewares
	now        func() time.Time
}

func NewHandler(store Pinger, info Info, prefix string, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		store:      store,
		info:       info,
		prefix:     prefix,
		log:        log.With("component", "health_handler"),
		middleware: middleware,
		now:        time.Now,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

// healthCheck 503, если хранилище не отвечает на ping
func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("storage ping failed", "driver", h.info.Driver, "error", err)
		return nil, huma.Error503ServiceUnavailable(h.info.Driver+" unavailable", err)
	}

	return &Output{
		Body: Response{
			Status:     "OK",
			Storage:    h.info.Driver,
			Version:    h.info.Version,
			ServerTime: syncdomain.FormatTimestamp(h.now()),
		},
	}, nil
}
