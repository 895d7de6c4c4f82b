package logger

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"
)

// Logger журнал запросов к API синхронизации
type Logger struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Logger {
	return &Logger{
		log: log.With(slog.String("component", "http_logger")),
	}
}

// Middleware пишет одну запись на запрос. Уровень зависит от статуса ответа:
// 4xx warn, 5xx error, остальное info
func (l *Logger) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		op := ctx.Operation()

		next(ctx)

		status := ctx.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			slog.String("request_id", middleware.GetReqID(ctx.Context())),
			slog.String("method", ctx.Method()),
			slog.String("path", ctx.URL().Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", ctx.RemoteAddr()),
		}
		if op != nil && op.OperationID != "" {
			attrs = append(attrs, slog.String("operation", op.OperationID))
		}
		if enc := ctx.Header("Content-Encoding"); enc != "" {
			attrs = append(attrs, slog.String("content_encoding", enc))
		}
		if ua := ctx.Header("User-Agent"); ua != "" {
			attrs = append(attrs, slog.String("user_agent", ua))
		}

		l.log.Log(ctx.Context(), level, "http request", attrs...)
	}
}
