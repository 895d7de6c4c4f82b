package logger

import (
	"io"
	"os"
	"strings"

	"golang.org/x/exp/slog"

	"salesmanager/internal/config"
	"salesmanager/internal/utils/logger/handlers/slogpretty"
)

// New создает логгер под окружение: local цветной, dev и prod в JSON
func New(env string) *slog.Logger {
	return NewWriter(os.Stdout, env, "")
}

// NewWithLevel как New, но уровень задается явно (LOG_LEVEL).
// Пустое или неизвестное значение оставляет уровень окружения
func NewWithLevel(env, level string) *slog.Logger {
	return NewWriter(os.Stdout, env, level)
}

// NewWriter пишет в w. Клиенту нужен stderr, чтобы не смешивать лог с выводом команд
func NewWriter(w io.Writer, env, level string) *slog.Logger {
	lvl := envLevel(env)
	if l, ok := parseLevel(level); ok {
		lvl = l
	}

	switch env {
	case config.EnvDev, config.EnvProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	default:
		return setupPrettySlog(w, lvl)
	}
}

func envLevel(env string) slog.Level {
	if env == config.EnvProd {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func setupPrettySlog(w io.Writer, lvl slog.Level) *slog.Logger {
	opts := slogpretty.Options{
		SlogOpts: &slog.HandlerOptions{Level: lvl},
	}
	return slog.New(opts.NewPrettyHandler(w))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}
