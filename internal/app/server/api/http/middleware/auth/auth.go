package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/exp/slog"

	syncdomain "salesmanager/internal/domain/sync"
)

const bearerPrefix = "Bearer "

// Claims полезная нагрузка токена. user_id приоритетнее sub
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

type Auth struct {
	required bool
	secret   []byte
	log      *slog.Logger
}

// New создает middleware авторизации. При пустом secret содержимое токена не проверяется
func New(required bool, secret string, log *slog.Logger) *Auth {
	a := &Auth{
		required: required,
		log:      log.With("component", "auth_middleware"),
	}
	if secret != "" {
		a.secret = []byte(secret)
	}
	return a
}

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context))
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		header := ctx.Header("Authorization")

		if header == "" {
			if a.required {
				a.unauthorized(ctx, "authorization header is required")
				return
			}
			next(ctx)
			return
		}

		if !strings.HasPrefix(header, bearerPrefix) {
			a.log.Warn("wrong authorization scheme", "path", ctx.URL().Path)
			a.unauthorized(ctx, "bearer token expected")
			return
		}

		if a.secret == nil {
			next(ctx)
			return
		}

		p, err := a.principal(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			a.log.Warn("token rejected", "error", err)
			a.unauthorized(ctx, "invalid token")
			return
		}

		next(huma.WithContext(ctx, syncdomain.WithPrincipal(ctx.Context(), p)))
	}
}

func (a *Auth) principal(token string) (syncdomain.Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return syncdomain.Principal{}, fmt.Errorf("parse token: %w", err)
	}

	p := syncdomain.Principal{UserID: claims.UserID, Name: claims.Name}
	if p.UserID == 0 && claims.Subject != "" {
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return syncdomain.Principal{}, fmt.Errorf("bad subject %q", claims.Subject)
		}
		p.UserID = id
	}
	if p.Name == "" {
		p.Name = claims.Subject
	}
	return p, nil
}

func (a *Auth) unauthorized(ctx huma.Context, msg string) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusUnauthorized)
	if err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
		"error":   "Unauthorized",
		"message": msg,
	}); err != nil {
		a.log.Error("failed to write response", "error", err)
	}
}
