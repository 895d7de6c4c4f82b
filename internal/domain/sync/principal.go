package sync

import "context"

// Principal аутентифицированный владелец запроса
type Principal struct {
	UserID int64
	Name   string
}

type principalKey struct{}

// WithPrincipal кладет владельца запроса в контекст
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom достает владельца запроса из контекста
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
