package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"
)

const systemResolver = "system"

// Resolver выдает неразрешенные конфликты и закрывает их вердиктом оператора.
// Сущности при этом не меняются
type Resolver struct {
	conflicts ConflictStore
	validate  *validator.Validate
	clock     Clock
	log       *slog.Logger
}

// NewResolver создает Resolver
func NewResolver(conflicts ConflictStore, clock Clock, log *slog.Logger) *Resolver {
	if clock == nil {
		clock = systemClock
	}
	return &Resolver{
		conflicts: conflicts,
		validate:  validator.New(),
		clock:     clock,
		log:       log.With("component", "sync_resolver"),
	}
}

// ListUnresolved конфликты без resolved_at, при userID != nil только этого пользователя
func (r *Resolver) ListUnresolved(ctx context.Context, userID *int64) ([]SyncConflict, error) {
	conflicts, err := r.conflicts.FindUnresolved(ctx, userID)
	if err != nil {
		r.log.Error("failed to list conflicts", "error", err)
		return nil, fmt.Errorf("list unresolved conflicts: %w", err)
	}
	if conflicts == nil {
		conflicts = []SyncConflict{}
	}
	return conflicts, nil
}

// Resolve переводит конфликт из Pending в Resolved. Обратного перехода нет
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*SyncConflict, error) {
	req.Strategy = ResolutionStrategy(strings.ToUpper(strings.TrimSpace(string(req.Strategy))))
	if err := r.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "ConflictID" {
			return nil, fmt.Errorf("%w: id %d", ErrConflictNotFound, req.ConflictID)
		}
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, req.Strategy)
	}
	resolvedBy := strings.TrimSpace(req.ResolvedBy)
	if resolvedBy == "" {
		resolvedBy = systemResolver
	}

	existing, err := r.conflicts.FindByID(ctx, req.ConflictID)
	if err != nil {
		return nil, err
	}
	if !existing.Pending() {
		return nil, fmt.Errorf("%w: id %d", ErrConflictAlreadyResolved, req.ConflictID)
	}

	resolved, err := r.conflicts.Resolve(ctx, req.ConflictID, req.Strategy, resolvedBy, r.clock())
	if err != nil {
		return nil, err
	}
	r.log.Info("conflict resolved", "conflict_id", resolved.ID, "strategy", resolved.ResolutionStrategy,
		"resolved_by", resolved.ResolvedBy)
	return resolved, nil
}
