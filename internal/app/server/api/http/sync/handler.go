package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	syncdomain "salesmanager/internal/domain/sync"
)

type Handler struct {
	service    syncdomain.Servicer
	prefix     string
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service syncdomain.Servicer, prefix string, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		prefix:     prefix,
		log:        log.With("component", "sync_handler"),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.batchOp(), h.batch)
	huma.Register(api, h.deltaOp(), h.delta)
	huma.Register(api, h.statusOp(), h.status)
	huma.Register(api, h.forceOp(), h.force)
	huma.Register(api, h.conflictsOp(), h.conflicts)
	huma.Register(api, h.resolveOp(), h.resolve)
}

// rejectedError тело 400 для отклоненного пакета: тот же формат, что и у обычного ответа
type rejectedError struct {
	BatchResponse
	message string
}

func (e *rejectedError) Error() string {
	return e.message
}

func (e *rejectedError) GetStatus() int {
	return http.StatusBadRequest
}

func (h *Handler) batch(ctx context.Context, input *batchInput) (*batchOutput, error) {
	push, err := toBatchPush(input.Body)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error(), err)
	}

	reply, err := h.service.ProcessBatch(ctx, push)
	if err != nil {
		var rejected *syncdomain.BatchRejectedError
		if errors.As(err, &rejected) && rejected.Reply != nil {
			return nil, &rejectedError{BatchResponse: toBatchResponse(rejected.Reply), message: rejected.Error()}
		}
		h.log.Error("batch failed", "error", err)
		return nil, huma.Error500InternalServerError("batch processing failed", err)
	}

	return &batchOutput{Body: toBatchResponse(reply)}, nil
}

func (h *Handler) delta(ctx context.Context, input *deltaInput) (*deltaOutput, error) {
	req, err := toDeltaRequest(input)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error(), err)
	}

	reply, err := h.service.ProcessDelta(ctx, req)
	if err != nil {
		if errors.Is(err, syncdomain.ErrInvalidTimestamp) || errors.Is(err, syncdomain.ErrInvalidCursor) {
			return nil, huma.Error400BadRequest(err.Error(), err)
		}
		h.log.Error("delta failed", "error", err)
		return nil, huma.Error500InternalServerError("delta failed", err)
	}

	return &deltaOutput{Body: toDeltaResponse(reply)}, nil
}

func (h *Handler) status(ctx context.Context, _ *statusInput) (*statusOutput, error) {
	st, err := h.service.Status(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("status unavailable", err)
	}

	return &statusOutput{Body: StatusResponse{
		ServerTime:   syncdomain.FormatTimestamp(st.ServerTime),
		Status:       st.Status,
		Version:      st.Version,
		EntityCounts: st.EntityCounts,
	}}, nil
}

func (h *Handler) force(ctx context.Context, _ *forceInput) (*forceOutput, error) {
	if err := h.service.ForceSync(ctx); err != nil {
		return nil, huma.Error500InternalServerError("force sync failed", err)
	}
	return &forceOutput{Body: MessageResponse{Status: "ok", Message: "sync triggered"}}, nil
}

func (h *Handler) conflicts(ctx context.Context, input *conflictsInput) (*conflictsOutput, error) {
	userID, err := parseUserID(input.UserID)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error(), err)
	}

	list, err := h.service.ListConflicts(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("list conflicts failed", err)
	}

	out := &conflictsOutput{Body: make([]ConflictResponse, 0, len(list))}
	for _, c := range list {
		out.Body = append(out.Body, toConflictResponse(c))
	}
	return out, nil
}

func (h *Handler) resolve(ctx context.Context, input *resolveInput) (*resolveOutput, error) {
	resolvedBy := input.ResolvedBy
	if resolvedBy == "" {
		if p, ok := syncdomain.PrincipalFrom(ctx); ok {
			resolvedBy = p.Name
		}
	}

	c, err := h.service.ResolveConflict(ctx, syncdomain.ResolveRequest{
		ConflictID: input.ID,
		Strategy:   syncdomain.ResolutionStrategy(input.Resolution),
		ResolvedBy: resolvedBy,
	})
	switch {
	case err == nil:
	case errors.Is(err, syncdomain.ErrConflictNotFound):
		return nil, huma.Error404NotFound(fmt.Sprintf("conflict %d not found", input.ID))
	case errors.Is(err, syncdomain.ErrConflictAlreadyResolved):
		return nil, huma.Error409Conflict(fmt.Sprintf("conflict %d already resolved", input.ID))
	case errors.Is(err, syncdomain.ErrInvalidStrategy):
		return nil, huma.Error400BadRequest(err.Error(), err)
	default:
		h.log.Error("resolve failed", "conflict_id", input.ID, "error", err)
		return nil, huma.Error500InternalServerError("resolve failed", err)
	}

	return &resolveOutput{Body: toConflictResponse(*c)}, nil
}
