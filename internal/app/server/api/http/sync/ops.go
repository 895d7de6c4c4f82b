package sync

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

var bearer = []map[string][]string{{"bearer": {}}}

func (h *Handler) batchOp() huma.Operation {
	return huma.Operation{
		OperationID:   "sync-batch",
		Method:        http.MethodPost,
		Path:          h.prefix + "/sync/batch",
		Summary:       "Пакет операций клиента",
		Description:   "Применяет до 100 операций по порядку. Ошибки и конфликты отдельных операций возвращаются в теле ответа со статусом 200",
		Tags:          []string{"sync"},
		Security:      bearer,
		Middlewares:   h.middleware,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
		DefaultStatus: http.StatusOK,
	}
}

func (h *Handler) deltaOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-delta",
		Method:      http.MethodGet,
		Path:        h.prefix + "/sync/delta",
		Summary:     "Изменения сервера после watermark",
		Description: "Возвращает сущности с updated_at > last_sync_timestamp страницами до limit",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}
}

func (h *Handler) statusOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-status",
		Method:      http.MethodGet,
		Path:        h.prefix + "/sync/status",
		Summary:     "Состояние сервера синхронизации",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) forceOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-force",
		Method:      http.MethodPost,
		Path:        h.prefix + "/sync/force",
		Summary:     "Принудительная синхронизация",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
	}
}

func (h *Handler) conflictsOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-conflicts",
		Method:      http.MethodGet,
		Path:        h.prefix + "/sync/conflicts",
		Summary:     "Неразрешенные конфликты",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}
}

func (h *Handler) resolveOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-resolve-conflict",
		Method:      http.MethodPost,
		Path:        h.prefix + "/sync/conflicts/{id}/resolve",
		Summary:     "Разрешить конфликт",
		Description: "Фиксирует вердикт оператора. Сущность не меняется",
		Tags:        []string{"sync"},
		Security:    bearer,
		Middlewares: h.middleware,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusConflict},
	}
}
