package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) healthCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        h.prefix + "/v1/health",
		Summary:     "Проверка живости",
		Description: "Пингует хранилище движка синхронизации. Доступна без авторизации",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
		Errors:      []int{http.StatusServiceUnavailable},
	}
}
