package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"salesmanager/internal/app/client/config"
	syncdomain "salesmanager/internal/domain/sync"
)

// APIError ответ сервера с неуспешным статусом
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("сервер вернул статус %d: %s", e.StatusCode, e.Body)
}

// BatchRejectedError пакет отклонен целиком (пустой или слишком большой)
type BatchRejectedError struct {
	Response *BatchResponse
}

func (e *BatchRejectedError) Error() string {
	if e.Response != nil && len(e.Response.Errors) > 0 {
		return fmt.Sprintf("пакет отклонен: %s: %s", e.Response.Errors[0].ErrorCode, e.Response.Errors[0].ErrorMessage)
	}
	return "пакет отклонен сервером"
}

// Transport клиент API синхронизации
type Transport interface {
	HealthCheck(ctx context.Context) error
	PushBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)
	PullDelta(ctx context.Context, q DeltaQuery) (*DeltaResponse, error)
	Status(ctx context.Context) (*StatusResponse, error)
	ForceSync(ctx context.Context) error
	Conflicts(ctx context.Context, userID *int64) ([]Conflict, error)
	Resolve(ctx context.Context, id int64, resolution, resolvedBy string) (*Conflict, error)
}

type httpClient struct {
	client       *http.Client
	log          *slog.Logger
	baseURL      string
	token        string
	userAgent    string
	gzipMinBytes int
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) (*httpClient, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("некорректный адрес сервера %q", cfg.ServerURL)
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	return &httpClient{
		client:       client,
		log:          log.With("component", "sync_http_client"),
		baseURL:      strings.TrimRight(cfg.ServerURL, "/") + cfg.Prefix,
		token:        cfg.Token,
		userAgent:    cfg.AppVersion,
		gzipMinBytes: cfg.GzipMinBytes,
	}, nil
}

// SetToken устанавливает токен аутентификации
func (h *httpClient) SetToken(token string) {
	h.token = token
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, "/v1/health", nil, nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

// PushBatch отправляет пакет операций. Отклоненный пакет возвращается как *BatchRejectedError
func (h *httpClient) PushBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/sync/batch", nil, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusBadRequest {
		defer resp.Body.Close()
		var rejected BatchResponse
		if err := json.NewDecoder(resp.Body).Decode(&rejected); err != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: "не удалось разобрать ответ"}
		}
		return nil, &BatchRejectedError{Response: &rejected}
	}

	var out BatchResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PullDelta запрашивает одну страницу изменений сервера
func (h *httpClient) PullDelta(ctx context.Context, q DeltaQuery) (*DeltaResponse, error) {
	params := url.Values{}
	params.Set("last_sync_timestamp", syncdomain.FormatTimestamp(q.LastSyncTimestamp))
	if len(q.EntityTypes) > 0 {
		kinds := make([]string, len(q.EntityTypes))
		for i, k := range q.EntityTypes {
			kinds[i] = string(k)
		}
		params.Set("entity_types", strings.Join(kinds, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}

	resp, err := h.doRequest(ctx, http.MethodGet, "/sync/delta", params, nil)
	if err != nil {
		return nil, err
	}

	var out DeltaResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) Status(ctx context.Context) (*StatusResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/sync/status", nil, nil)
	if err != nil {
		return nil, err
	}

	var out StatusResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) ForceSync(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodPost, "/sync/force", nil, nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

// Conflicts возвращает неразрешенные конфликты, при userID != nil только этого пользователя
func (h *httpClient) Conflicts(ctx context.Context, userID *int64) ([]Conflict, error) {
	params := url.Values{}
	if userID != nil {
		params.Set("user_id", strconv.FormatInt(*userID, 10))
	}

	resp, err := h.doRequest(ctx, http.MethodGet, "/sync/conflicts", params, nil)
	if err != nil {
		return nil, err
	}

	var out []Conflict
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *httpClient) Resolve(ctx context.Context, id int64, resolution, resolvedBy string) (*Conflict, error) {
	params := url.Values{}
	params.Set("resolution", resolution)
	if resolvedBy != "" {
		params.Set("resolved_by", resolvedBy)
	}

	resp, err := h.doRequest(ctx, http.MethodPost, fmt.Sprintf("/sync/conflicts/%d/resolve", id), params, nil)
	if err != nil {
		return nil, err
	}

	var out Conflict
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, params url.Values, body any) (*http.Response, error) {
	var (
		reqBody io.Reader
		gzipped bool
	)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		if h.gzipMinBytes > 0 && len(jsonData) >= h.gzipMinBytes {
			compressed, err := gzipBytes(jsonData)
			if err != nil {
				return nil, err
			}
			jsonData, gzipped = compressed, true
		}
		reqBody = bytes.NewReader(jsonData)
	}

	target := h.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if gzipped {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	h.log.Debug("request", "method", method, "url", target, "gzip", gzipped)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("сервер недоступен: %w", err)
	}
	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("ошибка разбора ответа: %w", err)
	}
	return nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// IsStatus проверяет, что err это ответ сервера с указанным статусом
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
