package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"salesmanager/internal/config"
	"salesmanager/internal/infrastructure/storage/memory"
)

func newServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		HTTP:    config.HTTP{Prefix: "/api"},
		Storage: config.Storage{Driver: config.DriverMemory},
		Sync: config.Sync{
			MaxBatchSize:      100,
			DefaultDeltaLimit: 100,
			MaxDeltaLimit:     1000,
			Version:           "1.0.0",
		},
	}
	if mutate != nil {
		mutate(cfg)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	srv := httptest.NewServer(New(cfg, store, NewService(cfg, store, log), log))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI_PushThenPull(t *testing.T) {
	srv := newServer(t, nil)

	resp := post(t, srv.URL+"/api/sync/batch", map[string]any{
		"device_id": "till-1",
		"operations": []map[string]any{{
			"entity_type":    "product",
			"operation_type": "create",
			"local_id":       "tmp-1",
			"entity_data":    map[string]any{"name": "Milk", "sellingPrice": "1.20", "stockQuantity": 10},
		}},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var batch struct {
		SuccessCount int `json:"success_count"`
		Results      []struct {
			LocalID  string `json:"local_id"`
			ServerID string `json:"server_id"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	assert.Equal(t, 1, batch.SuccessCount)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "tmp-1", batch.Results[0].LocalID)
	assert.Equal(t, "1", batch.Results[0].ServerID)

	pull, err := http.Get(srv.URL + "/api/sync/delta?last_sync_timestamp=2000-01-01T00:00:00.000Z")
	require.NoError(t, err)
	defer pull.Body.Close()
	require.Equal(t, http.StatusOK, pull.StatusCode)

	var delta struct {
		TotalModified    int  `json:"total_modified"`
		HasMore          bool `json:"has_more"`
		ModifiedEntities []struct {
			EntityID   string         `json:"entity_id"`
			EntityData map[string]any `json:"entity_data"`
		} `json:"modified_entities"`
	}
	require.NoError(t, json.NewDecoder(pull.Body).Decode(&delta))
	assert.Equal(t, 1, delta.TotalModified)
	assert.False(t, delta.HasMore)
	assert.Equal(t, "Milk", delta.ModifiedEntities[0].EntityData["name"])
}

func TestAPI_RejectsOversizedBatch(t *testing.T) {
	srv := newServer(t, func(c *config.Config) { c.Sync.MaxBatchSize = 2 })

	ops := make([]map[string]any, 3)
	for i := range ops {
		ops[i] = map[string]any{"entity_type": "sale", "operation_type": "create",
			"entity_data": map[string]any{"totalAmount": "1"}}
	}
	resp := post(t, srv.URL+"/api/sync/batch", map[string]any{"operations": ops}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		TotalProcessed int `json:"total_processed"`
		Errors         []struct {
			ErrorCode string `json:"error_code"`
		} `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Zero(t, body.TotalProcessed)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "BATCH_TOO_LARGE", body.Errors[0].ErrorCode)
}

func TestAPI_GzipBodyAndAuth(t *testing.T) {
	srv := newServer(t, func(c *config.Config) { c.Auth.Required = true })

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"operations":[{"entity_type":"sale","operation_type":"create","entity_data":{"totalAmount":"5.00"}}]}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/sync/batch", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, srv.URL+"/api/sync/batch", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Authorization", "Bearer device-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_HealthIsPublic(t *testing.T) {
	srv := newServer(t, func(c *config.Config) { c.Auth.Required = true })

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
