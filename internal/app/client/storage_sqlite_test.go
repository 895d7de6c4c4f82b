package client

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncdomain "salesmanager/internal/domain/sync"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStorage_Outbox(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	first := &OutboxOp{
		EntityType:    syncdomain.EntityProduct,
		OperationType: syncdomain.OperationCreate,
		EntityData:    map[string]any{"name": "Кофе", "sellingPrice": json.Number("19.99")},
	}
	require.NoError(t, s.Enqueue(ctx, first))
	assert.NotEmpty(t, first.LocalID)
	assert.Equal(t, OutboxPending, first.Status)

	second := &OutboxOp{
		EntityType:    syncdomain.EntityProduct,
		OperationType: syncdomain.OperationDelete,
		EntityID:      "7",
	}
	require.NoError(t, s.Enqueue(ctx, second))

	pending, err := s.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.LocalID, pending[0].LocalID)
	assert.Equal(t, json.Number("19.99"), pending[0].EntityData["sellingPrice"])
	assert.Equal(t, "7", pending[1].EntityID)

	pending[0].Status = OutboxSent
	pending[0].ServerID = "42"
	pending[0].Attempts = 1
	require.NoError(t, s.MarkResult(ctx, pending[0]))

	pending, err = s.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.LocalID, pending[0].LocalID)

	sent, err := s.ListOutbox(ctx, OutboxSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "42", sent[0].ServerID)
	assert.Equal(t, 1, sent[0].Attempts)

	all, err := s.ListOutbox(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStorage_IDMap(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.ServerID(ctx, syncdomain.EntityProduct, "local-1")
	assert.ErrorIs(t, err, ErrNotMapped)

	require.NoError(t, s.MapID(ctx, syncdomain.EntityProduct, "local-1", "10"))
	require.NoError(t, s.MapID(ctx, syncdomain.EntityProduct, "local-1", "11"))

	id, err := s.ServerID(ctx, syncdomain.EntityProduct, "local-1")
	require.NoError(t, err)
	assert.Equal(t, "11", id)

	_, err = s.ServerID(ctx, syncdomain.EntitySale, "local-1")
	assert.ErrorIs(t, err, ErrNotMapped)
}

func TestSQLiteStorage_UpsertEntityKeepsNewer(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	newer := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	require.NoError(t, s.UpsertEntity(ctx, &LocalEntity{
		EntityType: syncdomain.EntityProduct, EntityID: "1",
		Data: map[string]any{"name": "new"}, LastModified: newer,
	}))
	require.NoError(t, s.UpsertEntity(ctx, &LocalEntity{
		EntityType: syncdomain.EntityProduct, EntityID: "1",
		Data: map[string]any{"name": "old"}, LastModified: older,
	}))

	e, err := s.GetEntity(ctx, syncdomain.EntityProduct, "1")
	require.NoError(t, err)
	assert.Equal(t, "new", e.Data["name"])
	assert.True(t, newer.Equal(e.LastModified))

	_, err = s.GetEntity(ctx, syncdomain.EntitySale, "1")
	assert.ErrorIs(t, err, ErrEntityNotFound)

	counts, err := s.CountEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[syncdomain.EntityType]int{syncdomain.EntityProduct: 1}, counts)
}

func TestSQLiteStorage_Watermark(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	wm, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.True(t, wm.IsZero())

	ts := time.Date(2024, 3, 1, 12, 30, 0, 123_000_000, time.UTC)
	require.NoError(t, s.SetWatermark(ctx, ts))
	require.NoError(t, s.SetWatermark(ctx, ts.Add(time.Second)))

	wm, err = s.Watermark(ctx)
	require.NoError(t, err)
	assert.True(t, ts.Add(time.Second).Equal(wm))
}
