package sync_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncdomain "salesmanager/internal/domain/sync"
)

func (e *engine) seedSale(t *testing.T, id int64, at time.Time) {
	t.Helper()
	_, err := e.store.Save(context.Background(), &syncdomain.Sale{
		ID:          id,
		TotalAmount: decimal.RequireFromString("10.50"),
		FinalAmount: decimal.RequireFromString("10.50"),
		Status:      "COMPLETED",
		CreatedAt:   at,
		UpdatedAt:   at,
	})
	require.NoError(t, err)
}

func (e *engine) seedMovement(t *testing.T, id int64, at time.Time) {
	t.Helper()
	_, err := e.store.Save(context.Background(), &syncdomain.StockMovement{
		ID:           id,
		ProductID:    1,
		Quantity:     decimal.NewFromInt(2),
		MovementType: "IN",
		CreatedAt:    at,
		UpdatedAt:    at,
	})
	require.NoError(t, err)
}

func ids(reply *syncdomain.DeltaReply) []string {
	res := make([]string, 0, len(reply.ModifiedEntities))
	for _, m := range reply.ModifiedEntities {
		res = append(res, string(m.EntityType)+":"+m.EntityID)
	}
	return res
}

func TestProcessDelta_Windowing(t *testing.T) {
	e := newEngine(t)
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 150; i++ {
		e.seedProduct(t, i, "P", at)
	}

	first, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
		LastSyncTimestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Limit:             100,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, first.TotalModified)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextCursor)
	assert.Empty(t, first.DeletedEntities)
	assert.False(t, first.NextSyncTimestamp.After(at), "watermark never passes included entities")
	assert.True(t, first.NextSyncTimestamp.Before(at), "watermark steps back when the next entity shares it")

	second, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
		LastSyncTimestamp: first.NextSyncTimestamp,
		Cursor:            first.NextCursor,
		Limit:             100,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, second.TotalModified)
	assert.False(t, second.HasMore)
	assert.Empty(t, second.NextCursor)
	assert.Equal(t, e.clock.Now(), second.NextSyncTimestamp)

	seen := map[string]bool{}
	for _, id := range append(ids(first), ids(second)...) {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 150)
}

func TestProcessDelta_WindowingWithoutCursor(t *testing.T) {
	e := newEngine(t)
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 150; i++ {
		e.seedProduct(t, i, "P", at)
	}
	ctx := context.Background()

	first, err := e.svc.ProcessDelta(ctx, syncdomain.DeltaRequest{
		LastSyncTimestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Limit:             100,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, first.TotalModified)
	assert.True(t, first.HasMore)

	// клиент без курсора: остаток миллисекунды приходит целиком, повторы допустимы
	second, err := e.svc.ProcessDelta(ctx, syncdomain.DeltaRequest{
		LastSyncTimestamp: first.NextSyncTimestamp,
		Limit:             100,
	})
	require.NoError(t, err)
	assert.False(t, second.HasMore)
	assert.Equal(t, e.clock.Now(), second.NextSyncTimestamp)
	got := ids(second)
	for i := 101; i <= 150; i++ {
		assert.Contains(t, got, fmt.Sprintf("product:%d", i))
	}

	third, err := e.svc.ProcessDelta(ctx, syncdomain.DeltaRequest{
		LastSyncTimestamp: second.NextSyncTimestamp,
		Limit:             100,
	})
	require.NoError(t, err)
	assert.Empty(t, third.ModifiedEntities)
}

func TestProcessDelta_FollowingWatermarkCoversEverything(t *testing.T) {
	e := newEngine(t)
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 150; i++ {
		e.seedProduct(t, i, "P", at)
	}
	for i := int64(1); i <= 120; i++ {
		e.seedSale(t, i, at)
	}
	e.seedMovement(t, 1, at.Add(time.Second))

	seen := map[string]bool{}
	since := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	pages := 0
	for ; pages < 5; pages++ {
		reply, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
			LastSyncTimestamp: since,
			Limit:             100,
		})
		require.NoError(t, err)
		for _, id := range ids(reply) {
			seen[id] = true
		}
		require.True(t, reply.NextSyncTimestamp.After(since), "watermark must advance")
		since = reply.NextSyncTimestamp
		if !reply.HasMore {
			break
		}
	}
	assert.Less(t, pages, 5)
	assert.Len(t, seen, 271)
}

func TestProcessDelta_WatermarkWithoutCursor(t *testing.T) {
	e := newEngine(t)
	base := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		e.seedProduct(t, i, "P", base.Add(time.Duration(i)*time.Second))
	}

	first, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
		LastSyncTimestamp: base,
		Limit:             3,
	})
	require.NoError(t, err)
	assert.True(t, first.HasMore)
	assert.Equal(t, base.Add(3*time.Second), first.NextSyncTimestamp)

	second, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
		LastSyncTimestamp: first.NextSyncTimestamp,
		Limit:             3,
	})
	require.NoError(t, err)
	assert.False(t, second.HasMore)
	assert.Equal(t, []string{"product:4", "product:5"}, ids(second))
}

func TestProcessDelta_OrderAcrossTypes(t *testing.T) {
	e := newEngine(t)
	base := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	e.seedMovement(t, 1, base.Add(1*time.Second))
	e.seedSale(t, 1, base.Add(2*time.Second))
	e.seedProduct(t, 2, "B", base.Add(3*time.Second))
	e.seedProduct(t, 1, "A", base.Add(4*time.Second))

	reply, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{LastSyncTimestamp: base})
	require.NoError(t, err)
	assert.Equal(t, []string{"product:2", "product:1", "sale:1", "stock_movement:1"}, ids(reply))
	assert.Equal(t, 2, reply.Statistics.ByEntityType["product"])
	assert.Equal(t, 4, reply.Statistics.ByOperationType["update"])
	require.NotNil(t, reply.Statistics.OldestModification)
	require.NotNil(t, reply.Statistics.NewestModification)
	assert.Equal(t, base.Add(time.Second), *reply.Statistics.OldestModification)
	assert.Equal(t, base.Add(4*time.Second), *reply.Statistics.NewestModification)

	for _, m := range reply.ModifiedEntities {
		assert.Equal(t, syncdomain.OperationUpdate, m.OperationType)
		assert.Equal(t, m.LastModified.UnixMilli(), m.Version)
		assert.NotEmpty(t, m.EntityData)
	}
	sale := reply.ModifiedEntities[2]
	assert.Equal(t, "10.5", sale.EntityData["total_amount"])
}

func TestProcessDelta_PagesAcrossTypesWithCursor(t *testing.T) {
	e := newEngine(t)
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		e.seedProduct(t, i, "P", at)
		e.seedSale(t, i, at)
		e.seedMovement(t, i, at)
	}

	req := syncdomain.DeltaRequest{LastSyncTimestamp: at.Add(-time.Hour), Limit: 4}
	var all []string
	for page := 0; page < 5; page++ {
		reply, err := e.svc.ProcessDelta(context.Background(), req)
		require.NoError(t, err)
		all = append(all, ids(reply)...)
		if !reply.HasMore {
			break
		}
		req.LastSyncTimestamp = reply.NextSyncTimestamp
		req.Cursor = reply.NextCursor
	}
	assert.Equal(t, []string{
		"product:1", "product:2", "product:3",
		"sale:1", "sale:2", "sale:3",
		"stock_movement:1", "stock_movement:2", "stock_movement:3",
	}, all)
}

func TestProcessDelta_EntityTypeFilter(t *testing.T) {
	e := newEngine(t)
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	e.seedProduct(t, 1, "P", at)
	e.seedSale(t, 1, at)

	reply, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
		LastSyncTimestamp: at.Add(-time.Minute),
		EntityTypes:       []syncdomain.EntityType{syncdomain.EntitySale},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sale:1"}, ids(reply))
}

func TestProcessDelta_StrictlyAfterWatermark(t *testing.T) {
	e := newEngine(t)
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	e.seedProduct(t, 1, "P", at)

	reply, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{LastSyncTimestamp: at})
	require.NoError(t, err)
	assert.Zero(t, reply.TotalModified)
}

func TestProcessDelta_SecondPullIsEmpty(t *testing.T) {
	e := newEngine(t)
	e.seedProduct(t, 1, "P", time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC))

	first, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
		LastSyncTimestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalModified)
	assert.False(t, first.HasMore)

	e.clock.Advance(time.Minute)
	second, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
		LastSyncTimestamp: first.NextSyncTimestamp,
	})
	require.NoError(t, err)
	assert.Empty(t, second.ModifiedEntities)
}

func TestProcessDelta_SeesBatchWrites(t *testing.T) {
	e := newEngine(t)
	since := e.clock.Now().Add(-time.Second)

	_, err := e.svc.ProcessBatch(context.Background(), syncdomain.BatchPush{
		Operations: []syncdomain.Operation{createProduct("a", "Fresh")},
	})
	require.NoError(t, err)

	reply, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{LastSyncTimestamp: since})
	require.NoError(t, err)
	require.Equal(t, 1, reply.TotalModified)
	assert.Equal(t, "Fresh", reply.ModifiedEntities[0].EntityData["name"])
	assert.Equal(t, "9.99", reply.ModifiedEntities[0].EntityData["selling_price"])
}

func TestProcessDelta_LimitBounds(t *testing.T) {
	e := newEngine(t)
	at := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 120; i++ {
		e.seedProduct(t, i, "P", at.Add(time.Duration(i)*time.Millisecond))
	}

	reply, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{LastSyncTimestamp: at})
	require.NoError(t, err)
	assert.Equal(t, 100, reply.TotalModified, "default limit")
	assert.True(t, reply.HasMore)
}

func TestProcessDelta_InvalidInput(t *testing.T) {
	e := newEngine(t)

	_, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{})
	assert.ErrorIs(t, err, syncdomain.ErrInvalidTimestamp)

	_, err = e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
		LastSyncTimestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Cursor:            "%%%",
	})
	assert.ErrorIs(t, err, syncdomain.ErrInvalidCursor)
}

func TestProcessDelta_WritesSyncLog(t *testing.T) {
	e := newEngine(t)
	e.seedProduct(t, 1, "P", time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC))

	reply, err := e.svc.ProcessDelta(context.Background(), syncdomain.DeltaRequest{
		LastSyncTimestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DeviceID:          "phone",
		AppVersion:        "1.4",
	})
	require.NoError(t, err)

	logs := e.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, syncdomain.SyncTypeDelta, logs[0].SyncType)
	assert.Equal(t, "phone", logs[0].DeviceID)
	assert.Equal(t, reply.SyncSessionID, logs[0].SyncSessionID)
	assert.Equal(t, 1, logs[0].OperationsCount)
}
