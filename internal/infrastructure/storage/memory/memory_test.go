package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncdomain "salesmanager/internal/domain/sync"
)

func product(name string, at time.Time) *syncdomain.Product {
	return &syncdomain.Product{
		Name:          name,
		SellingPrice:  decimal.NewFromInt(1),
		StockQuantity: decimal.NewFromInt(1),
		UpdatedAt:     at,
		CreatedAt:     at,
	}
}

func TestStorage_SaveAssignsIDsPerKind(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	p1, err := s.Save(ctx, product("a", at))
	require.NoError(t, err)
	p2, err := s.Save(ctx, product("b", at))
	require.NoError(t, err)
	sale, err := s.Save(ctx, &syncdomain.Sale{TotalAmount: decimal.NewFromInt(3), UpdatedAt: at})
	require.NoError(t, err)

	assert.Equal(t, int64(1), p1.GetID())
	assert.Equal(t, int64(2), p2.GetID())
	assert.Equal(t, int64(1), sale.GetID())

	// возвращается копия, изменения не попадают в хранилище без Save
	p1.(*syncdomain.Product).Name = "changed"
	got, err := s.FindByID(ctx, syncdomain.EntityProduct, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", got.(*syncdomain.Product).Name)
}

func TestStorage_FindUpdatedAfter(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{2 * time.Second, time.Second, time.Second, 0} {
		_, err := s.Save(ctx, product("p", at.Add(offset)))
		require.NoError(t, err)
	}

	found, err := s.FindUpdatedAfter(ctx, syncdomain.EntityProduct, syncdomain.Watermark{UpdatedAt: at, ID: 1<<63 - 1}, 10)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, []int64{2, 3, 1}, []int64{found[0].GetID(), found[1].GetID(), found[2].GetID()})

	found, err = s.FindUpdatedAfter(ctx, syncdomain.EntityProduct, syncdomain.Watermark{UpdatedAt: at.Add(time.Second), ID: 2}, 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(3), found[0].GetID())
}

func TestStorage_WithinTxRollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.WithinTx(ctx, func(ctx context.Context, tx syncdomain.TxStores) error {
		if _, err := tx.Entities.Save(ctx, product("lost", at)); err != nil {
			return err
		}
		_, err := tx.Conflicts.Save(ctx, &syncdomain.SyncConflict{EntityType: syncdomain.EntityProduct})
		require.NoError(t, err)
		return errors.New("boom")
	})
	require.Error(t, err)

	n, err := s.Count(ctx, syncdomain.EntityProduct)
	require.NoError(t, err)
	assert.Zero(t, n)
	pending, err := s.conflicts.FindUnresolved(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx syncdomain.TxStores) error {
			_, _ = tx.Entities.Save(ctx, product("lost", at))
			panic("boom")
		})
	})
	n, err = s.Count(ctx, syncdomain.EntityProduct)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.logs.Append(ctx, &syncdomain.SyncLog{SyncType: syncdomain.SyncTypeBatch}))
	assert.Len(t, s.Logs(), 1)
}

func TestStorage_RollbackKeepsWritesOutsideTx(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stores := s.Stores()

	cf, err := stores.Conflicts.Save(ctx, &syncdomain.SyncConflict{EntityType: syncdomain.EntityProduct, EntityID: "1"})
	require.NoError(t, err)
	existing, err := s.Save(ctx, product("before", at))
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx syncdomain.TxStores) error {
		// оператор закрывает конфликт параллельно с операцией пакета
		_, err := stores.Conflicts.Resolve(ctx, cf.ID, syncdomain.ResolutionServerWins, "admin", at)
		require.NoError(t, err)
		_, err = stores.Entities.Save(ctx, product("outside", at))
		require.NoError(t, err)

		upd := product("changed", at)
		upd.ID = existing.GetID()
		_, err = tx.Entities.Save(ctx, upd)
		require.NoError(t, err)
		require.NoError(t, tx.Entities.DeleteByID(ctx, syncdomain.EntityProduct, existing.GetID()))
		_, err = tx.Entities.Save(ctx, product("lost", at))
		require.NoError(t, err)
		return errors.New("invalid payload")
	})
	require.Error(t, err)

	got, err := stores.Conflicts.FindByID(ctx, cf.ID)
	require.NoError(t, err)
	assert.False(t, got.Pending())
	assert.Equal(t, "admin", got.ResolvedBy)

	n, err := s.Count(ctx, syncdomain.EntityProduct)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	restored, err := s.FindByID(ctx, syncdomain.EntityProduct, existing.GetID())
	require.NoError(t, err)
	assert.Equal(t, "before", restored.(*syncdomain.Product).Name)
}

func TestStorage_RollbackRestoresResolveInTx(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cf, err := s.conflicts.Save(ctx, &syncdomain.SyncConflict{EntityType: syncdomain.EntitySale})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx syncdomain.TxStores) error {
		_, err := tx.Conflicts.Resolve(ctx, cf.ID, syncdomain.ResolutionManual, "admin", at)
		require.NoError(t, err)
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := s.conflicts.FindByID(ctx, cf.ID)
	require.NoError(t, err)
	assert.True(t, got.Pending())
}

func TestConflictStore_Resolve(t *testing.T) {
	s := New()
	ctx := context.Background()
	uid := int64(5)

	c, err := s.conflicts.Save(ctx, &syncdomain.SyncConflict{UserID: uid, EntityType: syncdomain.EntitySale})
	require.NoError(t, err)
	_, err = s.conflicts.Save(ctx, &syncdomain.SyncConflict{UserID: 6, EntityType: syncdomain.EntitySale})
	require.NoError(t, err)

	mine, err := s.conflicts.FindUnresolved(ctx, &uid)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	resolved, err := s.conflicts.Resolve(ctx, c.ID, syncdomain.ResolutionManual, "ops", at)
	require.NoError(t, err)
	assert.Equal(t, "ops", resolved.ResolvedBy)

	_, err = s.conflicts.Resolve(ctx, c.ID, syncdomain.ResolutionManual, "ops", at)
	assert.ErrorIs(t, err, syncdomain.ErrConflictAlreadyResolved)
	_, err = s.conflicts.FindByID(ctx, 99)
	assert.ErrorIs(t, err, syncdomain.ErrConflictNotFound)

	all, err := s.conflicts.FindUnresolved(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
