package postgres

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	syncdomain "salesmanager/internal/domain/sync"
)

func newStorage(t *testing.T) (*Storage, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithPool(mock, log), mock
}

func strPtr(s string) *string { return &s }

var productColumns = []string{
	"id", "name", "description", "barcode", "purchase_price", "selling_price", "stock_quantity",
	"min_stock_level", "category", "unit", "is_active", "created_at", "updated_at",
}

func productRow(rows *pgxmock.Rows, id int64, name string, at time.Time) *pgxmock.Rows {
	return rows.AddRow(id, name, (*string)(nil), strPtr("4600000000001"), strPtr("5.25"), "9.99", "3",
		"0", strPtr("Food"), "pcs", true, at, at)
}

func TestEntityRepository_FindByID(t *testing.T) {
	s, mock := newStorage(t)
	defer mock.Close()
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(productTable.findSQL())).
		WithArgs(int64(7)).
		WillReturnRows(productRow(pgxmock.NewRows(productColumns), 7, "Milk", at))

	e, err := s.Stores().Entities.FindByID(context.Background(), syncdomain.EntityProduct, 7)
	require.NoError(t, err)
	p := e.(*syncdomain.Product)
	assert.Equal(t, "Milk", p.Name)
	assert.Empty(t, p.Description)
	assert.Equal(t, "Food", p.Category)
	assert.True(t, p.PurchasePrice.Valid)
	assert.True(t, decimal.RequireFromString("5.25").Equal(p.PurchasePrice.Decimal))
	assert.True(t, decimal.RequireFromString("9.99").Equal(p.SellingPrice))
	assert.Equal(t, at, p.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityRepository_FindByIDNotFound(t *testing.T) {
	s, mock := newStorage(t)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(saleTable.findSQL())).
		WithArgs(int64(3)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Stores().Entities.FindByID(context.Background(), syncdomain.EntitySale, 3)
	assert.ErrorIs(t, err, syncdomain.ErrEntityNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityRepository_SaveInsertsAndUpdates(t *testing.T) {
	s, mock := newStorage(t)
	defer mock.Close()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m := &syncdomain.StockMovement{
		ProductID:    1,
		Quantity:     decimal.NewFromInt(2),
		MovementType: "IN",
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	movementColumns := []string{"id", "product_id", "quantity", "movement_type", "reason", "reference", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta(stockMovementTable.insertSQL())).
		WithArgs(int64(1), "2", "IN", (*string)(nil), (*string)(nil), at, at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery(regexp.QuoteMeta(stockMovementTable.findSQL())).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows(movementColumns).
			AddRow(int64(11), int64(1), "2", "IN", (*string)(nil), (*string)(nil), at, at))

	saved, err := s.Stores().Entities.Save(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, int64(11), saved.GetID())

	m.ID = 12
	mock.ExpectExec(regexp.QuoteMeta(stockMovementTable.updateSQL())).
		WithArgs(int64(12), int64(1), "2", "IN", (*string)(nil), (*string)(nil), at, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err = s.Stores().Entities.Save(ctx, m)
	assert.ErrorIs(t, err, syncdomain.ErrEntityNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityRepository_FindUpdatedAfter(t *testing.T) {
	s, mock := newStorage(t)
	defer mock.Close()
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	after := syncdomain.Watermark{UpdatedAt: at, ID: 4}

	rows := pgxmock.NewRows(productColumns)
	productRow(rows, 5, "A", at)
	productRow(rows, 2, "B", at.Add(time.Second))
	mock.ExpectQuery(regexp.QuoteMeta(productTable.updatedAfterSQL())).
		WithArgs(at, int64(4), 3).
		WillReturnRows(rows)

	found, err := s.Stores().Entities.FindUpdatedAfter(context.Background(), syncdomain.EntityProduct, after, 3)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, int64(5), found[0].GetID())
	assert.Equal(t, int64(2), found[1].GetID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityRepository_DeleteAndCount(t *testing.T) {
	s, mock := newStorage(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(saleTable.deleteSQL())).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery(regexp.QuoteMeta(saleTable.countSQL())).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

	err := s.Stores().Entities.DeleteByID(ctx, syncdomain.EntitySale, 9)
	assert.ErrorIs(t, err, syncdomain.ErrEntityNotFound)

	n, err := s.Stores().Entities.Count(ctx, syncdomain.EntitySale)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorage_WithinTx(t *testing.T) {
	s, mock := newStorage(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(productTable.countSQL())).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectCommit()

	err := s.WithinTx(ctx, func(ctx context.Context, tx syncdomain.TxStores) error {
		_, err := tx.Entities.Count(ctx, syncdomain.EntityProduct)
		return err
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(ctx context.Context, tx syncdomain.TxStores) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	mock.ExpectBegin()
	mock.ExpectRollback()
	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx syncdomain.TxStores) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

var conflictRowColumns = []string{
	"id", "user_id", "entity_type", "entity_id", "conflict_type", "local_data", "server_data",
	"local_version", "server_version", "resolution_strategy", "resolved_at", "resolved_by", "created_at", "conflict_details",
}

func TestConflictRepository_Resolve(t *testing.T) {
	s, mock := newStorage(t)
	defer mock.Close()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	version := at.UnixMilli()
	resolveSQL := regexp.QuoteMeta("UPDATE sync_conflicts")

	mock.ExpectQuery(resolveSQL).
		WithArgs(int64(1), "SERVER_WINS", "alice", at).
		WillReturnRows(pgxmock.NewRows(conflictRowColumns).AddRow(
			int64(1), int64(0), "product", "7", "VERSION_MISMATCH", "{}", "{}",
			&version, &version, strPtr("SERVER_WINS"), &at, strPtr("alice"), at, "{}"))

	c, err := s.Stores().Conflicts.Resolve(ctx, 1, syncdomain.ResolutionServerWins, "alice", at)
	require.NoError(t, err)
	assert.Equal(t, syncdomain.ResolutionServerWins, c.ResolutionStrategy)
	assert.Equal(t, "alice", c.ResolvedBy)
	require.NotNil(t, c.ResolvedAt)
	assert.False(t, c.Pending())

	// повторное закрытие
	mock.ExpectQuery(resolveSQL).
		WithArgs(int64(1), "MANUAL", "bob", at).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sync_conflicts WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(conflictRowColumns).AddRow(
			int64(1), int64(0), "product", "7", "VERSION_MISMATCH", "{}", "{}",
			&version, &version, strPtr("SERVER_WINS"), &at, strPtr("alice"), at, "{}"))

	_, err = s.Stores().Conflicts.Resolve(ctx, 1, syncdomain.ResolutionManual, "bob", at)
	assert.ErrorIs(t, err, syncdomain.ErrConflictAlreadyResolved)

	mock.ExpectQuery(resolveSQL).
		WithArgs(int64(2), "MANUAL", "bob", at).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sync_conflicts WHERE id = $1")).
		WithArgs(int64(2)).
		WillReturnError(pgx.ErrNoRows)

	_, err = s.Stores().Conflicts.Resolve(ctx, 2, syncdomain.ResolutionManual, "bob", at)
	assert.ErrorIs(t, err, syncdomain.ErrConflictNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConflictRepository_SaveAndFindUnresolved(t *testing.T) {
	s, mock := newStorage(t)
	defer mock.Close()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	uid := int64(5)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sync_conflicts")).
		WithArgs(uid, "sale", "3", "DELETE_UPDATE", "{}", "{}", (*int64)(nil), (*int64)(nil), at, "details").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(8)))

	saved, err := s.Stores().Conflicts.Save(ctx, &syncdomain.SyncConflict{
		UserID:          uid,
		EntityType:      syncdomain.EntitySale,
		EntityID:        "3",
		ConflictType:    syncdomain.ConflictDeleteUpdate,
		LocalData:       "{}",
		ServerData:      "{}",
		CreatedAt:       at,
		ConflictDetails: "details",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), saved.ID)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE resolved_at IS NULL AND user_id = $1")).
		WithArgs(uid).
		WillReturnRows(pgxmock.NewRows(conflictRowColumns).AddRow(
			int64(8), uid, "sale", "3", "DELETE_UPDATE", "{}", "{}",
			(*int64)(nil), (*int64)(nil), (*string)(nil), (*time.Time)(nil), (*string)(nil), at, "details"))

	pending, err := s.Stores().Conflicts.FindUnresolved(ctx, &uid)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Pending())
	assert.Empty(t, pending[0].ResolutionStrategy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncLogRepository_Append(t *testing.T) {
	s, mock := newStorage(t)
	defer mock.Close()
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sync_logs")).
		WithArgs("BATCH", strPtr("phone"), (*string)(nil), "session", 2, 1, 0, 1, int64(15), at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	l := &syncdomain.SyncLog{
		SyncType:         syncdomain.SyncTypeBatch,
		DeviceID:         "phone",
		SyncSessionID:    "session",
		OperationsCount:  2,
		SuccessCount:     1,
		ConflictCount:    1,
		ProcessingTimeMs: 15,
		Timestamp:        at,
	}
	require.NoError(t, s.Stores().Logs.Append(context.Background(), l))
	assert.Equal(t, int64(3), l.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
