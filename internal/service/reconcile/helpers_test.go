package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
	"github.com/mamadbah2/invoice-ledger/internal/repository/memory"
)

var errBoom = errors.New("store unavailable")

// failingStore wraps the memory store and fails the named operation.
type failingStore struct {
	*memory.Store
	failOn string
}

func (f *failingStore) UpdateLot(ctx context.Context, id string, consumed, remaining decimal.Decimal, status models.LotStatus) error {
	if f.failOn == "UpdateLot" {
		return errBoom
	}
	return f.Store.UpdateLot(ctx, id, consumed, remaining, status)
}

func (f *failingStore) InsertCostRecords(ctx context.Context, records []models.CostRecord) ([]string, error) {
	if f.failOn == "InsertCostRecords" {
		return nil, errBoom
	}
	return f.Store.InsertCostRecords(ctx, records)
}

func (f *failingStore) QueryEstimateRecords(ctx context.Context, productCode string) ([]models.CostRecord, error) {
	if f.failOn == "QueryEstimateRecords" {
		return nil, errBoom
	}
	return f.Store.QueryEstimateRecords(ctx, productCode)
}

func (f *failingStore) InsertLot(ctx context.Context, lot models.InventoryLot) (string, error) {
	if f.failOn == "InsertLot" {
		return "", errBoom
	}
	return f.Store.InsertLot(ctx, lot)
}

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store, nil)
	require.NoError(t, err)
	return svc
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(n int) time.Time {
	return time.Date(2025, time.November, n, 0, 0, 0, 0, time.UTC)
}

func seedLot(t *testing.T, store *memory.Store, code string, date time.Time, remaining string) string {
	t.Helper()
	qty := dec(remaining)
	id, err := store.InsertLot(context.Background(), models.InventoryLot{
		ProductCode:         code,
		PurchaseInvoiceDate: date,
		OriginalQty:         qty,
		ConsumedQty:         decimal.Zero,
		RemainingQty:        qty,
		Status:              models.LotUnused,
	})
	require.NoError(t, err)
	return id
}

func seedEstimate(t *testing.T, store *memory.Store, code string, date time.Time, qty string) string {
	t.Helper()
	ids, err := store.InsertCostRecords(context.Background(), []models.CostRecord{{
		ProductCode:      code,
		ProductName:      "Widget",
		Customer:         "ACME",
		SalesInvoiceNo:   "S-" + date.Format("0102"),
		SalesOrderNo:     "SO-1",
		SalesInvoiceDate: date,
		Quantity:         dec(qty),
		Status:           models.CostEstimate,
	}})
	require.NoError(t, err)
	return ids[0]
}

func lotsByID(t *testing.T, store *memory.Store, code string) map[string]models.InventoryLot {
	t.Helper()
	lots, err := store.QueryLotsByProduct(context.Background(), code)
	require.NoError(t, err)
	out := make(map[string]models.InventoryLot, len(lots))
	for _, lot := range lots {
		out[lot.ID] = lot
	}
	return out
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func requireLotInvariant(t *testing.T, lot models.InventoryLot) {
	t.Helper()
	require.True(t, lot.ConsumedQty.Add(lot.RemainingQty).Equal(lot.OriginalQty), "lot %s unbalanced", lot.ID)
	require.False(t, lot.RemainingQty.IsNegative())
	require.Equal(t, models.LotStatusFor(lot.ConsumedQty, lot.RemainingQty), lot.Status)
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(nil, nil)
	require.ErrorIs(t, err, ErrStoreRequired)
}
