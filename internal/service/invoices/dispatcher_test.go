package invoices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
	"github.com/mamadbah2/invoice-ledger/internal/lock"
	"github.com/mamadbah2/invoice-ledger/internal/repository/memory"
	"github.com/mamadbah2/invoice-ledger/internal/service/reconcile"
)

var errStoreDown = errors.New("store down")

// brokenStore fails every lot query for one product code.
type brokenStore struct {
	*memory.Store
	code string
}

func (b *brokenStore) QueryLotsByProduct(ctx context.Context, productCode string) ([]models.InventoryLot, error) {
	if productCode == b.code {
		return nil, errStoreDown
	}
	return b.Store.QueryLotsByProduct(ctx, productCode)
}

// statsDownStore refuses every invoice statistics row.
type statsDownStore struct {
	*memory.Store
}

func (statsDownStore) InsertInvoiceStat(context.Context, models.InvoiceStat) error {
	return errStoreDown
}

type recordingJournal struct {
	entries []models.JournalEntry
	err     error
}

func (j *recordingJournal) RecordLine(_ context.Context, entry models.JournalEntry) error {
	j.entries = append(j.entries, entry)
	return j.err
}

type refusingLocker struct{}

func (refusingLocker) Acquire(context.Context, string) (lock.Release, error) {
	return nil, lock.ErrNotObtained
}

func newDispatcher(t *testing.T, store reconcile.Store, books BookkeepingStore, locker lock.Locker, journal Journal) *Dispatcher {
	t.Helper()
	svc, err := reconcile.NewService(store, nil)
	require.NoError(t, err)

	d := NewDispatcher(svc, books, locker, journal, nil)
	d.newBatchID = func() string { return "batch-1" }
	d.now = func() time.Time { return time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC) }
	return d
}

func sale(code, qty string) models.SalesLine {
	return models.SalesLine{
		ProductCode:    code,
		ProductName:    "Widget " + code,
		Quantity:       decimal.RequireFromString(qty),
		SalesInvoiceNo: "S-" + code,
		InvoiceDateMs:  time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
	}
}

func purchase(code, qty string) models.PurchaseLine {
	return models.PurchaseLine{
		ProductName: "Widget " + code,
		ProductCode: code,
		Quantity:    decimal.RequireFromString(qty),
		UnitPrice:   decimal.RequireFromString("2.5"),
		Spec:        "10x10",
		Category:    "parts",
		Unit:        "pcs",
	}
}

func invoice() models.PurchaseInvoice {
	return models.PurchaseInvoice{
		InvoiceNo:    "P-001",
		InvoiceDate:  time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC),
		SupplierName: "Acme",
	}
}

func TestSalesThenPurchaseBatch(t *testing.T) {
	store := memory.NewStore()
	journal := &recordingJournal{}
	d := newDispatcher(t, store, store, lock.NewLocalLocker(time.Second), journal)
	ctx := context.Background()

	res, err := d.ProcessSalesBatch(ctx, []models.SalesLine{sale("CP01", "8"), sale("CP02", "1")})
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, models.BatchResult{BatchID: "batch-1", Total: 2, Succeeded: 2}, res)

	res, err = d.ProcessPurchaseBatch(ctx, invoice(), []models.PurchaseLine{purchase("CP01", "10")})
	require.NoError(t, err)
	require.True(t, res.OK())

	records := store.CostRecordsFor("CP01")
	require.Len(t, records, 1)
	assert.Equal(t, models.CostRecognized, records[0].Status)
	require.NotNil(t, records[0].Purchase)
	assert.Equal(t, "P-001", records[0].Purchase.InvoiceNo)

	lots, err := store.QueryLotsByProduct(ctx, "CP01")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, decimal.RequireFromString("2").Equal(lots[0].RemainingQty))

	total, ok := store.Total("CP01")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("10").Equal(total.PurchasedQty))
	assert.True(t, decimal.RequireFromString("8").Equal(total.SoldQty))

	require.Len(t, journal.entries, 3)
	assert.Equal(t, models.LineSales, journal.entries[0].Kind)
	assert.Equal(t, "S-CP01", journal.entries[0].InvoiceNo)
	assert.Equal(t, models.LinePurchase, journal.entries[2].Kind)
	assert.Equal(t, "10", journal.entries[2].Quantity)
	for _, e := range journal.entries {
		assert.Equal(t, models.OutcomeSucceeded, e.Outcome)
	}
}

func TestInvalidLineRejectsWholeBatch(t *testing.T) {
	store := memory.NewStore()
	journal := &recordingJournal{}
	d := newDispatcher(t, store, store, nil, journal)

	bad := purchase("CP01", "3")
	bad.Unit = ""
	_, err := d.ProcessPurchaseBatch(context.Background(), invoice(), []models.PurchaseLine{purchase("CP01", "5"), bad})

	require.ErrorIs(t, err, models.ErrInvalidLine)
	var lineErr *models.LineValidationError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 1, lineErr.Index)

	lots, err := store.ListLots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lots)
	_, ok := store.Total("CP01")
	assert.False(t, ok)
	assert.Empty(t, journal.entries)
}

func TestNegativeQuantityFailsOnlyThatLine(t *testing.T) {
	store := memory.NewStore()
	journal := &recordingJournal{}
	d := newDispatcher(t, store, store, refusingLocker{}, journal)

	res, err := d.ProcessSalesBatch(context.Background(), []models.SalesLine{sale("CP01", "-1")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error, "quantity -1 is negative")
	assert.NotContains(t, res.Errors[0].Error, "lock product")

	_, ok := store.Total("CP01")
	assert.False(t, ok)
	assert.Empty(t, store.InvoiceStats())
	require.Len(t, journal.entries, 1)
	assert.Equal(t, models.OutcomeFailed, journal.entries[0].Outcome)
}

func TestNegativeQuantityDoesNotStopBatch(t *testing.T) {
	store := memory.NewStore()
	d := newDispatcher(t, store, store, nil, nil)

	res, err := d.ProcessPurchaseBatch(context.Background(), invoice(), []models.PurchaseLine{purchase("CP01", "-2"), purchase("CP02", "3")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 0, res.Errors[0].Index)
	assert.ErrorIs(t, checkQuantity(decimal.RequireFromString("-2")), ErrInvalidQuantity)

	lots, err := store.ListLots(context.Background())
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "CP02", lots[0].ProductCode)
	_, ok := store.Total("CP01")
	assert.False(t, ok)
}

func TestMissingQuantityRejectsWholeBatch(t *testing.T) {
	store := memory.NewStore()
	d := newDispatcher(t, store, store, nil, nil)

	line := sale("CP01", "0")
	line.QuantityMissing = true
	_, err := d.ProcessSalesBatch(context.Background(), []models.SalesLine{sale("CP02", "1"), line})

	var lineErr *models.LineValidationError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 1, lineErr.Index)
	assert.Contains(t, lineErr.Details, "quantity is required")
	assert.Empty(t, store.CostRecordsFor("CP02"))
	assert.Empty(t, store.InvoiceStats())
}

func TestEveryLineWritesInvoiceStatistics(t *testing.T) {
	store := memory.NewStore()
	d := newDispatcher(t, store, store, nil, nil)
	ctx := context.Background()

	p := purchase("CP01", "0.3")
	p.UnitPrice = decimal.RequireFromString("12.1")
	_, err := d.ProcessPurchaseBatch(ctx, invoice(), []models.PurchaseLine{p})
	require.NoError(t, err)

	s := sale("CP01", "0.1")
	s.Customer = "Globex"
	_, err = d.ProcessSalesBatch(ctx, []models.SalesLine{s})
	require.NoError(t, err)

	stats := store.InvoiceStats()
	require.Len(t, stats, 2)

	assert.Equal(t, models.InvoiceInput, stats[0].Direction)
	assert.Equal(t, "P-001", stats[0].InvoiceNo)
	assert.Equal(t, "Acme", stats[0].Counterparty)
	assert.Equal(t, "3.63", stats[0].Amount.String())

	assert.Equal(t, models.InvoiceOutput, stats[1].Direction)
	assert.Equal(t, "S-CP01", stats[1].InvoiceNo)
	assert.Equal(t, "Globex", stats[1].Counterparty)
	assert.True(t, decimal.RequireFromString("0.1").Equal(stats[1].Quantity))
	assert.True(t, stats[1].Amount.IsZero())
}

func TestInvoiceStatisticsFailureFailsLine(t *testing.T) {
	mem := memory.NewStore()
	d := newDispatcher(t, mem, statsDownStore{Store: mem}, nil, nil)

	res, err := d.ProcessPurchaseBatch(context.Background(), invoice(), []models.PurchaseLine{purchase("CP01", "5")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Errors[0].Error, "write invoice statistics: store down")

	// the ledgers and totals are still written
	lots, err := mem.ListLots(context.Background())
	require.NoError(t, err)
	assert.Len(t, lots, 1)
	_, ok := mem.Total("CP01")
	assert.True(t, ok)
}

func TestFailedLineDoesNotStopBatch(t *testing.T) {
	mem := memory.NewStore()
	store := &brokenStore{Store: mem, code: "BAD"}
	journal := &recordingJournal{}
	d := newDispatcher(t, store, mem, nil, journal)

	res, err := d.ProcessSalesBatch(context.Background(), []models.SalesLine{sale("BAD", "4"), sale("CP01", "2")})
	require.NoError(t, err)

	assert.False(t, res.OK())
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 0, res.Errors[0].Index)
	assert.Equal(t, "BAD", res.Errors[0].ProductCode)
	assert.Contains(t, res.Errors[0].Error, "store down")

	// totals are not gated on reconciliation
	total, ok := mem.Total("BAD")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("4").Equal(total.SoldQty))

	assert.Len(t, mem.CostRecordsFor("CP01"), 1)
	require.Len(t, journal.entries, 2)
	assert.Equal(t, models.OutcomeFailed, journal.entries[0].Outcome)
	assert.Contains(t, journal.entries[0].Error, "store down")
}

func TestLockFailureFailsLineWithoutWrites(t *testing.T) {
	store := memory.NewStore()
	d := newDispatcher(t, store, store, refusingLocker{}, nil)

	res, err := d.ProcessPurchaseBatch(context.Background(), invoice(), []models.PurchaseLine{purchase("CP01", "5")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Errors[0].Error, "lock product CP01")

	_, ok := store.Total("CP01")
	assert.False(t, ok)
}

func TestJournalFailureDoesNotFailLine(t *testing.T) {
	store := memory.NewStore()
	journal := &recordingJournal{err: errors.New("mongo unavailable")}
	d := newDispatcher(t, store, store, nil, journal)

	res, err := d.ProcessPurchaseBatch(context.Background(), invoice(), []models.PurchaseLine{purchase("CP01", "5")})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Len(t, journal.entries, 1)
}

func TestEmptyBatchSucceeds(t *testing.T) {
	store := memory.NewStore()
	d := newDispatcher(t, store, store, nil, nil)

	res, err := d.ProcessSalesBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 0, res.Total)
}
