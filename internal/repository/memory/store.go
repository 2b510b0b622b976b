package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

// ErrNotFound is returned when an update targets an unknown record id.
var ErrNotFound = errors.New("record not found")

// Store keeps the three ledgers in process. It backs LEDGER_BACKEND=memory
// and the tests; rows are returned in insertion order like the remote store.
type Store struct {
	mu sync.RWMutex

	lotOrder  []string
	lots      map[string]models.InventoryLot
	costOrder []string
	costs     map[string]models.CostRecord
	totals    map[string]models.ProductTotal
	stats     []models.InvoiceStat

	nextLot  int
	nextCost int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		lots:   make(map[string]models.InventoryLot),
		costs:  make(map[string]models.CostRecord),
		totals: make(map[string]models.ProductTotal),
	}
}

// QueryLotsByProduct returns every lot of the product, exhausted ones included.
func (s *Store) QueryLotsByProduct(_ context.Context, productCode string) ([]models.InventoryLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.InventoryLot, 0)
	for _, id := range s.lotOrder {
		if lot := s.lots[id]; lot.ProductCode == productCode {
			out = append(out, lot)
		}
	}
	return out, nil
}

// UpdateLot overwrites the consumption fields of a lot.
func (s *Store) UpdateLot(_ context.Context, id string, consumed, remaining decimal.Decimal, status models.LotStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, ok := s.lots[id]
	if !ok {
		return fmt.Errorf("update lot %s: %w", id, ErrNotFound)
	}
	lot.ConsumedQty = consumed
	lot.RemainingQty = remaining
	lot.Status = status
	s.lots[id] = lot
	return nil
}

// InsertLot stores a new lot and returns its id.
func (s *Store) InsertLot(_ context.Context, lot models.InventoryLot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLot++
	lot.ID = fmt.Sprintf("LOT-%04d", s.nextLot)
	s.lots[lot.ID] = lot
	s.lotOrder = append(s.lotOrder, lot.ID)
	return lot.ID, nil
}

// QueryEstimateRecords returns the Estimate cost records of the product.
func (s *Store) QueryEstimateRecords(_ context.Context, productCode string) ([]models.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CostRecord, 0)
	for _, id := range s.costOrder {
		rec := s.costs[id]
		if rec.ProductCode == productCode && rec.Status == models.CostEstimate {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

// UpdateCostRecord applies the non-nil fields of update.
func (s *Store) UpdateCostRecord(_ context.Context, id string, update models.CostRecordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.costs[id]
	if !ok {
		return fmt.Errorf("update cost record %s: %w", id, ErrNotFound)
	}
	if update.Quantity != nil {
		rec.Quantity = *update.Quantity
	}
	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.Purchase != nil {
		ref := *update.Purchase
		rec.Purchase = &ref
	}
	s.costs[id] = rec
	return nil
}

// InsertCostRecords stores the records and returns their ids in order.
func (s *Store) InsertCostRecords(_ context.Context, records []models.CostRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		s.nextCost++
		rec.ID = fmt.Sprintf("COST-%04d", s.nextCost)
		s.costs[rec.ID] = cloneRecord(rec)
		s.costOrder = append(s.costOrder, rec.ID)
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

// UpsertProductTotals adds the deltas to the product counters, creating them on first use.
func (s *Store) UpsertProductTotals(_ context.Context, productCode, productName string, deltaPurchased, deltaSold decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, ok := s.totals[productCode]
	if !ok {
		total = models.ProductTotal{ID: "TOTAL-" + productCode, ProductCode: productCode}
	}
	if productName != "" {
		total.ProductName = productName
	}
	total.PurchasedQty = total.PurchasedQty.Add(deltaPurchased)
	total.SoldQty = total.SoldQty.Add(deltaSold)
	s.totals[productCode] = total
	return nil
}

// InsertInvoiceStat appends one invoice statistics row.
func (s *Store) InsertInvoiceStat(_ context.Context, stat models.InvoiceStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = append(s.stats, stat)
	return nil
}

// InvoiceStats returns the statistics rows in insertion order.
func (s *Store) InvoiceStats() []models.InvoiceStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.InvoiceStat(nil), s.stats...)
}

// ListLots returns every lot of every product.
func (s *Store) ListLots(_ context.Context) ([]models.InventoryLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.InventoryLot, 0, len(s.lotOrder))
	for _, id := range s.lotOrder {
		out = append(out, s.lots[id])
	}
	return out, nil
}

// ListCostRecords returns every cost record regardless of status.
func (s *Store) ListCostRecords(_ context.Context) ([]models.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CostRecord, 0, len(s.costOrder))
	for _, id := range s.costOrder {
		out = append(out, cloneRecord(s.costs[id]))
	}
	return out, nil
}

// CostRecordsFor returns every cost record of a product in insertion order.
func (s *Store) CostRecordsFor(productCode string) []models.CostRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CostRecord, 0)
	for _, id := range s.costOrder {
		if rec := s.costs[id]; rec.ProductCode == productCode {
			out = append(out, cloneRecord(rec))
		}
	}
	return out
}

// Total returns the counters of a product.
func (s *Store) Total(productCode string) (models.ProductTotal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total, ok := s.totals[productCode]
	return total, ok
}

func cloneRecord(rec models.CostRecord) models.CostRecord {
	if rec.Purchase != nil {
		ref := *rec.Purchase
		rec.Purchase = &ref
	}
	return rec
}
