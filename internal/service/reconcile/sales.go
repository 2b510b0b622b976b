package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

// LotDraw is the quantity taken from one lot by a sale.
type LotDraw struct {
	LotID     string
	Qty       decimal.Decimal
	Remaining decimal.Decimal
	Status    models.LotStatus
}

// SalesResult describes what processing a sales line changed.
type SalesResult struct {
	Requested     decimal.Decimal
	Available     decimal.Decimal
	RecognizedQty decimal.Decimal
	EstimateQty   decimal.Decimal
	RecordIDs     []string
	Draws         []LotDraw
}

// ProcessSalesItem recognizes cost for as much of the sale as inventory
// covers, records the shortfall as an estimate, and draws the covered
// quantity from the product's lots oldest first.
func (s *Service) ProcessSalesItem(ctx context.Context, line models.SalesLine) (SalesResult, error) {
	logger := s.logger.With(zap.String("product_code", line.ProductCode), zap.String("sales_invoice_no", line.SalesInvoiceNo))

	lots, err := s.store.QueryLotsByProduct(ctx, line.ProductCode)
	if err != nil {
		return SalesResult{}, fmt.Errorf("query inventory lots for %s: %w", line.ProductCode, err)
	}
	lots = availableLots(lots)
	available := sumRemaining(lots)
	recognized, estimate := splitDemand(line.Quantity, available)

	result := SalesResult{
		Requested:     line.Quantity,
		Available:     available,
		RecognizedQty: recognized,
		EstimateQty:   estimate,
	}

	logger.Info("process sales item",
		zap.Stringer("requested", line.Quantity),
		zap.Stringer("available", available),
		zap.Stringer("recognized", recognized),
		zap.Stringer("estimate", estimate),
		zap.Int("lots", len(lots)))

	records := make([]models.CostRecord, 0, 2)
	if recognized.IsPositive() {
		records = append(records, costRecordFromSale(line, recognized, models.CostRecognized))
	}
	if estimate.IsPositive() {
		records = append(records, costRecordFromSale(line, estimate, models.CostEstimate))
	}
	if len(records) == 0 {
		logger.Warn("sales item has no positive quantity, nothing recorded")
		return result, nil
	}

	ids, err := s.store.InsertCostRecords(ctx, records)
	if err != nil {
		return result, fmt.Errorf("insert cost records for %s: %w", line.ProductCode, err)
	}
	result.RecordIDs = ids

	if !recognized.IsPositive() {
		return result, nil
	}

	draws, err := s.drawLots(ctx, lots, recognized)
	result.Draws = draws
	if err != nil {
		return result, err
	}

	return result, nil
}

// drawLots consumes qty from lots in FIFO order, persisting each lot as it is touched.
func (s *Service) drawLots(ctx context.Context, lots []models.InventoryLot, qty decimal.Decimal) ([]LotDraw, error) {
	sortLotsFIFO(lots)

	draws := make([]LotDraw, 0, len(lots))
	still := qty
	for _, lot := range lots {
		if !still.IsPositive() {
			break
		}
		if !lot.Available() {
			continue
		}

		use := decimal.Min(lot.RemainingQty, still)
		consumed := lot.ConsumedQty.Add(use)
		remaining := lot.RemainingQty.Sub(use)
		status := models.LotStatusFor(consumed, remaining)

		if err := s.store.UpdateLot(ctx, lot.ID, consumed, remaining, status); err != nil {
			return draws, fmt.Errorf("update inventory lot %s: %w", lot.ID, err)
		}

		s.logger.Debug("inventory lot drawn",
			zap.String("lot_id", lot.ID),
			zap.Stringer("used", use),
			zap.Stringer("remaining", remaining),
			zap.String("status", string(status)))

		draws = append(draws, LotDraw{LotID: lot.ID, Qty: use, Remaining: remaining, Status: status})
		still = still.Sub(use)
	}

	return draws, nil
}
