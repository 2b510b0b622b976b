package reconcile

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

// EstimateOffset is one estimate record recognized by a purchase.
type EstimateOffset struct {
	RecordID string
	Qty      decimal.Decimal
	// SplitRecordID is set when only part of the estimate was covered; it
	// holds the new Recognized record while RecordID keeps the Estimate rest.
	SplitRecordID string
}

// PurchaseResult describes what processing a purchase line changed.
type PurchaseResult struct {
	Received   decimal.Decimal
	OffsetQty  decimal.Decimal
	StockedQty decimal.Decimal
	Offsets    []EstimateOffset
	LotID      string
}

// ProcessPurchaseItem recognizes outstanding estimates of the product in
// sales-date order, then stocks whatever quantity is left as a new lot.
func (s *Service) ProcessPurchaseItem(ctx context.Context, line models.PurchaseLine, invoice models.PurchaseInvoice) (PurchaseResult, error) {
	logger := s.logger.With(zap.String("product_code", line.ProductCode), zap.String("purchase_invoice_no", invoice.InvoiceNo))

	records, err := s.store.QueryEstimateRecords(ctx, line.ProductCode)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("query estimate records for %s: %w", line.ProductCode, err)
	}
	estimates := make([]models.CostRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status == models.CostEstimate {
			estimates = append(estimates, rec)
		}
	}
	sortEstimatesFIFO(estimates)

	logger.Info("process purchase item",
		zap.Stringer("received", line.Quantity),
		zap.Int("estimates", len(estimates)))

	ref := models.PurchaseRef{
		InvoiceNo:    invoice.InvoiceNo,
		InvoiceDate:  invoice.InvoiceDate,
		SupplierName: invoice.SupplierName,
	}
	result := PurchaseResult{Received: line.Quantity, OffsetQty: decimal.Zero, StockedQty: decimal.Zero}

	remaining := line.Quantity
	for _, est := range estimates {
		if !remaining.IsPositive() {
			break
		}
		if !est.Quantity.IsPositive() {
			logger.Warn("skip estimate record with non-positive quantity", zap.String("record_id", est.ID), zap.Stringer("qty", est.Quantity))
			continue
		}

		offset, err := s.offsetEstimate(ctx, est, remaining, ref)
		if err != nil {
			return result, err
		}
		result.Offsets = append(result.Offsets, offset)
		result.OffsetQty = result.OffsetQty.Add(offset.Qty)
		remaining = remaining.Sub(offset.Qty)
	}

	if remaining.IsPositive() {
		lotID, err := s.store.InsertLot(ctx, lotFromPurchase(line, invoice, remaining))
		if err != nil {
			return result, fmt.Errorf("insert inventory lot for %s: %w", line.ProductCode, err)
		}
		result.LotID = lotID
		result.StockedQty = remaining
	}

	logger.Info("purchase item reconciled",
		zap.Stringer("offset", result.OffsetQty),
		zap.Stringer("stocked", result.StockedQty),
		zap.String("lot_id", result.LotID))

	return result, nil
}

// offsetEstimate recognizes est with up to supply units. A fully covered
// estimate flips in place; a partially covered one keeps its uncovered rest
// as Estimate and the covered part becomes a new Recognized record.
func (s *Service) offsetEstimate(ctx context.Context, est models.CostRecord, supply decimal.Decimal, ref models.PurchaseRef) (EstimateOffset, error) {
	if supply.GreaterThanOrEqual(est.Quantity) {
		status := models.CostRecognized
		purchase := ref
		if err := s.store.UpdateCostRecord(ctx, est.ID, models.CostRecordUpdate{Status: &status, Purchase: &purchase}); err != nil {
			return EstimateOffset{}, fmt.Errorf("recognize estimate record %s: %w", est.ID, err)
		}
		return EstimateOffset{RecordID: est.ID, Qty: est.Quantity}, nil
	}

	rest := est.Quantity.Sub(supply)
	if err := s.store.UpdateCostRecord(ctx, est.ID, models.CostRecordUpdate{Quantity: &rest}); err != nil {
		return EstimateOffset{}, fmt.Errorf("reduce estimate record %s: %w", est.ID, err)
	}

	ids, err := s.store.InsertCostRecords(ctx, []models.CostRecord{recognizedSplit(est, supply, ref)})
	if err != nil {
		return EstimateOffset{}, fmt.Errorf("insert recognized split of %s: %w", est.ID, err)
	}

	offset := EstimateOffset{RecordID: est.ID, Qty: supply}
	if len(ids) > 0 {
		offset.SplitRecordID = ids[0]
	}
	return offset, nil
}
