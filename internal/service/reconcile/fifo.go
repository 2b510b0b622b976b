package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

// sortLotsFIFO orders lots by purchase date, oldest first. Lots without a
// date go last; equal dates keep retrieval order.
func sortLotsFIFO(lots []models.InventoryLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i].PurchaseInvoiceDate, lots[j].PurchaseInvoiceDate
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.Before(b)
		}
	})
}

// sortEstimatesFIFO orders estimate records by sales date, oldest first.
// Records without a date go first; equal dates keep retrieval order.
func sortEstimatesFIFO(records []models.CostRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].SalesInvoiceDate, records[j].SalesInvoiceDate
		switch {
		case a.IsZero():
			return !b.IsZero()
		case b.IsZero():
			return false
		default:
			return a.Before(b)
		}
	})
}

func availableLots(lots []models.InventoryLot) []models.InventoryLot {
	out := make([]models.InventoryLot, 0, len(lots))
	for _, lot := range lots {
		if lot.Available() {
			out = append(out, lot)
		}
	}
	return out
}

func sumRemaining(lots []models.InventoryLot) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.RemainingQty)
	}
	return total
}

// splitDemand divides a requested quantity into the part covered by
// available inventory and the shortfall. Non-positive demand yields zero for both.
func splitDemand(requested, available decimal.Decimal) (recognized, estimate decimal.Decimal) {
	if !requested.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	if available.IsNegative() {
		available = decimal.Zero
	}
	recognized = decimal.Min(available, requested)
	return recognized, requested.Sub(recognized)
}

func costRecordFromSale(line models.SalesLine, qty decimal.Decimal, status models.CostStatus) models.CostRecord {
	return models.CostRecord{
		ProductCode:      line.ProductCode,
		ProductName:      line.ProductName,
		Batch:            line.Batch,
		Customer:         line.Customer,
		InvoiceType:      line.InvoiceType,
		SalesInvoiceNo:   line.SalesInvoiceNo,
		SalesOrderNo:     line.SalesOrderNo,
		SalesInvoiceDate: line.InvoiceDate(),
		Quantity:         qty,
		Status:           status,
	}
}

// recognizedSplit copies the sales-side fields of an estimate into a new
// Recognized record for the consumed part.
func recognizedSplit(est models.CostRecord, qty decimal.Decimal, ref models.PurchaseRef) models.CostRecord {
	return models.CostRecord{
		ProductCode:      est.ProductCode,
		ProductName:      est.ProductName,
		Batch:            est.Batch,
		Customer:         est.Customer,
		InvoiceType:      est.InvoiceType,
		SalesInvoiceNo:   est.SalesInvoiceNo,
		SalesOrderNo:     est.SalesOrderNo,
		SalesInvoiceDate: est.SalesInvoiceDate,
		Quantity:         qty,
		Status:           models.CostRecognized,
		Purchase:         &ref,
	}
}

func lotFromPurchase(line models.PurchaseLine, invoice models.PurchaseInvoice, qty decimal.Decimal) models.InventoryLot {
	return models.InventoryLot{
		ProductCode:         line.ProductCode,
		ProductName:         line.ProductName,
		PurchaseInvoiceNo:   invoice.InvoiceNo,
		PurchaseInvoiceDate: invoice.InvoiceDate,
		OriginalQty:         qty,
		ConsumedQty:         decimal.Zero,
		RemainingQty:        qty,
		UnitPrice:           line.UnitPrice,
		Status:              models.LotUnused,
		Spec:                line.Spec,
		Category:            line.Category,
		Unit:                line.Unit,
	}
}
