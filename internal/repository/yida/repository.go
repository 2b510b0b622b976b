package yida

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
	client "github.com/mamadbah2/invoice-ledger/pkg/clients/yida"
)

// Forms holds the form UUIDs of the three ledgers. InvoiceStat is
// optional; without it statistics rows are not written.
type Forms struct {
	Inventory   string
	Cost        string
	Totals      string
	InvoiceStat string
}

// Repository is the ledger store backed by Yida forms. Yida text search
// matches substrings, so every query re-checks the product code exactly.
type Repository struct {
	client   client.FormClient
	forms    Forms
	location *time.Location
	logger   *zap.Logger
}

// NewRepository builds a Yida ledger store. Stored dates without a zone
// are read in loc (UTC when nil).
func NewRepository(formClient client.FormClient, forms Forms, loc *time.Location, logger *zap.Logger) (*Repository, error) {
	if formClient == nil {
		return nil, errors.New("yida form client is required")
	}
	if forms.Inventory == "" || forms.Cost == "" || forms.Totals == "" {
		return nil, errors.New("all three ledger form uuids are required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{client: formClient, forms: forms, location: loc, logger: logger}, nil
}

// QueryLotsByProduct returns every lot of the product in retrieval order.
func (r *Repository) QueryLotsByProduct(ctx context.Context, productCode string) ([]models.InventoryLot, error) {
	rows, err := r.client.SearchAll(ctx, r.forms.Inventory, map[string]any{lotProductCode: productCode})
	if err != nil {
		return nil, fmt.Errorf("query inventory lots: %w", err)
	}
	lots := r.decodeLots(rows)
	out := lots[:0]
	for _, lot := range lots {
		if lot.ProductCode == productCode {
			out = append(out, lot)
		}
	}
	return out, nil
}

// UpdateLot writes the consumption fields of one lot.
func (r *Repository) UpdateLot(ctx context.Context, id string, consumed, remaining decimal.Decimal, status models.LotStatus) error {
	data := map[string]any{
		lotConsumedQty:  numberField(consumed),
		lotRemainingQty: numberField(remaining),
		lotStatus:       string(status),
	}
	if err := r.client.UpdateInstance(ctx, r.forms.Inventory, id, data); err != nil {
		return fmt.Errorf("update inventory lot: %w", err)
	}
	return nil
}

// InsertLot creates a lot and returns its instance id.
func (r *Repository) InsertLot(ctx context.Context, lot models.InventoryLot) (string, error) {
	id, err := r.client.CreateInstance(ctx, r.forms.Inventory, encodeLot(lot))
	if err != nil {
		return "", fmt.Errorf("insert inventory lot: %w", err)
	}
	return id, nil
}

// QueryEstimateRecords returns the product's cost records in Estimate status.
func (r *Repository) QueryEstimateRecords(ctx context.Context, productCode string) ([]models.CostRecord, error) {
	conditions := map[string]any{
		costProductCode: productCode,
		costStatus:      string(models.CostEstimate),
	}
	rows, err := r.client.SearchAll(ctx, r.forms.Cost, conditions)
	if err != nil {
		return nil, fmt.Errorf("query estimate records: %w", err)
	}
	records := r.decodeCostRecords(rows)
	out := records[:0]
	for _, rec := range records {
		if rec.ProductCode == productCode && rec.Status == models.CostEstimate {
			out = append(out, rec)
		}
	}
	return out, nil
}

// UpdateCostRecord writes the non-nil fields of update.
func (r *Repository) UpdateCostRecord(ctx context.Context, id string, update models.CostRecordUpdate) error {
	if update.IsZero() {
		return nil
	}
	if err := r.client.UpdateInstance(ctx, r.forms.Cost, id, encodeCostUpdate(update)); err != nil {
		return fmt.Errorf("update cost record: %w", err)
	}
	return nil
}

// InsertCostRecords creates the records in one batch call.
func (r *Repository) InsertCostRecords(ctx context.Context, records []models.CostRecord) ([]string, error) {
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, encodeCostRecord(rec))
	}
	ids, err := r.client.BatchCreateInstances(ctx, r.forms.Cost, rows)
	if err != nil {
		return nil, fmt.Errorf("insert cost records: %w", err)
	}
	return ids, nil
}

// UpsertProductTotals adds the deltas to the product's counters, creating
// the totals row on first reference.
func (r *Repository) UpsertProductTotals(ctx context.Context, productCode, productName string, deltaPurchased, deltaSold decimal.Decimal) error {
	rows, err := r.client.SearchAll(ctx, r.forms.Totals, map[string]any{totalProductCode: productCode})
	if err != nil {
		return fmt.Errorf("query product totals: %w", err)
	}

	for _, row := range rows {
		total, err := decodeTotal(row)
		if err != nil {
			r.logger.Warn("skip undecodable product totals row", zap.String("instance_id", row.ID), zap.Error(err))
			continue
		}
		if total.ProductCode != productCode {
			continue
		}

		data := map[string]any{
			totalPurchasedQty: numberField(total.PurchasedQty.Add(deltaPurchased)),
			totalSoldQty:      numberField(total.SoldQty.Add(deltaSold)),
		}
		if err := r.client.UpdateInstance(ctx, r.forms.Totals, total.ID, data); err != nil {
			return fmt.Errorf("update product totals: %w", err)
		}
		return nil
	}

	data := map[string]any{
		totalProductCode:  productCode,
		totalProductName:  productName,
		totalPurchasedQty: numberField(deltaPurchased),
		totalSoldQty:      numberField(deltaSold),
	}
	if _, err := r.client.CreateInstance(ctx, r.forms.Totals, data); err != nil {
		return fmt.Errorf("create product totals: %w", err)
	}
	return nil
}

// InsertInvoiceStat writes one 发票统计 row.
func (r *Repository) InsertInvoiceStat(ctx context.Context, stat models.InvoiceStat) error {
	if r.forms.InvoiceStat == "" {
		r.logger.Debug("invoice statistics form not configured, row skipped", zap.String("invoice_no", stat.InvoiceNo))
		return nil
	}
	if _, err := r.client.CreateInstance(ctx, r.forms.InvoiceStat, encodeInvoiceStat(stat)); err != nil {
		return fmt.Errorf("insert invoice statistics: %w", err)
	}
	return nil
}

// ListLots returns every lot in the inventory form.
func (r *Repository) ListLots(ctx context.Context) ([]models.InventoryLot, error) {
	rows, err := r.client.SearchAll(ctx, r.forms.Inventory, nil)
	if err != nil {
		return nil, fmt.Errorf("list inventory lots: %w", err)
	}
	return r.decodeLots(rows), nil
}

// ListCostRecords returns every record in the cost-carry form.
func (r *Repository) ListCostRecords(ctx context.Context) ([]models.CostRecord, error) {
	rows, err := r.client.SearchAll(ctx, r.forms.Cost, nil)
	if err != nil {
		return nil, fmt.Errorf("list cost records: %w", err)
	}
	return r.decodeCostRecords(rows), nil
}

func (r *Repository) decodeLots(rows []client.FormInstance) []models.InventoryLot {
	lots := make([]models.InventoryLot, 0, len(rows))
	for _, row := range rows {
		lot, err := decodeLot(row, r.location)
		if err != nil {
			r.logger.Warn("skip undecodable inventory lot", zap.String("instance_id", row.ID), zap.Error(err))
			continue
		}
		lots = append(lots, lot)
	}
	return lots
}

func (r *Repository) decodeCostRecords(rows []client.FormInstance) []models.CostRecord {
	records := make([]models.CostRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeCostRecord(row, r.location)
		if err != nil {
			r.logger.Warn("skip undecodable cost record", zap.String("instance_id", row.ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records
}
