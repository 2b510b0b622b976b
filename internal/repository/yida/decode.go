package yida

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
	client "github.com/mamadbah2/invoice-ledger/pkg/clients/yida"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func textValue(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case []any:
		// radio and select fields sometimes come back as a one-element list
		if len(v) > 0 {
			return strings.TrimSpace(fmt.Sprint(v[0]))
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func decimalValue(data map[string]any, key string) (decimal.Decimal, error) {
	switch v := data[key].(type) {
	case nil:
		return decimal.Zero, nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("field %s: unsupported number %T", key, v)
	}
}

// dateValue reads a millisecond timestamp or a formatted date. Dates
// without a zone are read in loc. Missing or unparseable values give the
// zero time.
func dateValue(data map[string]any, key string, loc *time.Location) time.Time {
	var ms int64
	switch v := data[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return time.Time{}
			}
			n = int64(f)
		}
		ms = n
	case float64:
		ms = int64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			ms = n
			break
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func numberField(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func setDate(data map[string]any, key string, t time.Time) {
	if !t.IsZero() {
		data[key] = t.UnixMilli()
	}
}

func decodeLot(inst client.FormInstance, loc *time.Location) (models.InventoryLot, error) {
	d := inst.Data
	lot := models.InventoryLot{
		ID:                  inst.ID,
		ProductCode:         textValue(d, lotProductCode),
		ProductName:         textValue(d, lotProductName),
		PurchaseInvoiceNo:   textValue(d, lotInvoiceNo),
		PurchaseInvoiceDate: dateValue(d, lotInvoiceDate, loc),
		Status:              models.LotStatus(textValue(d, lotStatus)),
		Spec:                textValue(d, lotSpec),
		Category:            textValue(d, lotCategory),
		Unit:                textValue(d, lotUnit),
	}

	var err error
	if lot.OriginalQty, err = decimalValue(d, lotOriginalQty); err != nil {
		return lot, fmt.Errorf("original qty: %w", err)
	}
	if lot.ConsumedQty, err = decimalValue(d, lotConsumedQty); err != nil {
		return lot, fmt.Errorf("consumed qty: %w", err)
	}
	if lot.RemainingQty, err = decimalValue(d, lotRemainingQty); err != nil {
		return lot, fmt.Errorf("remaining qty: %w", err)
	}
	if lot.UnitPrice, err = decimalValue(d, lotUnitPrice); err != nil {
		return lot, fmt.Errorf("unit price: %w", err)
	}
	return lot, nil
}

func encodeLot(lot models.InventoryLot) map[string]any {
	data := map[string]any{
		lotProductCode:  lot.ProductCode,
		lotProductName:  lot.ProductName,
		lotInvoiceNo:    lot.PurchaseInvoiceNo,
		lotOriginalQty:  numberField(lot.OriginalQty),
		lotConsumedQty:  numberField(lot.ConsumedQty),
		lotRemainingQty: numberField(lot.RemainingQty),
		lotUnitPrice:    numberField(lot.UnitPrice),
		lotStatus:       string(lot.Status),
		lotSpec:         lot.Spec,
		lotCategory:     lot.Category,
		lotUnit:         lot.Unit,
	}
	setDate(data, lotInvoiceDate, lot.PurchaseInvoiceDate)
	return data
}

func decodeCostRecord(inst client.FormInstance, loc *time.Location) (models.CostRecord, error) {
	d := inst.Data
	rec := models.CostRecord{
		ID:               inst.ID,
		ProductCode:      textValue(d, costProductCode),
		ProductName:      textValue(d, costProductName),
		Batch:            textValue(d, costBatch),
		Customer:         textValue(d, costCustomer),
		InvoiceType:      textValue(d, costInvoiceType),
		SalesInvoiceNo:   textValue(d, costInvoiceNo),
		SalesOrderNo:     textValue(d, costSalesOrderNo),
		SalesInvoiceDate: dateValue(d, costSalesDate, loc),
		Status:           models.CostStatus(textValue(d, costStatus)),
	}

	qty, err := decimalValue(d, costQuantity)
	if err != nil {
		return rec, fmt.Errorf("quantity: %w", err)
	}
	rec.Quantity = qty

	if no := textValue(d, costPurchaseNo); no != "" {
		rec.Purchase = &models.PurchaseRef{
			InvoiceNo:    no,
			InvoiceDate:  dateValue(d, costPurchaseDate, loc),
			SupplierName: textValue(d, costSupplier),
		}
	}
	return rec, nil
}

func encodeCostRecord(rec models.CostRecord) map[string]any {
	data := map[string]any{
		costProductCode:  rec.ProductCode,
		costProductName:  rec.ProductName,
		costBatch:        rec.Batch,
		costCustomer:     rec.Customer,
		costInvoiceType:  rec.InvoiceType,
		costInvoiceNo:    rec.SalesInvoiceNo,
		costSalesOrderNo: rec.SalesOrderNo,
		costQuantity:     rec.Quantity.String(),
		costStatus:       string(rec.Status),
	}
	setDate(data, costSalesDate, rec.SalesInvoiceDate)
	if rec.Purchase != nil {
		setPurchase(data, *rec.Purchase)
	}
	return data
}

func encodeCostUpdate(update models.CostRecordUpdate) map[string]any {
	data := make(map[string]any, 5)
	if update.Quantity != nil {
		data[costQuantity] = update.Quantity.String()
	}
	if update.Status != nil {
		data[costStatus] = string(*update.Status)
	}
	if update.Purchase != nil {
		setPurchase(data, *update.Purchase)
	}
	return data
}

func setPurchase(data map[string]any, ref models.PurchaseRef) {
	data[costPurchaseNo] = ref.InvoiceNo
	data[costSupplier] = ref.SupplierName
	setDate(data, costPurchaseDate, ref.InvoiceDate)
}

func decodeTotal(inst client.FormInstance) (models.ProductTotal, error) {
	d := inst.Data
	total := models.ProductTotal{
		ID:          inst.ID,
		ProductCode: textValue(d, totalProductCode),
		ProductName: textValue(d, totalProductName),
	}
	var err error
	if total.PurchasedQty, err = decimalValue(d, totalPurchasedQty); err != nil {
		return total, fmt.Errorf("purchased qty: %w", err)
	}
	if total.SoldQty, err = decimalValue(d, totalSoldQty); err != nil {
		return total, fmt.Errorf("sold qty: %w", err)
	}
	return total, nil
}

func encodeInvoiceStat(stat models.InvoiceStat) map[string]any {
	data := map[string]any{
		statInvoiceNo:    stat.InvoiceNo,
		statDirection:    string(stat.Direction),
		statCounterparty: stat.Counterparty,
		statProductCode:  stat.ProductCode,
		statProductName:  stat.ProductName,
		statQuantity:     numberField(stat.Quantity),
		statUnitPrice:    numberField(stat.UnitPrice),
		statAmount:       numberField(stat.Amount),
	}
	setDate(data, statInvoiceDate, stat.InvoiceDate)
	return data
}
