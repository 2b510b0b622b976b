package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotStatus is the consumption state of an inventory lot. Values are the
// option labels stored in the Yida inventory form.
type LotStatus string

const (
	LotUnused        LotStatus = "未使用"
	LotPartiallyUsed LotStatus = "部分使用"
	LotExhausted     LotStatus = "已用完"
)

// LotStatusFor derives the lot status from its consumed and remaining quantities.
func LotStatusFor(consumed, remaining decimal.Decimal) LotStatus {
	switch {
	case consumed.IsZero():
		return LotUnused
	case remaining.IsZero():
		return LotExhausted
	default:
		return LotPartiallyUsed
	}
}

// Valid reports whether the status is one of the known labels.
func (s LotStatus) Valid() bool {
	switch s {
	case LotUnused, LotPartiallyUsed, LotExhausted:
		return true
	}
	return false
}

// InventoryLot is the residual stock of one purchase invoice line.
// ConsumedQty + RemainingQty always equals OriginalQty.
type InventoryLot struct {
	ID                  string
	ProductCode         string
	ProductName         string
	PurchaseInvoiceNo   string
	PurchaseInvoiceDate time.Time // zero when the store has no date
	OriginalQty         decimal.Decimal
	ConsumedQty         decimal.Decimal
	RemainingQty        decimal.Decimal
	UnitPrice           decimal.Decimal
	Status              LotStatus
	Spec                string
	Category            string
	Unit                string
}

// Available reports whether the lot still has stock to draw from.
func (l InventoryLot) Available() bool {
	return l.RemainingQty.IsPositive()
}
