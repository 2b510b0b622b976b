package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostStatus is the cost-recognition state of a cost-carry record.
type CostStatus string

const (
	// CostEstimate marks sold quantity not yet backed by a purchase invoice.
	CostEstimate CostStatus = "暂估"
	// CostRecognized marks sold quantity matched to purchased inventory.
	CostRecognized CostStatus = "结转成本"
)

// Valid reports whether the status is one of the known labels.
func (s CostStatus) Valid() bool {
	return s == CostEstimate || s == CostRecognized
}

// PurchaseRef links a recognized cost record to the purchase invoice that backs it.
type PurchaseRef struct {
	InvoiceNo    string
	InvoiceDate  time.Time
	SupplierName string
}

// CostRecord is one quantity tranche of a sales line and its cost-recognition state.
type CostRecord struct {
	ID               string
	ProductCode      string
	ProductName      string
	Batch            string
	Customer         string
	InvoiceType      string
	SalesInvoiceNo   string
	SalesOrderNo     string
	SalesInvoiceDate time.Time // zero when missing or unparseable
	Quantity         decimal.Decimal
	Status           CostStatus
	Purchase         *PurchaseRef
}

// CostRecordUpdate carries the fields to change on an existing cost record.
// Nil fields are left untouched.
type CostRecordUpdate struct {
	Quantity *decimal.Decimal
	Status   *CostStatus
	Purchase *PurchaseRef
}

// IsZero reports whether the update changes nothing.
func (u CostRecordUpdate) IsZero() bool {
	return u.Quantity == nil && u.Status == nil && u.Purchase == nil
}
