package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidLine indicates an inbound line item failed schema validation.
var ErrInvalidLine = errors.New("invalid invoice line")

// LineValidationError wraps ErrInvalidLine with the offending line position.
type LineValidationError struct {
	Index   int
	Details string
}

func (e *LineValidationError) Error() string {
	return fmt.Sprintf("%s at index %d: %s", ErrInvalidLine.Error(), e.Index, e.Details)
}

func (e *LineValidationError) Unwrap() error {
	return ErrInvalidLine
}

// PurchaseLine is one product row of an approved purchase ("input") invoice.
// JSON keys are the Yida sub-form field codes.
type PurchaseLine struct {
	ProductName string          `json:"textField_mi8pp1we" validate:"required"`
	ProductCode string          `json:"textField_mi8pp1wf" validate:"required"`
	Quantity    decimal.Decimal `json:"numberField_mi8pp1wg"`
	UnitPrice   decimal.Decimal `json:"numberField_mi8pp1wh"`
	Spec        string          `json:"textField_mi8pp1wi" validate:"required"`
	Category    string          `json:"textField_mi8pp1wj" validate:"required"`
	Unit        string          `json:"textField_mi8pp1wk" validate:"required"`
	// QuantityMissing is set when a decoded line carried no quantity.
	QuantityMissing bool `json:"-"`
}

// UnmarshalJSON decodes the line and records whether the quantity was sent.
func (l *PurchaseLine) UnmarshalJSON(data []byte) error {
	type plain PurchaseLine
	var aux struct {
		plain
		Quantity decimal.NullDecimal `json:"numberField_mi8pp1wg"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = PurchaseLine(aux.plain)
	l.Quantity = aux.Quantity.Decimal
	l.QuantityMissing = !aux.Quantity.Valid
	return nil
}

// PurchaseInvoice carries the header fields shared by every line of a purchase batch.
type PurchaseInvoice struct {
	InvoiceNo    string
	InvoiceDate  time.Time
	SupplierName string
}

// SalesLine is one product row of an approved sales ("output") invoice.
type SalesLine struct {
	ProductCode    string          `json:"textField_mhd4ta0f" validate:"required"`
	ProductName    string          `json:"textField_ll5xce5e" validate:"required"`
	Quantity       decimal.Decimal `json:"numberField_m7ecqbog"`
	Batch          string          `json:"textField_m7ecqboh"`
	Customer       string          `json:"textField_mhd23658"`
	InvoiceType    string          `json:"textField_mhd23659"`
	SalesInvoiceNo string          `json:"textField_mhd2365a" validate:"required"`
	InvoiceDateMs  int64           `json:"dateField_mhd23657"`
	SalesOrderNo   string          `json:"textField_mhd23655"`
	// QuantityMissing is set when a decoded line carried no quantity.
	QuantityMissing bool `json:"-"`
}

// UnmarshalJSON decodes the line and records whether the quantity was sent.
func (l *SalesLine) UnmarshalJSON(data []byte) error {
	type plain SalesLine
	var aux struct {
		plain
		Quantity decimal.NullDecimal `json:"numberField_m7ecqbog"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = SalesLine(aux.plain)
	l.Quantity = aux.Quantity.Decimal
	l.QuantityMissing = !aux.Quantity.Valid
	return nil
}

// InvoiceDate converts the millisecond timestamp; zero stays zero.
func (l SalesLine) InvoiceDate() time.Time {
	if l.InvoiceDateMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(l.InvoiceDateMs)
}
