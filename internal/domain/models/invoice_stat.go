package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceDirection labels a statistics row as purchase or sales.
type InvoiceDirection string

const (
	InvoiceInput  InvoiceDirection = "进项"
	InvoiceOutput InvoiceDirection = "销项"
)

// InvoiceStat is one 发票统计 row, written for every processed line.
// Sales lines carry no price, so their unit price and amount stay zero.
type InvoiceStat struct {
	InvoiceNo    string
	InvoiceDate  time.Time
	Direction    InvoiceDirection
	Counterparty string
	ProductCode  string
	ProductName  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Amount       decimal.Decimal
}

// PurchaseStat builds the statistics row of a purchase line.
func PurchaseStat(line PurchaseLine, invoice PurchaseInvoice) InvoiceStat {
	return InvoiceStat{
		InvoiceNo:    invoice.InvoiceNo,
		InvoiceDate:  invoice.InvoiceDate,
		Direction:    InvoiceInput,
		Counterparty: invoice.SupplierName,
		ProductCode:  line.ProductCode,
		ProductName:  line.ProductName,
		Quantity:     line.Quantity,
		UnitPrice:    line.UnitPrice,
		Amount:       line.Quantity.Mul(line.UnitPrice),
	}
}

// SalesStat builds the statistics row of a sales line.
func SalesStat(line SalesLine) InvoiceStat {
	return InvoiceStat{
		InvoiceNo:    line.SalesInvoiceNo,
		InvoiceDate:  line.InvoiceDate(),
		Direction:    InvoiceOutput,
		Counterparty: line.Customer,
		ProductCode:  line.ProductCode,
		ProductName:  line.ProductName,
		Quantity:     line.Quantity,
		UnitPrice:    decimal.Zero,
		Amount:       decimal.Zero,
	}
}
