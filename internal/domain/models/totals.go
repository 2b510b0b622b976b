package models

import "github.com/shopspring/decimal"

// ProductTotal holds the running purchased and sold counters of a product.
type ProductTotal struct {
	ID           string
	ProductCode  string
	ProductName  string
	PurchasedQty decimal.Decimal
	SoldQty      decimal.Decimal
}
