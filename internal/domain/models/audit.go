package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditRule names an invariant checked by the ledger audit.
type AuditRule string

const (
	RuleLotBalance     AuditRule = "lot_balance"
	RuleLotNegative    AuditRule = "lot_negative_remaining"
	RuleLotStatus      AuditRule = "lot_status"
	RuleRecordQuantity AuditRule = "record_quantity"
	RuleRecordStatus   AuditRule = "record_status"
	RuleEstimateBilled AuditRule = "estimate_has_purchase"
)

// Ledger names used in violations.
const (
	LedgerInventory = "inventory"
	LedgerCost      = "cost"
)

// Violation is one ledger row that breaks an invariant.
type Violation struct {
	Ledger      string    `json:"ledger"`
	RecordID    string    `json:"record_id"`
	ProductCode string    `json:"product_code"`
	Rule        AuditRule `json:"rule"`
	Detail      string    `json:"detail"`
}

// AuditReport is the outcome of a full ledger audit run.
type AuditReport struct {
	RanAt                  time.Time       `json:"ran_at"`
	LotsChecked            int             `json:"lots_checked"`
	RecordsChecked         int             `json:"records_checked"`
	AvailableInventoryQty  decimal.Decimal `json:"available_inventory_qty"`
	OutstandingEstimateQty decimal.Decimal `json:"outstanding_estimate_qty"`
	Violations             []Violation     `json:"violations"`
}

// Clean reports whether no violations were found.
func (r AuditReport) Clean() bool {
	return len(r.Violations) == 0
}
