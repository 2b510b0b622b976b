package models

import "time"

// LineKind distinguishes purchase and sales processing.
type LineKind string

const (
	LinePurchase LineKind = "purchase"
	LineSales    LineKind = "sales"
)

// LineFailure describes one line that could not be processed.
type LineFailure struct {
	Index       int    `json:"index"`
	ProductCode string `json:"product_code"`
	Error       string `json:"error"`
}

// BatchResult summarises a callback batch.
type BatchResult struct {
	BatchID   string        `json:"batch_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Errors    []LineFailure `json:"errors,omitempty"`
}

// OK reports whether every line succeeded.
func (r BatchResult) OK() bool {
	return r.Failed == 0
}

// LineOutcome is the result label written to the line journal.
type LineOutcome string

const (
	OutcomeSucceeded LineOutcome = "succeeded"
	OutcomeFailed    LineOutcome = "failed"
)

// JournalEntry records one processed line.
type JournalEntry struct {
	Kind        LineKind
	BatchID     string
	Index       int
	ProductCode string
	InvoiceNo   string
	Quantity    string
	Outcome     LineOutcome
	Error       string
	ProcessedAt time.Time
}
