package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

// LedgerReader lists every row of the lot and cost ledgers.
type LedgerReader interface {
	ListLots(ctx context.Context) ([]models.InventoryLot, error)
	ListCostRecords(ctx context.Context) ([]models.CostRecord, error)
}

// ReportStore keeps audit history.
type ReportStore interface {
	SaveAuditReport(ctx context.Context, report models.AuditReport) error
}

// SummaryExporter publishes a one-line audit summary.
type SummaryExporter interface {
	AppendAuditSummary(ctx context.Context, report models.AuditReport) error
}

// Service audits the ledgers against their bookkeeping invariants.
type Service struct {
	ledger   LedgerReader
	reports  ReportStore
	exporter SummaryExporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the audit. reports and exporter are optional.
func NewService(ledger LedgerReader, reports ReportStore, exporter SummaryExporter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:   ledger,
		reports:  reports,
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

// RunLedgerAudit reads both ledgers, checks them and stores the outcome.
// Storage failures are logged; only ledger read failures are returned.
func (s *Service) RunLedgerAudit(ctx context.Context) (models.AuditReport, error) {
	lots, err := s.ledger.ListLots(ctx)
	if err != nil {
		return models.AuditReport{}, fmt.Errorf("list inventory lots: %w", err)
	}
	records, err := s.ledger.ListCostRecords(ctx)
	if err != nil {
		return models.AuditReport{}, fmt.Errorf("list cost records: %w", err)
	}

	report := Audit(lots, records)
	report.RanAt = s.now().UTC()

	fields := []zap.Field{
		zap.Int("lots", report.LotsChecked),
		zap.Int("records", report.RecordsChecked),
		zap.Int("violations", len(report.Violations)),
		zap.Stringer("available_inventory", report.AvailableInventoryQty),
		zap.Stringer("outstanding_estimate", report.OutstandingEstimateQty),
	}
	if report.Clean() {
		s.logger.Info("ledger audit clean", fields...)
	} else {
		s.logger.Warn("ledger audit found violations", fields...)
	}

	if s.reports != nil {
		if err := s.reports.SaveAuditReport(ctx, report); err != nil {
			s.logger.Error("failed to save audit report", zap.Error(err))
		}
	}
	if s.exporter != nil {
		if err := s.exporter.AppendAuditSummary(ctx, report); err != nil {
			s.logger.Error("failed to export audit summary", zap.Error(err))
		}
	}

	return report, nil
}

// Audit checks lots and cost records and totals the open quantities.
func Audit(lots []models.InventoryLot, records []models.CostRecord) models.AuditReport {
	report := models.AuditReport{
		LotsChecked:            len(lots),
		RecordsChecked:         len(records),
		AvailableInventoryQty:  decimal.Zero,
		OutstandingEstimateQty: decimal.Zero,
	}

	for _, lot := range lots {
		report.Violations = append(report.Violations, checkLot(lot)...)
		if lot.RemainingQty.IsPositive() {
			report.AvailableInventoryQty = report.AvailableInventoryQty.Add(lot.RemainingQty)
		}
	}
	for _, rec := range records {
		report.Violations = append(report.Violations, checkRecord(rec)...)
		if rec.Status == models.CostEstimate && rec.Quantity.IsPositive() {
			report.OutstandingEstimateQty = report.OutstandingEstimateQty.Add(rec.Quantity)
		}
	}

	return report
}

func checkLot(lot models.InventoryLot) []models.Violation {
	var out []models.Violation
	flag := func(rule models.AuditRule, detail string) {
		out = append(out, models.Violation{
			Ledger:      models.LedgerInventory,
			RecordID:    lot.ID,
			ProductCode: lot.ProductCode,
			Rule:        rule,
			Detail:      detail,
		})
	}

	if sum := lot.ConsumedQty.Add(lot.RemainingQty); !sum.Equal(lot.OriginalQty) {
		flag(models.RuleLotBalance, fmt.Sprintf("consumed %s + remaining %s != original %s", lot.ConsumedQty, lot.RemainingQty, lot.OriginalQty))
	}
	if lot.RemainingQty.IsNegative() {
		flag(models.RuleLotNegative, fmt.Sprintf("remaining %s", lot.RemainingQty))
	}
	if want := models.LotStatusFor(lot.ConsumedQty, lot.RemainingQty); lot.Status != want {
		flag(models.RuleLotStatus, fmt.Sprintf("status %q, expected %q", lot.Status, want))
	}

	return out
}

func checkRecord(rec models.CostRecord) []models.Violation {
	var out []models.Violation
	flag := func(rule models.AuditRule, detail string) {
		out = append(out, models.Violation{
			Ledger:      models.LedgerCost,
			RecordID:    rec.ID,
			ProductCode: rec.ProductCode,
			Rule:        rule,
			Detail:      detail,
		})
	}

	if !rec.Quantity.IsPositive() {
		flag(models.RuleRecordQuantity, fmt.Sprintf("quantity %s", rec.Quantity))
	}
	if !rec.Status.Valid() {
		flag(models.RuleRecordStatus, fmt.Sprintf("status %q", rec.Status))
	}
	if rec.Status == models.CostEstimate && rec.Purchase != nil && rec.Purchase.InvoiceNo != "" {
		flag(models.RuleEstimateBilled, fmt.Sprintf("estimate carries purchase invoice %s", rec.Purchase.InvoiceNo))
	}

	return out
}
