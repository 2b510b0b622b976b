package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/invoice-ledger/internal/config"
	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

const auditWriteRange = "Audit!A:F"

// Repository defines the persistence operations supported by the Google Sheets adapter.
type Repository interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// AuditExporter writes ledger audit summaries to the Audit tab.
type AuditExporter struct {
	repo Repository
}

// NewAuditExporter wraps a sheet repository.
func NewAuditExporter(repo Repository) *AuditExporter {
	return &AuditExporter{repo: repo}
}

// AppendAuditSummary appends one row per audit run.
func (e *AuditExporter) AppendAuditSummary(ctx context.Context, report models.AuditReport) error {
	return e.repo.WriteRow(ctx, auditWriteRange, auditRow(report))
}

// auditRow lays out: ran at, lots, records, available inventory,
// outstanding estimate, violations.
func auditRow(report models.AuditReport) []interface{} {
	return []interface{}{
		report.RanAt.Format(time.RFC3339),
		report.LotsChecked,
		report.RecordsChecked,
		report.AvailableInventoryQty.String(),
		report.OutstandingEstimateQty.String(),
		len(report.Violations),
	}
}
