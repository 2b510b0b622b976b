package sheets

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

type rowRecorder struct {
	sheetRange string
	values     []interface{}
}

func (r *rowRecorder) WriteRow(_ context.Context, sheetRange string, values []interface{}) error {
	r.sheetRange = sheetRange
	r.values = values
	return nil
}

func TestAppendAuditSummary(t *testing.T) {
	rec := &rowRecorder{}
	exporter := NewAuditExporter(rec)

	err := exporter.AppendAuditSummary(context.Background(), models.AuditReport{
		RanAt:                  time.Date(2025, 11, 2, 2, 0, 0, 0, time.UTC),
		LotsChecked:            7,
		RecordsChecked:         9,
		AvailableInventoryQty:  decimal.RequireFromString("12.5"),
		OutstandingEstimateQty: decimal.RequireFromString("3"),
		Violations:             []models.Violation{{Rule: models.RuleLotStatus}},
	})
	require.NoError(t, err)

	require.Equal(t, "Audit!A:F", rec.sheetRange)
	require.Equal(t, []interface{}{"2025-11-02T02:00:00Z", 7, 9, "12.5", "3", 1}, rec.values)
}
