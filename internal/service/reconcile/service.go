package reconcile

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

// ErrStoreRequired is returned by NewService when no ledger store is supplied.
var ErrStoreRequired = errors.New("reconcile: ledger store is required")

// Store is the ledger persistence used by the reconcilers. Every call is a
// separate remote round-trip; nothing is cached between calls.
type Store interface {
	// QueryLotsByProduct returns the product's lots. The result may include
	// exhausted lots; callers filter on remaining quantity.
	QueryLotsByProduct(ctx context.Context, productCode string) ([]models.InventoryLot, error)
	UpdateLot(ctx context.Context, id string, consumed, remaining decimal.Decimal, status models.LotStatus) error
	InsertLot(ctx context.Context, lot models.InventoryLot) (string, error)
	QueryEstimateRecords(ctx context.Context, productCode string) ([]models.CostRecord, error)
	UpdateCostRecord(ctx context.Context, id string, update models.CostRecordUpdate) error
	InsertCostRecords(ctx context.Context, records []models.CostRecord) ([]string, error)
}

// Service offsets sales demand against purchase inventory and purchase
// supply against outstanding estimates.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService wires a reconciler over the given store.
func NewService(store Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}, nil
}
