package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
	"github.com/mamadbah2/invoice-ledger/internal/lock"
	"github.com/mamadbah2/invoice-ledger/internal/service/reconcile"
)

const defaultLockWait = 10 * time.Second

// ErrInvalidQuantity marks a line skipped for a quantity the ledgers cannot book.
var ErrInvalidQuantity = errors.New("invalid quantity")

// Reconciler applies one line item to the ledgers.
type Reconciler interface {
	ProcessPurchaseItem(ctx context.Context, line models.PurchaseLine, invoice models.PurchaseInvoice) (reconcile.PurchaseResult, error)
	ProcessSalesItem(ctx context.Context, line models.SalesLine) (reconcile.SalesResult, error)
}

// BookkeepingStore maintains the per-product running counters and the
// invoice statistics rows written alongside every line.
type BookkeepingStore interface {
	UpsertProductTotals(ctx context.Context, productCode, productName string, deltaPurchased, deltaSold decimal.Decimal) error
	InsertInvoiceStat(ctx context.Context, stat models.InvoiceStat) error
}

// Journal keeps a trail of processed lines.
type Journal interface {
	RecordLine(ctx context.Context, entry models.JournalEntry) error
}

// Dispatcher feeds callback batches to the reconciler one line at a time.
type Dispatcher struct {
	reconciler Reconciler
	books      BookkeepingStore
	locker     lock.Locker
	journal    Journal
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
	newBatchID func() string
}

// NewDispatcher builds a dispatcher. A nil locker falls back to an
// in-process lock and a nil journal disables the line trail.
func NewDispatcher(reconciler Reconciler, books BookkeepingStore, locker lock.Locker, journal Journal, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocalLocker(defaultLockWait)
	}
	return &Dispatcher{
		reconciler: reconciler,
		books:      books,
		locker:     locker,
		journal:    journal,
		validate:   validator.New(),
		logger:     logger,
		now:        time.Now,
		newBatchID: func() string { return uuid.NewString() },
	}
}

// ProcessPurchaseBatch validates every line of an input invoice, then
// offsets and stocks each line in array order.
func (d *Dispatcher) ProcessPurchaseBatch(ctx context.Context, invoice models.PurchaseInvoice, lines []models.PurchaseLine) (models.BatchResult, error) {
	for i, line := range lines {
		if err := d.validateLine(i, line, line.QuantityMissing); err != nil {
			return models.BatchResult{}, err
		}
	}

	result := models.BatchResult{BatchID: d.newBatchID(), Total: len(lines)}
	logger := d.logger.With(zap.String("batch_id", result.BatchID), zap.String("invoice_no", invoice.InvoiceNo))
	logger.Info("purchase batch received", zap.Int("lines", len(lines)))

	for i, line := range lines {
		err := checkQuantity(line.Quantity)
		if err == nil {
			err = d.withProductLock(ctx, line.ProductCode, func(ctx context.Context) error {
				_, recErr := d.reconciler.ProcessPurchaseItem(ctx, line, invoice)
				statErr := d.books.InsertInvoiceStat(ctx, models.PurchaseStat(line, invoice))
				totErr := d.books.UpsertProductTotals(ctx, line.ProductCode, line.ProductName, line.Quantity, decimal.Zero)
				return joinLineErrors(recErr, statErr, totErr)
			})
		}

		d.settle(ctx, &result, models.JournalEntry{
			Kind:        models.LinePurchase,
			BatchID:     result.BatchID,
			Index:       i,
			ProductCode: line.ProductCode,
			InvoiceNo:   invoice.InvoiceNo,
			Quantity:    line.Quantity.String(),
		}, err)
	}

	logger.Info("purchase batch done", zap.Int("succeeded", result.Succeeded), zap.Int("failed", result.Failed))
	return result, nil
}

// ProcessSalesBatch validates every line of an output invoice, then
// recognizes cost for each line in array order.
func (d *Dispatcher) ProcessSalesBatch(ctx context.Context, lines []models.SalesLine) (models.BatchResult, error) {
	for i, line := range lines {
		if err := d.validateLine(i, line, line.QuantityMissing); err != nil {
			return models.BatchResult{}, err
		}
	}

	result := models.BatchResult{BatchID: d.newBatchID(), Total: len(lines)}
	logger := d.logger.With(zap.String("batch_id", result.BatchID))
	logger.Info("sales batch received", zap.Int("lines", len(lines)))

	for i, line := range lines {
		err := checkQuantity(line.Quantity)
		if err == nil {
			err = d.withProductLock(ctx, line.ProductCode, func(ctx context.Context) error {
				_, recErr := d.reconciler.ProcessSalesItem(ctx, line)
				statErr := d.books.InsertInvoiceStat(ctx, models.SalesStat(line))
				totErr := d.books.UpsertProductTotals(ctx, line.ProductCode, line.ProductName, decimal.Zero, line.Quantity)
				return joinLineErrors(recErr, statErr, totErr)
			})
		}

		d.settle(ctx, &result, models.JournalEntry{
			Kind:        models.LineSales,
			BatchID:     result.BatchID,
			Index:       i,
			ProductCode: line.ProductCode,
			InvoiceNo:   line.SalesInvoiceNo,
			Quantity:    line.Quantity.String(),
		}, err)
	}

	logger.Info("sales batch done", zap.Int("succeeded", result.Succeeded), zap.Int("failed", result.Failed))
	return result, nil
}

func (d *Dispatcher) validateLine(index int, line any, quantityMissing bool) error {
	if err := d.validate.Struct(line); err != nil {
		return &models.LineValidationError{Index: index, Details: err.Error()}
	}
	if quantityMissing {
		return &models.LineValidationError{Index: index, Details: "quantity is required"}
	}
	return nil
}

// checkQuantity fails a single line before any lock or write is taken.
func checkQuantity(qty decimal.Decimal) error {
	if qty.IsNegative() {
		return fmt.Errorf("%w: quantity %s is negative", ErrInvalidQuantity, qty)
	}
	return nil
}

// withProductLock runs fn while holding the product's ledger lock.
func (d *Dispatcher) withProductLock(ctx context.Context, productCode string, fn func(context.Context) error) error {
	release, err := d.locker.Acquire(ctx, lock.ProductKey(productCode))
	if err != nil {
		return fmt.Errorf("lock product %s: %w", productCode, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			d.logger.Warn("release product lock", zap.String("product_code", productCode), zap.Error(err))
		}
	}()

	return fn(ctx)
}

// settle counts the line outcome and writes it to the journal.
func (d *Dispatcher) settle(ctx context.Context, result *models.BatchResult, entry models.JournalEntry, err error) {
	entry.ProcessedAt = d.now().UTC()
	entry.Outcome = models.OutcomeSucceeded

	if err != nil {
		entry.Outcome = models.OutcomeFailed
		entry.Error = err.Error()
		result.Failed++
		result.Errors = append(result.Errors, models.LineFailure{
			Index:       entry.Index,
			ProductCode: entry.ProductCode,
			Error:       err.Error(),
		})
		d.logger.Error("line failed",
			zap.String("batch_id", entry.BatchID),
			zap.Int("index", entry.Index),
			zap.String("product_code", entry.ProductCode),
			zap.Error(err))
	} else {
		result.Succeeded++
	}

	if d.journal == nil {
		return
	}
	if jErr := d.journal.RecordLine(ctx, entry); jErr != nil {
		d.logger.Warn("journal write failed",
			zap.String("batch_id", entry.BatchID),
			zap.Int("index", entry.Index),
			zap.Error(jErr))
	}
}

func joinLineErrors(reconcileErr, statErr, totalsErr error) error {
	if statErr != nil {
		statErr = fmt.Errorf("write invoice statistics: %w", statErr)
	}
	if totalsErr != nil {
		totalsErr = fmt.Errorf("update product totals: %w", totalsErr)
	}
	return errors.Join(reconcileErr, statErr, totalsErr)
}
