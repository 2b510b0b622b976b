package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

const (
	journalCollection = "line_journal"
	auditCollection   = "ledger_audits"
)

// Repository defines the journal and audit history storage.
type Repository interface {
	RecordLine(ctx context.Context, entry models.JournalEntry) error
	SaveAuditReport(ctx context.Context, report models.AuditReport) error
	LatestAuditReport(ctx context.Context) (models.AuditReport, bool, error)
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	dbName string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{client: client, dbName: dbName}, nil
}

// RecordLine appends one processed line to the journal.
func (r *MongoDBRepository) RecordLine(ctx context.Context, entry models.JournalEntry) error {
	_, err := r.collection(journalCollection).InsertOne(ctx, newJournalDocument(entry))
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// SaveAuditReport stores a ledger audit run.
func (r *MongoDBRepository) SaveAuditReport(ctx context.Context, report models.AuditReport) error {
	_, err := r.collection(auditCollection).InsertOne(ctx, newAuditDocument(report))
	if err != nil {
		return fmt.Errorf("failed to insert audit report: %w", err)
	}
	return nil
}

// LatestAuditReport returns the most recent audit run, if any.
func (r *MongoDBRepository) LatestAuditReport(ctx context.Context) (models.AuditReport, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "ran_at", Value: -1}})

	var doc auditDocument
	err := r.collection(auditCollection).FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.AuditReport{}, false, nil
	}
	if err != nil {
		return models.AuditReport{}, false, fmt.Errorf("failed to load audit report: %w", err)
	}

	report, err := doc.toModel()
	if err != nil {
		return models.AuditReport{}, false, err
	}
	return report, true, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoDBRepository) collection(name string) *mongo.Collection {
	return r.client.Database(r.dbName).Collection(name)
}

type journalDocument struct {
	Kind        string    `bson:"kind"`
	BatchID     string    `bson:"batch_id"`
	Index       int       `bson:"index"`
	ProductCode string    `bson:"product_code"`
	InvoiceNo   string    `bson:"invoice_no"`
	Quantity    string    `bson:"quantity"`
	Outcome     string    `bson:"outcome"`
	Error       string    `bson:"error,omitempty"`
	ProcessedAt time.Time `bson:"processed_at"`
}

func newJournalDocument(e models.JournalEntry) journalDocument {
	return journalDocument{
		Kind:        string(e.Kind),
		BatchID:     e.BatchID,
		Index:       e.Index,
		ProductCode: e.ProductCode,
		InvoiceNo:   e.InvoiceNo,
		Quantity:    e.Quantity,
		Outcome:     string(e.Outcome),
		Error:       e.Error,
		ProcessedAt: e.ProcessedAt,
	}
}

// Quantities are stored as decimal strings so no precision is lost.
type auditDocument struct {
	RanAt                  time.Time           `bson:"ran_at"`
	LotsChecked            int                 `bson:"lots_checked"`
	RecordsChecked         int                 `bson:"records_checked"`
	AvailableInventoryQty  string              `bson:"available_inventory_qty"`
	OutstandingEstimateQty string              `bson:"outstanding_estimate_qty"`
	Violations             []violationDocument `bson:"violations"`
}

type violationDocument struct {
	Ledger      string `bson:"ledger"`
	RecordID    string `bson:"record_id"`
	ProductCode string `bson:"product_code"`
	Rule        string `bson:"rule"`
	Detail      string `bson:"detail"`
}

func newAuditDocument(r models.AuditReport) auditDocument {
	doc := auditDocument{
		RanAt:                  r.RanAt,
		LotsChecked:            r.LotsChecked,
		RecordsChecked:         r.RecordsChecked,
		AvailableInventoryQty:  r.AvailableInventoryQty.String(),
		OutstandingEstimateQty: r.OutstandingEstimateQty.String(),
		Violations:             make([]violationDocument, 0, len(r.Violations)),
	}
	for _, v := range r.Violations {
		doc.Violations = append(doc.Violations, violationDocument{
			Ledger:      v.Ledger,
			RecordID:    v.RecordID,
			ProductCode: v.ProductCode,
			Rule:        string(v.Rule),
			Detail:      v.Detail,
		})
	}
	return doc
}

func (d auditDocument) toModel() (models.AuditReport, error) {
	available, err := decimal.NewFromString(d.AvailableInventoryQty)
	if err != nil {
		return models.AuditReport{}, fmt.Errorf("decode available_inventory_qty: %w", err)
	}
	outstanding, err := decimal.NewFromString(d.OutstandingEstimateQty)
	if err != nil {
		return models.AuditReport{}, fmt.Errorf("decode outstanding_estimate_qty: %w", err)
	}

	report := models.AuditReport{
		RanAt:                  d.RanAt,
		LotsChecked:            d.LotsChecked,
		RecordsChecked:         d.RecordsChecked,
		AvailableInventoryQty:  available,
		OutstandingEstimateQty: outstanding,
	}
	for _, v := range d.Violations {
		report.Violations = append(report.Violations, models.Violation{
			Ledger:      v.Ledger,
			RecordID:    v.RecordID,
			ProductCode: v.ProductCode,
			Rule:        models.AuditRule(v.Rule),
			Detail:      v.Detail,
		})
	}
	return report, nil
}
