package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

const (
	keyPurchaseItems = "purchase_items"
	keySalesItems    = "sales_items"
	keyInvoiceNo     = "invoice_no"
	keyInvoiceDate   = "invoice_date"
	keySupplierName  = "supplier_name"
)

// BatchDispatcher processes validated callback batches.
type BatchDispatcher interface {
	ProcessPurchaseBatch(ctx context.Context, invoice models.PurchaseInvoice, lines []models.PurchaseLine) (models.BatchResult, error)
	ProcessSalesBatch(ctx context.Context, lines []models.SalesLine) (models.BatchResult, error)
}

// InvoiceHandler handles Yida invoice approval callbacks.
type InvoiceHandler struct {
	dispatcher BatchDispatcher
	location   *time.Location
	logger     *zap.Logger
}

// NewInvoiceHandler constructs the HTTP handler adapter. Date-only invoice
// dates are read in loc.
func NewInvoiceHandler(dispatcher BatchDispatcher, loc *time.Location, logger *zap.Logger) *InvoiceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &InvoiceHandler{dispatcher: dispatcher, location: loc, logger: logger}
}

type batchResponse struct {
	Success bool `json:"success"`
	models.BatchResult
}

// PurchaseCallback ingests an approved input invoice.
func (h *InvoiceHandler) PurchaseCallback(c *gin.Context) {
	params, err := callbackParams(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	var lines []models.PurchaseLine
	if err := decodeItems(params[keyPurchaseItems], &lines); err != nil {
		h.badRequest(c, fmt.Errorf("%s: %w", keyPurchaseItems, err))
		return
	}
	invoiceDate, err := parseInvoiceDate(params[keyInvoiceDate], h.location)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	invoice := models.PurchaseInvoice{
		InvoiceNo:    params[keyInvoiceNo],
		InvoiceDate:  invoiceDate,
		SupplierName: params[keySupplierName],
	}

	result, err := h.dispatcher.ProcessPurchaseBatch(c.Request.Context(), invoice, lines)
	h.respond(c, result, err)
}

// SalesCallback ingests an approved output invoice.
func (h *InvoiceHandler) SalesCallback(c *gin.Context) {
	params, err := callbackParams(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	var lines []models.SalesLine
	if err := decodeItems(params[keySalesItems], &lines); err != nil {
		h.badRequest(c, fmt.Errorf("%s: %w", keySalesItems, err))
		return
	}

	result, err := h.dispatcher.ProcessSalesBatch(c.Request.Context(), lines)
	h.respond(c, result, err)
}

func (h *InvoiceHandler) respond(c *gin.Context, result models.BatchResult, err error) {
	if err != nil {
		if errors.Is(err, models.ErrInvalidLine) {
			h.badRequest(c, err)
			return
		}
		h.logger.Error("failed processing callback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to process callback"})
		return
	}

	status := http.StatusOK
	if !result.OK() {
		status = http.StatusBadGateway
	}
	c.JSON(status, batchResponse{Success: result.OK(), BatchResult: result})
}

func (h *InvoiceHandler) badRequest(c *gin.Context, err error) {
	h.logger.Warn("invalid callback payload", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}

// callbackParams flattens a form or JSON body into string values. JSON
// values that are not strings keep their raw text.
func callbackParams(c *gin.Context) (map[string]string, error) {
	params := make(map[string]string)

	if c.ContentType() != gin.MIMEJSON {
		if err := c.Request.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		for key := range c.Request.PostForm {
			params[key] = c.Request.PostForm.Get(key)
		}
		return params, nil
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, fmt.Errorf("parse json body: %w", err)
	}
	for key, raw := range body {
		raw = bytes.TrimSpace(raw)
		var s string
		if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
			params[key] = s
			continue
		}
		if string(raw) == "null" {
			continue
		}
		params[key] = string(raw)
	}
	return params, nil
}

func decodeItems(raw string, dst any) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("missing line items")
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode line items: %w", err)
	}
	return nil
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "2006/01/02"}

// parseInvoiceDate accepts epoch milliseconds, RFC 3339 or a plain date.
// An empty value means undated.
func parseInvoiceDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q", keyInvoiceDate, raw)
}
