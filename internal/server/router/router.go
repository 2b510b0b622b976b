package router

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/server/handlers"
)

const webhookTokenHeader = "X-Webhook-Token"

// New wires the Gin engine with required routes and middlewares. An empty
// webhookToken leaves the callback routes unauthenticated.
func New(invoices *handlers.InvoiceHandler, admin *handlers.AdminHandler, webhookToken string, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/", admin.Health)
	r.GET("/healthz", admin.Health)
	r.GET("/token/check", admin.TokenCheck)

	protected := r.Group("/")
	if webhookToken != "" {
		protected.Use(webhookTokenMiddleware(webhookToken))
	} else {
		logger.Warn("webhook token not configured, callback routes are unauthenticated")
	}

	protected.POST("/yida/invoice-input-callback", invoices.PurchaseCallback)
	protected.POST("/yida/invoice-output-callback", invoices.SalesCallback)
	protected.POST("/reports/ledger-audit", admin.RunAudit)
	protected.GET("/reports/ledger-audit/latest", admin.LatestAudit)

	logger.Info("router initialized")

	return r
}

func webhookTokenMiddleware(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(webhookTokenHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid webhook token"})
			return
		}
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
