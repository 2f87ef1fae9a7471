package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"payment-matching-backend/internal/agent"
	"payment-matching-backend/internal/config"
	handler "payment-matching-backend/internal/handlers"
	"payment-matching-backend/internal/repository"
	"payment-matching-backend/internal/services/matching"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, logger *slog.Logger) {
	store := repository.NewStore(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)

	matchAgent := agent.NewHTTPAgent(cfg.Agent.BaseURL, cfg.Agent.Timeout)

	engine := matching.NewEngine(
		store,
		matchAgent,
		matching.Thresholds{
			AutoApply:          cfg.Matching.AutoApplyThreshold,
			ReviewFloor:        cfg.Matching.ReviewFloor,
			AmbiguityBand:      cfg.Matching.AmbiguityBand,
			CloseMargin:        cfg.Matching.CloseMargin,
			DueGraceDays:       cfg.Matching.DueGraceDays,
			AmountTolerancePct: cfg.Matching.AmountTolerancePct,
		},
		cfg.Agent.MaxAttempts,
		logger,
	)

	h := handler.NewMatchingHandler(engine, invoiceRepo, transactionRepo, logger)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Matching engine
	match := api.Group("/matching")
	match.POST("/run", h.RunMatching)
	match.POST("/apply", h.ApplyMatch)

	// Payments
	payments := api.Group("/payments")
	payments.POST("/:id/reverse", h.ReversePayment)

	// Invoices
	invoices := api.Group("/invoices")
	invoices.GET("", h.ListInvoices)
	invoices.POST("/upload", h.UploadInvoices)

	// Bank transactions
	tx := api.Group("/transactions")
	tx.GET("", h.ListTransactions)
	tx.POST("/upload", h.UploadTransactions)
}
