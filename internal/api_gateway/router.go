package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledger-core/internal/api_gateway/handler"
	"github.com/ledger-core/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application.
// CorrelationID runs before Logger so access logs carry the id.
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	transactionHandler *handler.TransactionHandler,
	operationHandler *handler.OperationHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	v1 := r.Group("/api/v1")
	{
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Open)
			accounts.GET("/:id", accountHandler.GetByID)
			accounts.GET("/:id/balance", accountHandler.Balance)
			accounts.POST("/:id/close", accountHandler.Close)
			accounts.GET("/:id/transactions", accountHandler.Transactions)
			accounts.GET("/:id/statement", accountHandler.Statement)
			accounts.GET("/:id/summary", accountHandler.Summary)

			writes := accounts.Group("/:id", middleware.IdempotencyKey())
			writes.POST("/deposits", transactionHandler.Deposit)
			writes.POST("/withdrawals", transactionHandler.Withdraw)
			writes.POST("/transfers", transactionHandler.Transfer)
		}

		v1.GET("/transactions/:id", transactionHandler.GetByID)

		operations := v1.Group("/operations")
		{
			operations.POST("", middleware.IdempotencyKey(), operationHandler.Submit)
			operations.GET("/:key", operationHandler.GetByKey)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	r.NoRoute(func(c *gin.Context) {
		handler.RespondNotFound(c, "")
	})
}
