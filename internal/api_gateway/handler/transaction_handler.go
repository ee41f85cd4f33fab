package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledger-core/internal/api_gateway/middleware"
	"github.com/ledger-core/internal/api_gateway/service"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
)

// TransactionHandler handles HTTP requests that move money synchronously
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

func (h *TransactionHandler) Deposit(c *gin.Context) {
	h.movement(c, transaction.TypeDeposit)
}

func (h *TransactionHandler) Withdraw(c *gin.Context) {
	h.movement(c, transaction.TypeWithdrawal)
}

// Transfer moves funds from the path account to the account with destination_number
func (h *TransactionHandler) Transfer(c *gin.Context) {
	id, ok := parseID(c, "Invalid account ID")
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	key, ok := idempotencyKey(c, req.IdempotencyKey)
	if !ok {
		return
	}

	h.execute(c, transaction.TypeTransfer, ledger.Request{
		IdempotencyKey:    key,
		AccountID:         id,
		DestinationNumber: req.DestinationNumber,
		Amount:            req.Amount,
		Description:       req.Description,
	})
}

// GetByID retrieves a single transaction record
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "Invalid transaction ID")
	if !ok {
		return
	}

	tx, err := h.transactionService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(tx))
}

func (h *TransactionHandler) movement(c *gin.Context, typ transaction.Type) {
	id, ok := parseID(c, "Invalid account ID")
	if !ok {
		return
	}
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	key, ok := idempotencyKey(c, req.IdempotencyKey)
	if !ok {
		return
	}

	h.execute(c, typ, ledger.Request{
		IdempotencyKey: key,
		AccountID:      id,
		Amount:         req.Amount,
		Description:    req.Description,
	})
}

func (h *TransactionHandler) execute(c *gin.Context, typ transaction.Type, req ledger.Request) {
	req.CorrelationID = middleware.GetCorrelationID(c)
	ctx := service.WithCorrelationID(c.Request.Context(), req.CorrelationID)

	res, err := h.transactionService.Execute(ctx, typ, req)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	// a replay returns the stored outcome with 200 instead of 201
	if res.Replayed {
		RespondOK(c, mapResultToResponse(res))
		return
	}
	RespondCreated(c, mapResultToResponse(res))
}

// idempotencyKey prefers the validated header over the body field.
func idempotencyKey(c *gin.Context, bodyKey string) (string, bool) {
	if key := middleware.GetIdempotencyKey(c); key != "" {
		return key, true
	}
	if len(bodyKey) > middleware.MaxIdempotencyKeyLen {
		RespondWithError(c, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "idempotency_key is too long")
		return "", false
	}
	return bodyKey, true
}
