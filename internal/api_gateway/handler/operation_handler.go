package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledger-core/internal/api_gateway/middleware"
	"github.com/ledger-core/internal/api_gateway/service"
	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/domain/transaction"
)

// OperationHandler accepts operations for asynchronous execution and reports their outcome
type OperationHandler struct {
	operationService service.OperationService
	logger           *slog.Logger
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(logger *slog.Logger, operationService service.OperationService) *OperationHandler {
	return &OperationHandler{
		operationService: operationService,
		logger:           logger,
	}
}

// Submit queues the operation and answers 202. Resubmitting a known key
// answers 200 with the tracked state instead of queueing it again.
func (h *OperationHandler) Submit(c *gin.Context) {
	var req OperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}
	key, ok := idempotencyKey(c, req.IdempotencyKey)
	if !ok {
		return
	}
	if key == "" {
		key = uuid.NewString()
	}

	result, existing, err := h.operationService.Submit(c.Request.Context(), &operation.Request{
		IdempotencyKey:    key,
		Type:              transaction.Type(req.Type),
		AccountID:         accountID,
		DestinationNumber: req.DestinationNumber,
		Amount:            req.Amount,
		Description:       req.Description,
		CorrelationID:     middleware.GetCorrelationID(c),
		Timestamp:         time.Now().UTC(),
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	if existing {
		RespondOK(c, mapOperationToResponse(result))
		return
	}
	RespondAccepted(c, mapOperationToResponse(result))
}

// GetByKey returns the tracked outcome of an operation
func (h *OperationHandler) GetByKey(c *gin.Context) {
	result, err := h.operationService.GetResult(c.Request.Context(), c.Param("key"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	RespondOK(c, mapOperationToResponse(result))
}
