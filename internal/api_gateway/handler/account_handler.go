package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledger-core/internal/api_gateway/middleware"
	"github.com/ledger-core/internal/api_gateway/service"
	"github.com/ledger-core/internal/domain/shared"
)

// AccountHandler handles HTTP requests for account lifecycle and history
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Open creates an account. A positive initial balance is posted as an opening deposit.
func (h *AccountHandler) Open(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx := service.WithCorrelationID(c.Request.Context(), middleware.GetCorrelationID(c))
	acc, err := h.accountService.OpenAccount(ctx, req.OwnerID, req.InitialBalance)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// GetByID retrieves an account by its ID
func (h *AccountHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "Invalid account ID")
	if !ok {
		return
	}

	acc, err := h.accountService.GetAccount(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// Balance returns the current balance
func (h *AccountHandler) Balance(c *gin.Context) {
	id, ok := parseID(c, "Invalid account ID")
	if !ok {
		return
	}

	balance, err := h.accountService.GetBalance(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, BalanceResponse{
		AccountID:      id.String(),
		Balance:        balance,
		BalanceDisplay: shared.FormatMinor(balance),
	})
}

// Close marks the account closed
func (h *AccountHandler) Close(c *gin.Context) {
	id, ok := parseID(c, "Invalid account ID")
	if !ok {
		return
	}

	acc, err := h.accountService.CloseAccount(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// Transactions lists the account's records, newest first
func (h *AccountHandler) Transactions(c *gin.Context) {
	id, pagination, ok := parseHistoryParams(c)
	if !ok {
		return
	}

	page, err := h.accountService.ListTransactions(c.Request.Context(), id, pagination.Page, pagination.PerPage)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	transactions := make([]TransactionResponse, 0, len(page.Records))
	for _, tx := range page.Records {
		transactions = append(transactions, mapTransactionToResponse(tx))
	}

	RespondWithPaginatedData(c, http.StatusOK, transactions, page.Page, page.PageSize, int(page.TotalCount))
}

// Statement lists the account's records with running balances
func (h *AccountHandler) Statement(c *gin.Context) {
	id, pagination, ok := parseHistoryParams(c)
	if !ok {
		return
	}

	st, err := h.accountService.Statement(c.Request.Context(), id, pagination.Page, pagination.PerPage)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	if !st.Reconciled {
		middleware.RequestLogger(c, h.logger).Warn("Statement served with unreconciled lines", "account_id", id.String())
	}

	RespondWithPaginatedData(c, http.StatusOK, mapStatementToResponse(st), st.Page, st.PageSize, int(st.TotalCount))
}

// Summary totals the account's activity from the read-side projection
func (h *AccountHandler) Summary(c *gin.Context) {
	id, ok := parseID(c, "Invalid account ID")
	if !ok {
		return
	}

	summary, err := h.accountService.Summary(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	RespondOK(c, mapSummaryToResponse(summary))
}

func parseID(c *gin.Context, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, message)
		return uuid.Nil, false
	}
	return id, true
}

func parseHistoryParams(c *gin.Context) (uuid.UUID, PaginationParams, bool) {
	var pagination PaginationParams
	id, ok := parseID(c, "Invalid account ID")
	if !ok {
		return id, pagination, false
	}
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return id, pagination, false
	}
	return id, pagination, true
}
