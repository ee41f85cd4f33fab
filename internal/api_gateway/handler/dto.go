package handler

import (
	"time"

	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/activity"
	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/domain/shared"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/statement"
)

// OpenAccountRequest represents a request to open a new account
type OpenAccountRequest struct {
	OwnerID        string `json:"owner_id" binding:"required"`
	InitialBalance int64  `json:"initial_balance" binding:"min=0"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID             string `json:"id"`
	Number         string `json:"number"`
	OwnerID        string `json:"owner_id"`
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// BalanceResponse is the body of the balance endpoint
type BalanceResponse struct {
	AccountID      string `json:"account_id"`
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
}

// MovementRequest is the body of deposit and withdrawal requests
type MovementRequest struct {
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TransferRequest is the body of a transfer request
type TransferRequest struct {
	DestinationNumber string `json:"destination_number" binding:"required"`
	Amount            int64  `json:"amount" binding:"required,gt=0"`
	Description       string `json:"description,omitempty"`
	IdempotencyKey    string `json:"idempotency_key,omitempty"`
}

// ResultResponse is returned after a synchronous balance change
type ResultResponse struct {
	TransactionID     string `json:"transaction_id"`
	AccountID         string `json:"account_id"`
	NewBalance        int64  `json:"new_balance"`
	NewBalanceDisplay string `json:"new_balance_display"`
	IdempotencyKey    string `json:"idempotency_key"`
	Replayed          bool   `json:"replayed"`
}

// TransactionResponse represents a transaction record in API responses
type TransactionResponse struct {
	TransactionID        string `json:"transaction_id"`
	AccountID            string `json:"account_id"`
	Type                 string `json:"type"`
	Direction            string `json:"direction"`
	Amount               int64  `json:"amount"`
	AmountDisplay        string `json:"amount_display"`
	SourceAccountID      string `json:"source_account_id,omitempty"`
	DestinationAccountID string `json:"destination_account_id,omitempty"`
	Description          string `json:"description,omitempty"`
	Status               string `json:"status"`
	ResultingBalance     int64  `json:"resulting_balance"`
	CorrelationID        string `json:"correlation_id"`
	CreatedAt            string `json:"created_at"`
}

// StatementLineResponse is one statement row
type StatementLineResponse struct {
	TransactionResponse
	BalanceBefore      int64  `json:"balance_before"`
	BalanceAfter       int64  `json:"balance_after"`
	CounterpartyNumber string `json:"counterparty_number,omitempty"`
	Reconciled         bool   `json:"reconciled"`
}

// StatementResponse is a page of statement rows
type StatementResponse struct {
	Account    AccountResponse         `json:"account"`
	Lines      []StatementLineResponse `json:"lines"`
	Reconciled bool                    `json:"reconciled"`
}

// SummaryResponse totals an account's activity
type SummaryResponse struct {
	AccountID         string `json:"account_id"`
	TotalDeposits     int64  `json:"total_deposits"`
	TotalWithdrawals  int64  `json:"total_withdrawals"`
	TotalTransfersIn  int64  `json:"total_transfers_in"`
	TotalTransfersOut int64  `json:"total_transfers_out"`
	EntryCount        int64  `json:"entry_count"`
}

// OperationRequest submits an operation for asynchronous execution
type OperationRequest struct {
	Type              string `json:"type" binding:"required,oneof=deposit withdrawal transfer"`
	AccountID         string `json:"account_id" binding:"required,uuid"`
	DestinationNumber string `json:"destination_number,omitempty"`
	Amount            int64  `json:"amount" binding:"required,gt=0"`
	Description       string `json:"description,omitempty"`
	IdempotencyKey    string `json:"idempotency_key,omitempty"`
}

// OperationResponse is the tracked state of an asynchronous operation
type OperationResponse struct {
	IdempotencyKey string `json:"idempotency_key"`
	Type           string `json:"type"`
	AccountID      string `json:"account_id"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status"`
	TransactionID  string `json:"transaction_id,omitempty"`
	NewBalance     *int64 `json:"new_balance,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty"`
	SubmittedAt    string `json:"submitted_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:             acc.ID.String(),
		Number:         acc.Number,
		OwnerID:        acc.OwnerID,
		Balance:        acc.Balance,
		BalanceDisplay: shared.FormatMinor(acc.Balance),
		Status:         string(acc.Status),
		CreatedAt:      acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      acc.UpdatedAt.Format(time.RFC3339),
	}
}

func mapResultToResponse(res *ledger.Result) ResultResponse {
	return ResultResponse{
		TransactionID:     res.TransactionID.String(),
		AccountID:         res.AccountID.String(),
		NewBalance:        res.NewBalance,
		NewBalanceDisplay: shared.FormatMinor(res.NewBalance),
		IdempotencyKey:    res.IdempotencyKey,
		Replayed:          res.Replayed,
	}
}

func mapTransactionToResponse(tx *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		TransactionID:    tx.ID.String(),
		AccountID:        tx.AccountID.String(),
		Type:             string(tx.Type),
		Direction:        string(tx.Direction),
		Amount:           tx.Amount,
		AmountDisplay:    shared.FormatMinor(tx.Amount),
		Description:      tx.Description,
		Status:           string(tx.Status),
		ResultingBalance: tx.ResultingBalance,
		CorrelationID:    tx.CorrelationID.String(),
		CreatedAt:        tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.SourceAccountID != nil {
		response.SourceAccountID = tx.SourceAccountID.String()
	}
	if tx.DestinationAccountID != nil {
		response.DestinationAccountID = tx.DestinationAccountID.String()
	}
	return response
}

func mapStatementToResponse(st *statement.Statement) StatementResponse {
	lines := make([]StatementLineResponse, 0, len(st.Lines))
	for _, l := range st.Lines {
		tx := mapTransactionToResponse(l.Transaction)
		tx.Description = l.Description
		lines = append(lines, StatementLineResponse{
			TransactionResponse: tx,
			BalanceBefore:       l.BalanceBefore,
			BalanceAfter:        l.BalanceAfter,
			CounterpartyNumber:  l.CounterpartyNumber,
			Reconciled:          l.Reconciled,
		})
	}
	return StatementResponse{
		Account:    mapAccountToResponse(st.Account),
		Lines:      lines,
		Reconciled: st.Reconciled,
	}
}

func mapSummaryToResponse(s *activity.Summary) SummaryResponse {
	return SummaryResponse{
		AccountID:         s.AccountID.String(),
		TotalDeposits:     s.TotalDeposits,
		TotalWithdrawals:  s.TotalWithdrawals,
		TotalTransfersIn:  s.TotalTransfersIn,
		TotalTransfersOut: s.TotalTransfersOut,
		EntryCount:        s.EntryCount,
	}
}

func mapOperationToResponse(res *operation.Result) OperationResponse {
	response := OperationResponse{
		IdempotencyKey: res.IdempotencyKey,
		Type:           string(res.Type),
		AccountID:      res.AccountID.String(),
		Amount:         res.Amount,
		Status:         string(res.Status),
		NewBalance:     res.NewBalance,
		FailureReason:  res.FailureReason,
		SubmittedAt:    res.SubmittedAt.Format(time.RFC3339),
	}
	if res.TransactionID != nil {
		response.TransactionID = res.TransactionID.String()
	}
	if res.CompletedAt != nil {
		response.CompletedAt = res.CompletedAt.Format(time.RFC3339)
	}
	return response
}
