package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledger-core/internal/api_gateway/middleware"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTransactionRouter(svc *MockTransactionService) *gin.Engine {
	h := NewTransactionHandler(newTestLogger(), svc)
	r := setupTestRouter()
	r.Use(middleware.CorrelationID())
	writes := r.Group("", middleware.IdempotencyKey())
	writes.POST("/accounts/:id/deposits", h.Deposit)
	writes.POST("/accounts/:id/withdrawals", h.Withdraw)
	writes.POST("/accounts/:id/transfers", h.Transfer)
	r.GET("/transactions/:id", h.GetByID)
	return r
}

func TestTransactionHandler_Deposit(t *testing.T) {
	t.Run("HeaderKeyWins", func(t *testing.T) {
		svc := new(MockTransactionService)
		accountID := uuid.New()
		txID := uuid.New()
		svc.On("Execute", mock.Anything, transaction.TypeDeposit, mock.MatchedBy(func(req ledger.Request) bool {
			return req.IdempotencyKey == "header-key" &&
				req.AccountID == accountID &&
				req.Amount == 2500 &&
				req.CorrelationID == "corr-42"
		})).Return(&ledger.Result{TransactionID: txID, AccountID: accountID, NewBalance: 7500, IdempotencyKey: "header-key"}, nil)

		rr := doRequest(newTransactionRouter(svc), http.MethodPost, "/accounts/"+accountID.String()+"/deposits",
			MovementRequest{Amount: 2500, IdempotencyKey: "body-key"},
			map[string]string{middleware.IdempotencyKeyHeader: "header-key", middleware.CorrelationIDHeader: "corr-42"})

		assert.Equal(t, http.StatusCreated, rr.Code)
		var body ResultResponse
		envelope := decodeData(t, rr, &body)
		assert.Equal(t, txID.String(), body.TransactionID)
		assert.Equal(t, "75.00", body.NewBalanceDisplay)
		assert.Equal(t, "corr-42", envelope.CorrelationID)
		svc.AssertExpectations(t)
	})

	t.Run("ReplayAnswers200", func(t *testing.T) {
		svc := new(MockTransactionService)
		accountID := uuid.New()
		svc.On("Execute", mock.Anything, transaction.TypeDeposit, mock.MatchedBy(func(req ledger.Request) bool {
			return req.IdempotencyKey == "body-key"
		})).Return(&ledger.Result{TransactionID: uuid.New(), AccountID: accountID, NewBalance: 100, Replayed: true}, nil)

		rr := doRequest(newTransactionRouter(svc), http.MethodPost, "/accounts/"+accountID.String()+"/deposits",
			MovementRequest{Amount: 100, IdempotencyKey: "body-key"}, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var body ResultResponse
		decodeData(t, rr, &body)
		assert.True(t, body.Replayed)
	})

	t.Run("ZeroAmount", func(t *testing.T) {
		svc := new(MockTransactionService)
		rr := doRequest(newTransactionRouter(svc), http.MethodPost, "/accounts/"+uuid.NewString()+"/deposits", `{"amount": 0}`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("BodyKeyTooLong", func(t *testing.T) {
		svc := new(MockTransactionService)
		rr := doRequest(newTransactionRouter(svc), http.MethodPost, "/accounts/"+uuid.NewString()+"/deposits",
			MovementRequest{Amount: 10, IdempotencyKey: strings.Repeat("k", middleware.MaxIdempotencyKeyLen+1)}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		envelope := decodeData(t, rr, nil)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "INVALID_IDEMPOTENCY_KEY", envelope.Error.Code)
	})
}

func TestTransactionHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"insufficient funds", ledger.ErrInsufficientFunds, http.StatusConflict, "INSUFFICIENT_FUNDS"},
		{"inactive account", ledger.ErrAccountNotActive, http.StatusConflict, "ACCOUNT_NOT_ACTIVE"},
		{"above limit", ledger.ErrAmountAboveLimit, http.StatusBadRequest, "AMOUNT_ABOVE_LIMIT"},
		{"unknown account", ledger.ErrAccountNotFound, http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
		{"key reused", ledger.ErrIdempotencyKeyReused, http.StatusConflict, "IDEMPOTENCY_KEY_MISMATCH"},
		{"retries exhausted", ledger.ErrConflictRetriesExhausted, http.StatusServiceUnavailable, "CONCURRENT_UPDATE_CONFLICT"},
		{"internal", assert.AnError, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockTransactionService)
			svc.On("Execute", mock.Anything, transaction.TypeWithdrawal, mock.Anything).Return(nil, tc.err)

			rr := doRequest(newTransactionRouter(svc), http.MethodPost, "/accounts/"+uuid.NewString()+"/withdrawals", MovementRequest{Amount: 950}, nil)

			assert.Equal(t, tc.wantCode, rr.Code)
			envelope := decodeData(t, rr, nil)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tc.wantErr, envelope.Error.Code)
		})
	}
}

func TestTransactionHandler_Transfer(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockTransactionService)
		source := uuid.New()
		svc.On("Execute", mock.Anything, transaction.TypeTransfer, mock.MatchedBy(func(req ledger.Request) bool {
			return req.AccountID == source && req.DestinationNumber == "5000000002" && req.Amount == 2000
		})).Return(&ledger.Result{TransactionID: uuid.New(), AccountID: source, NewBalance: 3000}, nil)

		rr := doRequest(newTransactionRouter(svc), http.MethodPost, "/accounts/"+source.String()+"/transfers",
			TransferRequest{DestinationNumber: "5000000002", Amount: 2000}, nil)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var body ResultResponse
		decodeData(t, rr, &body)
		assert.Equal(t, int64(3000), body.NewBalance)
	})

	t.Run("MissingDestination", func(t *testing.T) {
		svc := new(MockTransactionService)
		rr := doRequest(newTransactionRouter(svc), http.MethodPost, "/accounts/"+uuid.NewString()+"/transfers", `{"amount": 10}`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("InvalidHeaderKey", func(t *testing.T) {
		svc := new(MockTransactionService)
		rr := doRequest(newTransactionRouter(svc), http.MethodPost, "/accounts/"+uuid.NewString()+"/transfers",
			TransferRequest{DestinationNumber: "5000000002", Amount: 10},
			map[string]string{middleware.IdempotencyKeyHeader: "bad\tkey"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTransactionHandler_GetByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockTransactionService)
		tx, err := transaction.NewDeposit(uuid.New(), 125, 125, "salary", "k")
		require.NoError(t, err)
		svc.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)

		rr := doRequest(newTransactionRouter(svc), http.MethodGet, "/transactions/"+tx.ID.String(), nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var body TransactionResponse
		decodeData(t, rr, &body)
		assert.Equal(t, "salary", body.Description)
		assert.Equal(t, "credit", body.Direction)
		assert.Equal(t, "1.25", body.AmountDisplay)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockTransactionService)
		id := uuid.New()
		svc.On("GetTransaction", mock.Anything, id).Return(nil, ledger.ErrTransactionNotFound)

		rr := doRequest(newTransactionRouter(svc), http.MethodGet, "/transactions/"+id.String(), nil, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		rr := doRequest(newTransactionRouter(new(MockTransactionService)), http.MethodGet, "/transactions/123", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
