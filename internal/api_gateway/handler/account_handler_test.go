package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/activity"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testAccount(balance int64) *account.Account {
	now := time.Now().UTC()
	return &account.Account{
		ID:        uuid.New(),
		Number:    "4000000001",
		OwnerID:   "owner-1",
		Balance:   balance,
		Status:    account.StatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newAccountRouter(svc *MockAccountService) *gin.Engine {
	h := NewAccountHandler(newTestLogger(), svc)
	r := setupTestRouter()
	r.POST("/accounts", h.Open)
	r.GET("/accounts/:id", h.GetByID)
	r.GET("/accounts/:id/balance", h.Balance)
	r.POST("/accounts/:id/close", h.Close)
	r.GET("/accounts/:id/transactions", h.Transactions)
	r.GET("/accounts/:id/statement", h.Statement)
	r.GET("/accounts/:id/summary", h.Summary)
	return r
}

func TestAccountHandler_Open(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockAccountService)
		acc := testAccount(12345)
		svc.On("OpenAccount", mock.Anything, "owner-1", int64(12345)).Return(acc, nil)

		rr := doRequest(newAccountRouter(svc), http.MethodPost, "/accounts", OpenAccountRequest{OwnerID: "owner-1", InitialBalance: 12345}, nil)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var body AccountResponse
		decodeData(t, rr, &body)
		assert.Equal(t, acc.ID.String(), body.ID)
		assert.Equal(t, "4000000001", body.Number)
		assert.Equal(t, "123.45", body.BalanceDisplay)
		assert.Equal(t, "active", body.Status)
		svc.AssertExpectations(t)
	})

	t.Run("MissingOwner", func(t *testing.T) {
		svc := new(MockAccountService)
		rr := doRequest(newAccountRouter(svc), http.MethodPost, "/accounts", `{"initial_balance": 10}`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "OpenAccount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NegativeBalance", func(t *testing.T) {
		svc := new(MockAccountService)
		rr := doRequest(newAccountRouter(svc), http.MethodPost, "/accounts", `{"owner_id": "o", "initial_balance": -1}`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ServiceError", func(t *testing.T) {
		svc := new(MockAccountService)
		svc.On("OpenAccount", mock.Anything, "owner-1", int64(0)).Return(nil, errors.New("db down"))

		rr := doRequest(newAccountRouter(svc), http.MethodPost, "/accounts", OpenAccountRequest{OwnerID: "owner-1"}, nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		envelope := decodeData(t, rr, nil)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", envelope.Error.Code)
	})
}

func TestAccountHandler_GetByID(t *testing.T) {
	tests := []struct {
		name     string
		path     func(id uuid.UUID) string
		err      error
		wantCode int
		wantErr  string
	}{
		{"Success", func(id uuid.UUID) string { return "/accounts/" + id.String() }, nil, http.StatusOK, ""},
		{"InvalidID", func(uuid.UUID) string { return "/accounts/not-a-uuid" }, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"NotFound", func(id uuid.UUID) string { return "/accounts/" + id.String() },
			fmt.Errorf("%w: %w", ledger.ErrAccountNotFound, account.ErrAccountNotFound{}), http.StatusNotFound, "ACCOUNT_NOT_FOUND"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockAccountService)
			acc := testAccount(500)
			if tc.err != nil {
				svc.On("GetAccount", mock.Anything, acc.ID).Return(nil, tc.err)
			} else {
				svc.On("GetAccount", mock.Anything, acc.ID).Return(acc, nil)
			}

			rr := doRequest(newAccountRouter(svc), http.MethodGet, tc.path(acc.ID), nil, nil)

			assert.Equal(t, tc.wantCode, rr.Code)
			var body AccountResponse
			if tc.wantErr == "" {
				decodeData(t, rr, &body)
				assert.Equal(t, acc.ID.String(), body.ID)
				return
			}
			envelope := decodeData(t, rr, nil)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tc.wantErr, envelope.Error.Code)
		})
	}
}

func TestAccountHandler_Balance(t *testing.T) {
	svc := new(MockAccountService)
	id := uuid.New()
	svc.On("GetBalance", mock.Anything, id).Return(int64(250075), nil)

	rr := doRequest(newAccountRouter(svc), http.MethodGet, "/accounts/"+id.String()+"/balance", nil, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body BalanceResponse
	decodeData(t, rr, &body)
	assert.Equal(t, int64(250075), body.Balance)
	assert.Equal(t, "2500.75", body.BalanceDisplay)
}

func TestAccountHandler_Close(t *testing.T) {
	t.Run("Closed", func(t *testing.T) {
		svc := new(MockAccountService)
		acc := testAccount(0)
		acc.Status = account.StatusClosed
		svc.On("CloseAccount", mock.Anything, acc.ID).Return(acc, nil)

		rr := doRequest(newAccountRouter(svc), http.MethodPost, "/accounts/"+acc.ID.String()+"/close", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var body AccountResponse
		decodeData(t, rr, &body)
		assert.Equal(t, "closed", body.Status)
	})

	t.Run("BalanceRemaining", func(t *testing.T) {
		svc := new(MockAccountService)
		id := uuid.New()
		svc.On("CloseAccount", mock.Anything, id).Return(nil, ledger.ErrAccountNotEmpty)

		rr := doRequest(newAccountRouter(svc), http.MethodPost, "/accounts/"+id.String()+"/close", nil, nil)

		assert.Equal(t, http.StatusConflict, rr.Code)
		envelope := decodeData(t, rr, nil)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "ACCOUNT_NOT_EMPTY", envelope.Error.Code)
	})
}

func TestAccountHandler_Transactions(t *testing.T) {
	t.Run("Paginated", func(t *testing.T) {
		svc := new(MockAccountService)
		id := uuid.New()
		tx, err := transaction.NewDeposit(id, 100, 600, "", "")
		require.NoError(t, err)
		svc.On("ListTransactions", mock.Anything, id, 2, 5).Return(&statement.Page{
			Records:    []*transaction.Transaction{tx},
			TotalCount: 6,
			Page:       2,
			PageSize:   5,
		}, nil)

		rr := doRequest(newAccountRouter(svc), http.MethodGet, "/accounts/"+id.String()+"/transactions?page=2&per_page=5", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var body []TransactionResponse
		envelope := decodeData(t, rr, &body)
		require.Len(t, body, 1)
		assert.Equal(t, "deposit", body[0].Type)
		assert.Equal(t, "1.00", body[0].AmountDisplay)
		require.NotNil(t, envelope.Meta)
		assert.Equal(t, 2, envelope.Meta.TotalPages)
		assert.Equal(t, 6, envelope.Meta.TotalItems)
	})

	t.Run("PageSizeTooLarge", func(t *testing.T) {
		svc := new(MockAccountService)
		rr := doRequest(newAccountRouter(svc), http.MethodGet, "/accounts/"+uuid.NewString()+"/transactions?per_page=500", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "ListTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAccountHandler_Statement(t *testing.T) {
	svc := new(MockAccountService)
	acc := testAccount(900)
	tx, err := transaction.NewWithdrawal(acc.ID, 100, 900, "", "")
	require.NoError(t, err)
	svc.On("Statement", mock.Anything, acc.ID, 1, 10).Return(&statement.Statement{
		Account: acc,
		Lines: []statement.Line{{
			Transaction:   tx,
			BalanceBefore: 1000,
			BalanceAfter:  900,
			Reconciled:    true,
			Description:   "Cash Withdrawal",
		}},
		TotalCount: 1,
		Page:       1,
		PageSize:   10,
		Reconciled: true,
	}, nil)

	rr := doRequest(newAccountRouter(svc), http.MethodGet, "/accounts/"+acc.ID.String()+"/statement", nil, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body StatementResponse
	decodeData(t, rr, &body)
	assert.True(t, body.Reconciled)
	require.Len(t, body.Lines, 1)
	assert.Equal(t, int64(1000), body.Lines[0].BalanceBefore)
	assert.Equal(t, int64(900), body.Lines[0].BalanceAfter)
	assert.Equal(t, "Cash Withdrawal", body.Lines[0].Description)
}

func TestAccountHandler_Summary(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockAccountService)
		id := uuid.New()
		svc.On("Summary", mock.Anything, id).Return(&activity.Summary{AccountID: id, TotalDeposits: 700, EntryCount: 3}, nil)

		rr := doRequest(newAccountRouter(svc), http.MethodGet, "/accounts/"+id.String()+"/summary", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var body SummaryResponse
		decodeData(t, rr, &body)
		assert.Equal(t, int64(700), body.TotalDeposits)
		assert.Equal(t, int64(3), body.EntryCount)
	})

	t.Run("ProjectionNotConfigured", func(t *testing.T) {
		svc := new(MockAccountService)
		id := uuid.New()
		svc.On("Summary", mock.Anything, id).Return(nil, statement.ErrSummaryUnavailable)

		rr := doRequest(newAccountRouter(svc), http.MethodGet, "/accounts/"+id.String()+"/summary", nil, nil)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		envelope := decodeData(t, rr, nil)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "SUMMARY_UNAVAILABLE", envelope.Error.Code)
	})
}
