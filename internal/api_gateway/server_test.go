package api_gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledger-core/internal/api_gateway/service"
	"github.com/ledger-core/internal/config"
	"github.com/ledger-core/internal/data/memory"
	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noOperations struct{}

func (noOperations) Submit(context.Context, *operation.Request) (*operation.Result, bool, error) {
	return nil, false, service.ErrIntakeUnavailable
}

func (noOperations) GetResult(_ context.Context, key string) (*operation.Result, error) {
	return nil, operation.ErrResultNotFound{Key: key}
}

type envelope struct {
	Data          json.RawMessage `json:"data"`
	CorrelationID string          `json:"correlation_id"`
	Error         *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := memory.NewStore(logger)
	policy := ledger.DefaultPolicy()
	policy.MinimumBalance = 100
	engine := ledger.NewEngine(store, store.Accounts(), policy, logger)
	reader := statement.NewReader(store.Accounts(), store.Transactions(), nil, logger)

	cfg := &config.Config{Server: config.ServerConfig{
		Port:            8080,
		ShutdownTimeout: time.Second,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
	}}
	return NewServer(logger, cfg,
		service.NewAccountService(logger, engine, reader),
		service.NewTransactionService(logger, engine, reader),
		noOperations{},
	)
}

func call(t *testing.T, s *Server, method, path string, body any, headers map[string]string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr.Code, env
}

func TestServer_LedgerFlow(t *testing.T) {
	s := newTestServer(t)

	open := func(balance int64) (string, string) {
		code, env := call(t, s, http.MethodPost, "/api/v1/accounts", map[string]any{"owner_id": "owner", "initial_balance": balance}, nil)
		require.Equal(t, http.StatusCreated, code)
		var acc struct {
			ID     string `json:"id"`
			Number string `json:"number"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &acc))
		return acc.ID, acc.Number
	}

	a, _ := open(5000)
	b, bNumber := open(3000)

	code, env := call(t, s, http.MethodPost, "/api/v1/accounts/"+a+"/transfers",
		map[string]any{"destination_number": bNumber, "amount": 2000},
		map[string]string{"Idempotency-Key": "t-1", "X-Correlation-ID": "flow-1"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "flow-1", env.CorrelationID)

	// same key again replays
	code, _ = call(t, s, http.MethodPost, "/api/v1/accounts/"+a+"/transfers",
		map[string]any{"destination_number": bNumber, "amount": 2000},
		map[string]string{"Idempotency-Key": "t-1"})
	assert.Equal(t, http.StatusOK, code)

	balance := func(id string) int64 {
		code, env := call(t, s, http.MethodGet, "/api/v1/accounts/"+id+"/balance", nil, nil)
		require.Equal(t, http.StatusOK, code)
		var body struct {
			Balance int64 `json:"balance"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &body))
		return body.Balance
	}
	assert.Equal(t, int64(3000), balance(a))
	assert.Equal(t, int64(5000), balance(b))

	code, env = call(t, s, http.MethodPost, "/api/v1/accounts/"+a+"/withdrawals", map[string]any{"amount": 2950}, nil)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INSUFFICIENT_FUNDS", env.Error.Code)

	code, env = call(t, s, http.MethodGet, "/api/v1/accounts/"+a+"/statement", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var st struct {
		Reconciled bool `json:"reconciled"`
		Lines      []struct {
			BalanceBefore int64 `json:"balance_before"`
			BalanceAfter  int64 `json:"balance_after"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Reconciled)
	require.Len(t, st.Lines, 2)
	assert.Equal(t, int64(5000), st.Lines[0].BalanceBefore)
	assert.Equal(t, int64(3000), st.Lines[0].BalanceAfter)

	code, _ = call(t, s, http.MethodGet, "/api/v1/accounts/"+a+"/summary", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = call(t, s, http.MethodGet, "/api/v1/operations/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_HealthAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	code, _ := call(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env := call(t, s, http.MethodGet, "/api/v1/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.NotEmpty(t, env.CorrelationID)
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := newTestServer(t)
	assert.NoError(t, s.Stop(context.Background()))
}
