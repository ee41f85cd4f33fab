package operation

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
)

func TestRequest_Validate(t *testing.T) {
	valid := func() Request {
		return Request{
			IdempotencyKey:    "key",
			Type:              transaction.TypeTransfer,
			AccountID:         uuid.New(),
			DestinationNumber: "1234567890",
			Amount:            100,
		}
	}

	tests := []struct {
		name   string
		mutate func(r *Request)
		want   error
	}{
		{"valid", func(r *Request) {}, nil},
		{"missing key", func(r *Request) { r.IdempotencyKey = "" }, ErrMissingIdempotencyKey},
		{"bad type", func(r *Request) { r.Type = "refund" }, ErrInvalidType},
		{"missing account", func(r *Request) { r.AccountID = uuid.Nil }, ErrMissingAccount},
		{"transfer without destination", func(r *Request) { r.DestinationNumber = "" }, ErrMissingDestination},
		{"deposit without destination", func(r *Request) {
			r.Type = transaction.TypeDeposit
			r.DestinationNumber = ""
		}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := valid()
			tc.mutate(&r)
			err := r.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewPendingResult(t *testing.T) {
	req := &Request{IdempotencyKey: "k1", Type: transaction.TypeDeposit, AccountID: uuid.New(), Amount: 500, CorrelationID: "c"}
	res := NewPendingResult(req)

	assert.Equal(t, "k1", res.IdempotencyKey)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, req.AccountID, res.AccountID)
	assert.Nil(t, res.TransactionID)
	assert.Nil(t, res.CompletedAt)
	assert.False(t, res.SubmittedAt.IsZero())
}

func TestErrors(t *testing.T) {
	assert.True(t, errors.Is(ErrResultNotFound{Key: "a"}, ErrResultNotFound{}))
	assert.False(t, errors.Is(ErrResultNotFound{Key: "a"}, ErrResultNotFound{Key: "b"}))
	assert.True(t, errors.Is(ErrDuplicateOperation{Key: "a"}, ErrDuplicateOperation{}))
}
