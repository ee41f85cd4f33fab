package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledger-core/internal/domain/operation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessOperation(ctx context.Context, request *operation.Request) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func TestWorkerPoolProcessingService_ProcessOperation(t *testing.T) {
	ctx := context.Background()
	base := &MockProcessingService{}
	svc, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 2}, newTestLogger())
	require.NoError(t, err)
	defer svc.Shutdown()

	assert.Equal(t, 2, svc.Capacity())

	req := testRequest()
	base.On("ProcessOperation", ctx, mock.MatchedBy(func(r *operation.Request) bool {
		return r.IdempotencyKey == req.IdempotencyKey
	})).Return(nil).Once()
	require.NoError(t, svc.ProcessOperation(ctx, req))

	failing := testRequest()
	failing.IdempotencyKey = "op-2"
	baseErr := errors.New("engine unavailable")
	base.On("ProcessOperation", ctx, mock.MatchedBy(func(r *operation.Request) bool {
		return r.IdempotencyKey == "op-2"
	})).Return(baseErr).Once()
	assert.ErrorIs(t, svc.ProcessOperation(ctx, failing), baseErr)

	base.AssertExpectations(t)
}

type countingService struct {
	active, peak atomic.Int32
}

func (c *countingService) ProcessOperation(ctx context.Context, request *operation.Request) error {
	n := c.active.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	c.active.Add(-1)
	return nil
}

func TestWorkerPoolProcessingService_BoundsConcurrency(t *testing.T) {
	base := &countingService{}
	svc, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 3}, newTestLogger())
	require.NoError(t, err)
	defer svc.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.ProcessOperation(context.Background(), testRequest()))
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, base.peak.Load(), int32(3))
	assert.Positive(t, base.peak.Load())
}

func TestWorkerPoolProcessingService_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	base := &MockProcessingService{}
	base.On("ProcessOperation", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) { <-release })

	svc, err := NewWorkerPoolProcessingService(base, WorkerPoolConfig{Size: 1}, newTestLogger())
	require.NoError(t, err)
	defer svc.Shutdown()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.ProcessOperation(ctx, testRequest()), context.DeadlineExceeded)
}
