// Package statement reads an account's transaction history. It never writes.
package statement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/activity"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// reads of a page against one account version before giving up
	snapshotAttempts = 3
)

// ErrSummaryUnavailable is returned by Summary when no projection store is configured.
var ErrSummaryUnavailable = errors.New("activity summary is not available")

// Page is one page of an account's records, newest first.
type Page struct {
	Records    []*transaction.Transaction
	TotalCount int64
	Page       int
	PageSize   int
}

type Reader struct {
	accounts     account.Repository
	transactions transaction.Repository
	activity     activity.Repository
	logger       *slog.Logger
}

// NewReader builds a reader. activities may be nil, in which case Summary
// reports ErrSummaryUnavailable.
func NewReader(accounts account.Repository, transactions transaction.Repository, activities activity.Repository, logger *slog.Logger) *Reader {
	return &Reader{
		accounts:     accounts,
		transactions: transactions,
		activity:     activities,
		logger:       logger,
	}
}

// Normalize clamps page to at least 1 and pageSize to [1, MaxPageSize],
// substituting DefaultPageSize for non-positive sizes.
func Normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// ListTransactions returns one page of the account's records, newest first,
// together with the total number of records for the account.
func (r *Reader) ListTransactions(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*Page, error) {
	_, p, _, err := r.consistentPage(ctx, accountID, page, pageSize)
	return p, err
}

// consistentPage reads the account, the page and the account again, and
// repeats while the account version moves between the two account reads.
// Every balance change bumps the version in the same commit that appends its
// records, so an unchanged version means the page and the account agree.
// stable is false when every attempt overlapped a write.
func (r *Reader) consistentPage(ctx context.Context, accountID uuid.UUID, page, pageSize int) (acc *account.Account, p *Page, stable bool, err error) {
	acc, err = r.account(ctx, accountID)
	if err != nil {
		return nil, nil, false, err
	}
	for attempt := 0; attempt < snapshotAttempts; attempt++ {
		p, err = r.page(ctx, accountID, page, pageSize)
		if err != nil {
			return nil, nil, false, err
		}
		after, err := r.account(ctx, accountID)
		if err != nil {
			return nil, nil, false, err
		}
		if after.Version == acc.Version {
			return after, p, true, nil
		}
		acc = after
	}
	return acc, p, false, nil
}

func (r *Reader) page(ctx context.Context, accountID uuid.UUID, page, pageSize int) (*Page, error) {
	page, pageSize = Normalize(page, pageSize)

	filter := transaction.Filter{AccountID: accountID}
	total, err := r.transactions.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	filter.Order = transaction.OrderNewestFirst
	records, err := r.transactions.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &Page{
		Records:    records,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// GetTransaction returns a single record by id.
func (r *Reader) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	tx, err := r.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound{}) {
			return nil, fmt.Errorf("%w: %w", ledger.ErrTransactionNotFound, err)
		}
		return nil, err
	}
	return tx, nil
}

// Summary totals the account's activity from the read-side projection. The
// projection trails the ledger by at most one outbox polling interval.
func (r *Reader) Summary(ctx context.Context, accountID uuid.UUID) (*activity.Summary, error) {
	if _, err := r.account(ctx, accountID); err != nil {
		return nil, err
	}
	if r.activity == nil {
		return nil, ErrSummaryUnavailable
	}
	return r.activity.Summarize(ctx, accountID)
}

func (r *Reader) account(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	if accountID == uuid.Nil {
		return nil, ledger.ErrMissingAccount
	}
	acc, err := r.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			return nil, fmt.Errorf("%w: %w", ledger.ErrAccountNotFound, err)
		}
		return nil, err
	}
	return acc, nil
}
