// Package reconciliation verifies that stored balances agree with the
// transaction log. It only reads; discrepancies are reported, never repaired.
package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/transaction"
	"github.com/ledger-core/internal/ledger"
	"golang.org/x/sync/errgroup"
)

const listBatchSize = 500

type IssueKind string

const (
	// IssueReplayMismatch: the sum of signed amounts differs from the balance.
	IssueReplayMismatch IssueKind = "REPLAY_MISMATCH"
	// IssueSnapshotMismatch: the newest record's resulting balance differs from the balance.
	IssueSnapshotMismatch IssueKind = "SNAPSHOT_MISMATCH"
	// IssueUnpairedTransfer: a transfer leg has no matching opposite leg.
	IssueUnpairedTransfer IssueKind = "UNPAIRED_TRANSFER"
)

type Issue struct {
	Kind          IssueKind
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	Expected      int64
	Actual        int64
}

type Report struct {
	AccountsChecked int
	Issues          []Issue
	StartedAt       time.Time
	FinishedAt      time.Time
}

func (r *Report) Clean() bool { return len(r.Issues) == 0 }

type Reconciler struct {
	store       ledger.Store
	accounts    account.Repository
	concurrency int
	logger      *slog.Logger
}

// NewReconciler builds a reconciler. accounts is only used to page through
// account ids; every check runs in its own transaction on store.
func NewReconciler(store ledger.Store, accounts account.Repository, concurrency int, logger *slog.Logger) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{
		store:       store,
		accounts:    accounts,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run checks every account, at most concurrency at a time.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now().UTC()}

	var mu sync.Mutex
	record := func(issues []Issue) {
		mu.Lock()
		report.AccountsChecked++
		report.Issues = append(report.Issues, issues...)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	after := uuid.Nil
	for {
		ids, err := r.accounts.ListIDs(gctx, after, listBatchSize)
		if err != nil {
			_ = g.Wait()
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}
		for _, id := range ids {
			g.Go(func() error {
				issues, err := r.CheckAccount(gctx, id)
				if err != nil {
					return err
				}
				record(issues)
				return nil
			})
		}
		if len(ids) < listBatchSize {
			break
		}
		after = ids[len(ids)-1]
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// CheckAccount replays the account's records and checks its transfer legs.
// The account row stays locked for the duration of the check, so writes to
// it wait and the balance, the replay and the snapshot all agree on one state.
func (r *Reconciler) CheckAccount(ctx context.Context, id uuid.UUID) ([]Issue, error) {
	var issues []Issue
	err := r.store.RunInTx(ctx, func(ctx context.Context, repos ledger.Repositories) error {
		acc, err := repos.Accounts.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		issues, err = r.check(ctx, repos.Transactions, acc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *Reconciler) check(ctx context.Context, txs transaction.Repository, acc *account.Account) ([]Issue, error) {
	var issues []Issue

	replay, err := txs.Replay(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	if replay.Sum != acc.Balance {
		issues = append(issues, Issue{Kind: IssueReplayMismatch, AccountID: acc.ID, Expected: acc.Balance, Actual: replay.Sum})
	}

	latest, err := txs.Query(ctx, transaction.Filter{
		AccountID: acc.ID,
		Status:    transaction.StatusCompleted,
		Limit:     1,
		Order:     transaction.OrderNewestFirst,
	})
	if err != nil {
		return nil, err
	}
	if len(latest) == 1 && latest[0].ResultingBalance != acc.Balance {
		issues = append(issues, Issue{
			Kind:          IssueSnapshotMismatch,
			AccountID:     acc.ID,
			TransactionID: latest[0].ID,
			Expected:      acc.Balance,
			Actual:        latest[0].ResultingBalance,
		})
	}

	transferIssues, err := checkTransfers(ctx, txs, acc.ID)
	if err != nil {
		return nil, err
	}
	return append(issues, transferIssues...), nil
}

// checkTransfers verifies that every debit leg on the account has exactly one
// credit leg with the same correlation id and amount on its destination.
// Credit legs are checked from the source account's side. Both legs commit
// together, so a committed debit can be checked without locking the destination.
func checkTransfers(ctx context.Context, txs transaction.Repository, id uuid.UUID) ([]Issue, error) {
	debits, err := txs.Query(ctx, transaction.Filter{
		AccountID: id,
		Types:     []transaction.Type{transaction.TypeTransfer},
		Order:     transaction.OrderOldestFirst,
	})
	if err != nil {
		return nil, err
	}

	var issues []Issue
	for _, leg := range debits {
		if leg.Direction != transaction.DirectionDebit {
			continue
		}
		legs, err := txs.GetByCorrelationID(ctx, leg.CorrelationID)
		if err != nil {
			return nil, err
		}
		if !paired(leg, legs) {
			issues = append(issues, Issue{Kind: IssueUnpairedTransfer, AccountID: id, TransactionID: leg.ID, Expected: leg.Amount})
		}
	}
	return issues, nil
}

func paired(debit *transaction.Transaction, legs []*transaction.Transaction) bool {
	credits := 0
	for _, l := range legs {
		if l.Direction != transaction.DirectionCredit {
			continue
		}
		if l.Amount != debit.Amount || debit.DestinationAccountID == nil || l.AccountID != *debit.DestinationAccountID {
			return false
		}
		credits++
	}
	return credits == 1
}

// Start runs a pass immediately and then every interval until ctx is done.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.runOnce(ctx)
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	report, err := r.Run(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("Reconciliation pass failed", "error", err)
		}
		return
	}
	if report.Clean() {
		r.logger.Info("Reconciliation pass clean", "accounts", report.AccountsChecked, "duration", report.FinishedAt.Sub(report.StartedAt))
		return
	}
	for _, issue := range report.Issues {
		r.logger.Error("Ledger discrepancy",
			"kind", string(issue.Kind),
			"account_id", issue.AccountID.String(),
			"transaction_id", issue.TransactionID.String(),
			"expected", issue.Expected,
			"actual", issue.Actual)
	}
}
