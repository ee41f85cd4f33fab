// Package ledger applies deposits, withdrawals and transfers to accounts.
//
// Each operation validates its input, then runs one storage transaction that
// locks the involved accounts in ascending id order, replays the operation if
// its idempotency key was already applied, checks business rules on the locked
// state, swaps balances with compare-and-swap and appends the transaction
// records together with their outbox messages. Attempts that lose a race with
// a concurrent writer are retried with exponential backoff.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/outbox"
	"github.com/ledger-core/internal/domain/transaction"
)

const openingBalanceDescription = "Opening balance"

// Repositories are bound to a single storage transaction.
type Repositories struct {
	Accounts     account.Repository
	Transactions transaction.Repository
	Outbox       outbox.Repository // optional
}

// Store runs fn in one storage transaction. A nil return commits everything
// fn did through repos; any error rolls it all back. Locks taken through
// repos.Accounts.LockForUpdate are held until fn returns.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Request describes one balance-changing operation.
type Request struct {
	// IdempotencyKey identifies the logical operation. One is generated when empty.
	IdempotencyKey    string
	AccountID         uuid.UUID
	DestinationNumber string // transfers only
	Amount            int64
	Description       string
	CorrelationID     string // request trace id, logged only
}

// Result is the outcome of an applied (or replayed) operation. For transfers
// TransactionID is the debit leg and NewBalance the source balance.
type Result struct {
	TransactionID  uuid.UUID
	AccountID      uuid.UUID
	NewBalance     int64
	IdempotencyKey string
	Replayed       bool
}

// OpenAccountRequest opens an account, optionally funded with an opening deposit.
type OpenAccountRequest struct {
	OwnerID        string
	InitialBalance int64
	CorrelationID  string
}

type Engine struct {
	store    Store
	accounts account.Repository
	policy   Policy
	logger   *slog.Logger
}

// NewEngine builds an engine. accounts serves reads that need no lock.
func NewEngine(store Store, accounts account.Repository, policy Policy, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		accounts: accounts,
		policy:   policy,
		logger:   logger,
	}
}

func (e *Engine) Policy() Policy { return e.policy }

func (e *Engine) Deposit(ctx context.Context, req Request) (*Result, error) {
	return e.execute(ctx, transaction.TypeDeposit, req)
}

func (e *Engine) Withdraw(ctx context.Context, req Request) (*Result, error) {
	return e.execute(ctx, transaction.TypeWithdrawal, req)
}

func (e *Engine) Transfer(ctx context.Context, req Request) (*Result, error) {
	return e.execute(ctx, transaction.TypeTransfer, req)
}

// Execute dispatches on typ; used by the asynchronous intake.
func (e *Engine) Execute(ctx context.Context, typ transaction.Type, req Request) (*Result, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, typ)
	}
	return e.execute(ctx, typ, req)
}

// GetBalance returns the committed balance.
func (e *Engine) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	acc, err := e.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (e *Engine) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	if accountID == uuid.Nil {
		return nil, ErrMissingAccount
	}
	acc, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, mapAccountErr(err, ErrAccountNotFound)
	}
	return acc, nil
}

// OpenAccount creates an account with a fresh number. A positive initial
// balance is posted as an opening deposit in the same storage transaction.
func (e *Engine) OpenAccount(ctx context.Context, req OpenAccountRequest) (*account.Account, error) {
	if req.OwnerID == "" {
		return nil, ErrInvalidOwner
	}
	if req.InitialBalance < 0 {
		return nil, ErrInvalidAmount
	}
	if req.InitialBalance > e.policy.DepositCeiling {
		return nil, ErrAmountAboveLimit
	}

	logger := e.logger.With("owner_id", req.OwnerID, "correlation_id", req.CorrelationID)

	acc, err := retry(ctx, e, logger, func() (*account.Account, error) {
		acc, err := account.NewAccount(req.OwnerID, account.GenerateNumber(), e.policy.NewAccountStatus)
		if err != nil {
			return nil, err
		}
		err = e.store.RunInTx(ctx, func(ctx context.Context, repos Repositories) error {
			if err := repos.Accounts.Create(ctx, acc); err != nil {
				return err
			}
			if req.InitialBalance == 0 {
				return nil
			}
			if err := repos.Accounts.CompareAndSwapBalance(ctx, acc.ID, 0, req.InitialBalance); err != nil {
				return err
			}
			record, err := transaction.NewDeposit(acc.ID, req.InitialBalance, req.InitialBalance, openingBalanceDescription, "")
			if err != nil {
				return err
			}
			return appendRecords(ctx, repos, record)
		})
		if err != nil {
			return nil, err
		}
		if req.InitialBalance > 0 {
			acc.Balance = req.InitialBalance
			acc.Version++
		}
		return acc, nil
	})
	if err != nil {
		logger.Warn("Failed to open account", "error", err)
		return nil, err
	}

	logger.Info("Account opened", "account_id", acc.ID.String(), "number", acc.Number, "balance", acc.Balance)
	return acc, nil
}

// CloseAccount marks an account closed. The balance must be zero and no
// pending records may exist. Accounts are never deleted.
func (e *Engine) CloseAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	if accountID == uuid.Nil {
		return nil, ErrMissingAccount
	}

	var closed *account.Account
	_, err := retry(ctx, e, e.logger, func() (struct{}, error) {
		return struct{}{}, e.store.RunInTx(ctx, func(ctx context.Context, repos Repositories) error {
			acc, err := repos.Accounts.LockForUpdate(ctx, accountID)
			if err != nil {
				return mapAccountErr(err, ErrAccountNotFound)
			}
			if acc.IsClosed() {
				return ErrAccountClosed
			}
			if acc.Balance != 0 {
				return ErrAccountNotEmpty
			}
			pending, err := repos.Transactions.Count(ctx, transaction.Filter{AccountID: accountID, Status: transaction.StatusPending})
			if err != nil {
				return err
			}
			if pending > 0 {
				return ErrPendingTransactions
			}
			if err := repos.Accounts.UpdateStatus(ctx, accountID, account.StatusClosed); err != nil {
				return err
			}
			acc.Status = account.StatusClosed
			acc.Version++
			closed = acc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Account closed", "account_id", accountID.String())
	return closed, nil
}

func (e *Engine) execute(ctx context.Context, typ transaction.Type, req Request) (*Result, error) {
	if err := e.validate(typ, &req); err != nil {
		return nil, err
	}

	logger := e.logger.With(
		"operation", string(typ),
		"account_id", req.AccountID.String(),
		"idempotency_key", req.IdempotencyKey,
		"correlation_id", req.CorrelationID,
	)

	res, err := retry(ctx, e, logger, func() (*Result, error) {
		var res *Result
		err := e.store.RunInTx(ctx, func(ctx context.Context, repos Repositories) error {
			var err error
			res, err = e.apply(ctx, repos, typ, req)
			return err
		})
		return res, err
	})
	if err != nil {
		logger.Warn("Ledger operation rejected", "amount", req.Amount, "kind", KindOf(err).String(), "error", err)
		return nil, err
	}

	logger.Info("Ledger operation applied",
		"transaction_id", res.TransactionID.String(),
		"amount", req.Amount,
		"new_balance", res.NewBalance,
		"replayed", res.Replayed,
	)
	return res, nil
}

// validate rejects malformed requests before any storage access and fills in
// a generated idempotency key when the caller supplied none.
func (e *Engine) validate(typ transaction.Type, req *Request) error {
	if req.AccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}

	ceiling := e.policy.DepositCeiling
	switch typ {
	case transaction.TypeWithdrawal:
		ceiling = e.policy.WithdrawalCeiling
	case transaction.TypeTransfer:
		ceiling = e.policy.TransferCeiling
		if req.DestinationNumber == "" {
			return ErrMissingDestination
		}
	}
	if req.Amount > ceiling {
		return ErrAmountAboveLimit
	}
	if utf8.RuneCountInString(req.Description) > e.policy.MaxDescriptionLength {
		return ErrDescriptionTooLong
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	return nil
}

// apply is one attempt, run inside a storage transaction.
func (e *Engine) apply(ctx context.Context, repos Repositories, typ transaction.Type, req Request) (*Result, error) {
	ids := []uuid.UUID{req.AccountID}

	var destinationID uuid.UUID
	if typ == transaction.TypeTransfer {
		dest, err := repos.Accounts.GetByNumber(ctx, req.DestinationNumber)
		if err != nil {
			return nil, mapAccountErr(err, ErrDestinationNotFound)
		}
		if dest.ID == req.AccountID {
			return nil, ErrSameAccountTransfer
		}
		destinationID = dest.ID
		ids = append(ids, destinationID)
	}

	locked, err := lockInOrder(ctx, repos.Accounts, ids)
	if err != nil {
		if destinationID != uuid.Nil && errors.Is(err, account.ErrAccountNotFound{AccountID: destinationID}) {
			return nil, mapAccountErr(err, ErrDestinationNotFound)
		}
		return nil, mapAccountErr(err, ErrAccountNotFound)
	}
	source := locked[req.AccountID]

	if res, err := replay(ctx, repos.Transactions, typ, req, destinationID); res != nil || err != nil {
		return res, err
	}

	switch typ {
	case transaction.TypeDeposit:
		if source.IsClosed() {
			return nil, ErrAccountClosed
		}
		if source.Balance > math.MaxInt64-req.Amount {
			return nil, ErrBalanceOverflow
		}
		newBalance := source.Balance + req.Amount
		if err := repos.Accounts.CompareAndSwapBalance(ctx, source.ID, source.Balance, newBalance); err != nil {
			return nil, err
		}
		record, err := transaction.NewDeposit(source.ID, req.Amount, newBalance, req.Description, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if err := appendRecords(ctx, repos, record); err != nil {
			return nil, err
		}
		return newResult(record, req), nil

	case transaction.TypeWithdrawal:
		if err := e.checkDebit(source, req.Amount); err != nil {
			return nil, err
		}
		newBalance := source.Balance - req.Amount
		if err := repos.Accounts.CompareAndSwapBalance(ctx, source.ID, source.Balance, newBalance); err != nil {
			return nil, err
		}
		record, err := transaction.NewWithdrawal(source.ID, req.Amount, newBalance, req.Description, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if err := appendRecords(ctx, repos, record); err != nil {
			return nil, err
		}
		return newResult(record, req), nil

	default:
		dest := locked[destinationID]
		if err := e.checkDebit(source, req.Amount); err != nil {
			return nil, err
		}
		if !dest.IsActive() {
			return nil, ErrDestinationNotActive
		}
		if dest.Balance > math.MaxInt64-req.Amount {
			return nil, ErrBalanceOverflow
		}
		sourceBalance := source.Balance - req.Amount
		destBalance := dest.Balance + req.Amount
		if err := repos.Accounts.CompareAndSwapBalance(ctx, source.ID, source.Balance, sourceBalance); err != nil {
			return nil, err
		}
		if err := repos.Accounts.CompareAndSwapBalance(ctx, dest.ID, dest.Balance, destBalance); err != nil {
			return nil, err
		}
		debit, credit, err := transaction.NewTransferLegs(source.ID, dest.ID, req.Amount, sourceBalance, destBalance, req.Description, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if err := appendRecords(ctx, repos, debit, credit); err != nil {
			return nil, err
		}
		return newResult(debit, req), nil
	}
}

// checkDebit enforces the rules shared by withdrawals and outgoing transfers.
func (e *Engine) checkDebit(source *account.Account, amount int64) error {
	if !source.IsActive() {
		return ErrAccountNotActive
	}
	if source.Balance-amount < e.policy.MinimumBalance {
		return ErrInsufficientFunds
	}
	return nil
}

// lockInOrder locks ids in ascending byte order so two operations touching
// the same pair of accounts can never wait on each other.
func lockInOrder(ctx context.Context, accounts account.Repository, ids []uuid.UUID) (map[uuid.UUID]*account.Account, error) {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	locked := make(map[uuid.UUID]*account.Account, len(ordered))
	for _, id := range ordered {
		acc, err := accounts.LockForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = acc
	}
	return locked, nil
}

// replay returns the original result when the key was already applied.
// destinationID is uuid.Nil for anything but transfers.
func replay(ctx context.Context, txs transaction.Repository, typ transaction.Type, req Request, destinationID uuid.UUID) (*Result, error) {
	existing, err := txs.GetByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.Type != typ || existing.AccountID != req.AccountID || existing.Amount != req.Amount {
		return nil, ErrIdempotencyKeyReused
	}
	if typ == transaction.TypeTransfer &&
		(existing.DestinationAccountID == nil || *existing.DestinationAccountID != destinationID) {
		return nil, ErrIdempotencyKeyReused
	}
	res := newResult(existing, req)
	res.Replayed = true
	return res, nil
}

func appendRecords(ctx context.Context, repos Repositories, records ...*transaction.Transaction) error {
	for _, record := range records {
		if err := repos.Transactions.Append(ctx, record); err != nil {
			return err
		}
		if repos.Outbox == nil {
			continue
		}
		msg, err := outbox.NewMessage(record)
		if err != nil {
			return fmt.Errorf("failed to build outbox message: %w", err)
		}
		if err := repos.Outbox.Create(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func newResult(record *transaction.Transaction, req Request) *Result {
	return &Result{
		TransactionID:  record.ID,
		AccountID:      record.AccountID,
		NewBalance:     record.ResultingBalance,
		IdempotencyKey: req.IdempotencyKey,
	}
}

// mapAccountErr turns a repository not-found into the engine sentinel target,
// keeping the original error in the chain.
func mapAccountErr(err error, target error) error {
	if errors.Is(err, account.ErrAccountNotFound{}) {
		return fmt.Errorf("%w: %w", target, err)
	}
	return err
}

// retry runs op until it succeeds, fails permanently, or the attempt budget
// is spent. Only transient storage conflicts are retried.
func retry[T any](ctx context.Context, e *Engine, logger *slog.Logger, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.policy.RetryInitialInterval
	b.MaxInterval = e.policy.RetryMaxInterval

	res, err := backoff.Retry(ctx, func() (T, error) {
		res, err := op()
		if err != nil && !isTransient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(e.policy.MaxRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug("Retrying after storage conflict", "error", err, "backoff", next)
		}),
	)
	// the final attempt comes back still wrapped when it hits the try limit
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if err != nil && isTransient(err) {
		return res, fmt.Errorf("%w: %w", ErrConflictRetriesExhausted, err)
	}
	return res, err
}
