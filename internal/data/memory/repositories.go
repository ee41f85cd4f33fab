package memory

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/ledger-core/internal/domain/account"
	"github.com/ledger-core/internal/domain/outbox"
	"github.com/ledger-core/internal/domain/shared"
	"github.com/ledger-core/internal/domain/transaction"
)

// accountRepo reads through its unit when it has one, otherwise committed state.
type accountRepo struct {
	store *Store
	unit  *unit
}

func (r *accountRepo) write(ctx context.Context, fn func(u *unit) error) error {
	if r.unit != nil {
		return fn(r.unit)
	}
	return r.store.autocommit(ctx, fn)
}

func (r *accountRepo) Create(ctx context.Context, acc *account.Account) error {
	return r.write(ctx, func(u *unit) error { return u.create(acc) })
}

func (r *accountRepo) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	var acc *account.Account
	if r.unit != nil {
		acc = r.unit.view(id)
	} else {
		acc = r.store.committedAccount(id)
	}
	if acc == nil {
		return nil, account.ErrAccountNotFound{AccountID: id}
	}
	return acc, nil
}

func (r *accountRepo) GetByNumber(_ context.Context, number string) (*account.Account, error) {
	var acc *account.Account
	if r.unit != nil {
		acc = r.unit.viewByNumber(number)
	} else {
		acc = r.store.committedByNumber(number)
	}
	if acc == nil {
		return nil, account.ErrAccountNotFound{Number: number}
	}
	return acc, nil
}

func (r *accountRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	if r.unit == nil {
		return r.GetByID(ctx, id)
	}
	if err := r.unit.lock(ctx, id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *accountRepo) CompareAndSwapBalance(ctx context.Context, id uuid.UUID, expected, newBalance int64) error {
	return r.write(ctx, func(u *unit) error { return u.compareAndSwap(id, expected, newBalance) })
}

func (r *accountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status account.Status) error {
	return r.write(ctx, func(u *unit) error { return u.setStatus(id, status) })
}

func (r *accountRepo) ListIDs(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	return r.store.listIDs(after, limit), nil
}

type transactionRepo struct {
	store *Store
	unit  *unit
}

func (r *transactionRepo) Append(ctx context.Context, tx *transaction.Transaction) error {
	if r.unit != nil {
		return r.unit.appendTx(tx)
	}
	return r.store.autocommit(ctx, func(u *unit) error { return u.appendTx(tx) })
}

// snapshot returns committed records followed by this unit's staged ones.
func (r *transactionRepo) snapshot() []*transaction.Transaction {
	r.store.mu.Lock()
	all := append([]*transaction.Transaction(nil), r.store.transactions...)
	r.store.mu.Unlock()
	if r.unit != nil {
		all = append(all, r.unit.appended...)
	}
	return all
}

func (r *transactionRepo) GetByID(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	for _, tx := range r.snapshot() {
		if tx.ID == id {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, transaction.ErrTransactionNotFound{ID: id}
}

func (r *transactionRepo) GetByIdempotencyKey(_ context.Context, key string) (*transaction.Transaction, error) {
	if key == "" {
		return nil, errors.New("idempotency key cannot be empty")
	}
	if r.unit != nil {
		if tx := r.unit.stagedByKey(key); tx != nil {
			cp := *tx
			return &cp, nil
		}
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if tx, ok := r.store.byKey[key]; ok {
		cp := *tx
		return &cp, nil
	}
	return nil, nil
}

func (r *transactionRepo) GetByCorrelationID(_ context.Context, correlationID uuid.UUID) ([]*transaction.Transaction, error) {
	var out []*transaction.Transaction
	for _, tx := range r.snapshot() {
		if tx.CorrelationID == correlationID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *transactionRepo) Query(_ context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	matched := r.match(filter)
	if filter.Order == transaction.OrderNewestFirst {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Sequence > matched[j].Sequence })
	}

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*transaction.Transaction, len(matched))
	for i, tx := range matched {
		cp := *tx
		out[i] = &cp
	}
	return out, nil
}

func (r *transactionRepo) Count(_ context.Context, filter transaction.Filter) (int64, error) {
	return int64(len(r.match(filter))), nil
}

func (r *transactionRepo) Replay(_ context.Context, accountID uuid.UUID) (*transaction.Replay, error) {
	replay := &transaction.Replay{AccountID: accountID}
	for _, tx := range r.match(transaction.Filter{AccountID: accountID, Status: transaction.StatusCompleted}) {
		replay.Sum += tx.SignedAmount()
		replay.Count++
	}
	return replay, nil
}

// match returns records passing filter in ascending sequence order.
func (r *transactionRepo) match(filter transaction.Filter) []*transaction.Transaction {
	var out []*transaction.Transaction
	for _, tx := range r.snapshot() {
		if filter.AccountID != uuid.Nil && tx.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, tx.Type) {
			continue
		}
		if filter.From != nil && tx.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !tx.CreatedAt.Before(*filter.To) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func containsType(types []transaction.Type, t transaction.Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

type outboxRepo struct {
	store *Store
	unit  *unit
}

func (r *outboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	if r.unit != nil {
		r.unit.addMessage(message)
		return nil
	}
	return r.store.autocommit(ctx, func(u *unit) error {
		u.addMessage(message)
		return nil
	})
}

func (r *outboxRepo) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*outbox.Message
	for _, m := range r.store.messages {
		if m.Status != shared.OutboxStatusPending {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepo) find(id int64) (*outbox.Message, error) {
	for _, m := range r.store.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, outbox.ErrMessageNotFound{ID: id}
}

func (r *outboxRepo) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, err := r.find(id)
	if err != nil {
		return err
	}
	switch status {
	case shared.OutboxStatusProcessed:
		m.MarkAsProcessed()
	case shared.OutboxStatusFailedToPublish:
		m.MarkAsFailed()
	default:
		m.Status = status
	}
	return nil
}

func (r *outboxRepo) IncrementAttempts(_ context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m, err := r.find(id)
	if err != nil {
		return err
	}
	m.IncrementAttempts()
	return nil
}

func (r *outboxRepo) GetByTransactionID(_ context.Context, transactionID uuid.UUID) (*outbox.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.messages {
		if m.TransactionID == transactionID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, outbox.ErrMessageNotFound{TransactionID: transactionID}
}
