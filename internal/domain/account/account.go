package account

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyOwner    = errors.New("owner id cannot be empty")
	ErrInvalidStatus = errors.New("invalid account status")
	ErrInvalidNumber = errors.New("account number must be 10 digits")
)

// NumberLength is the number of digits in a customer-facing account number.
const NumberLength = 10

// Status is the lifecycle state of an account.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
	StatusClosed  Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusBlocked, StatusClosed:
		return true
	}
	return false
}

// Account holds a balance in minor units. Balance is only ever changed through
// Repository.CompareAndSwapBalance.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	OwnerID   string    `json:"owner_id"`
	Balance   int64     `json:"balance"`
	Status    Status    `json:"status"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount builds an account with a zero balance. Opening funds are posted
// afterwards as a deposit so the transaction log explains the whole balance.
func NewAccount(ownerID string, number string, status Status) (*Account, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwner
	}
	if !ValidNumber(number) {
		return nil, ErrInvalidNumber
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	now := time.Now().UTC()
	return &Account{
		ID:        uuid.New(),
		Number:    number,
		OwnerID:   ownerID,
		Status:    status,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (a *Account) IsActive() bool { return a.Status == StatusActive }

func (a *Account) IsClosed() bool { return a.Status == StatusClosed }

// GenerateNumber returns a random 10 digit account number without a leading zero.
func GenerateNumber() string {
	return fmt.Sprintf("%d", 1_000_000_000+rand.Int64N(9_000_000_000))
}

func ValidNumber(number string) bool {
	if len(number) != NumberLength || number[0] == '0' {
		return false
	}
	for _, c := range number {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
