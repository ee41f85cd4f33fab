package ledger

import (
	"time"

	"github.com/ledger-core/internal/config"
	"github.com/ledger-core/internal/domain/account"
)

// Policy holds the engine's monetary limits and retry behaviour. Amounts are minor units.
type Policy struct {
	MinimumBalance       int64
	DepositCeiling       int64
	WithdrawalCeiling    int64
	TransferCeiling      int64
	MaxDescriptionLength int
	MaxRetries           uint
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	NewAccountStatus     account.Status
}

// DefaultPolicy matches the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MinimumBalance:       1000,
		DepositCeiling:       1000000,
		WithdrawalCeiling:    1000000,
		TransferCeiling:      1000000,
		MaxDescriptionLength: 200,
		MaxRetries:           5,
		RetryInitialInterval: 10 * time.Millisecond,
		RetryMaxInterval:     200 * time.Millisecond,
		NewAccountStatus:     account.StatusActive,
	}
}

func PolicyFromConfig(cfg *config.LedgerConfig) Policy {
	return Policy{
		MinimumBalance:       cfg.MinimumBalance,
		DepositCeiling:       cfg.DepositCeiling,
		WithdrawalCeiling:    cfg.WithdrawalCeiling,
		TransferCeiling:      cfg.TransferCeiling,
		MaxDescriptionLength: cfg.MaxDescriptionLength,
		MaxRetries:           cfg.MaxRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
		NewAccountStatus:     account.Status(cfg.NewAccountStatus),
	}
}
