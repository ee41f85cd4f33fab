package shared

import "errors"

// ErrSerializationConflict marks a storage transaction aborted by the database
// because of a concurrent writer. The whole unit of work may be retried.
var ErrSerializationConflict = errors.New("storage serialization conflict")

// FailureReason is the stable code reported for a rejected operation.
type FailureReason string

const (
	FailureReasonInvalidAmount          FailureReason = "INVALID_AMOUNT"
	FailureReasonAmountAboveLimit       FailureReason = "AMOUNT_ABOVE_LIMIT"
	FailureReasonDescriptionTooLong     FailureReason = "DESCRIPTION_TOO_LONG"
	FailureReasonInvalidRequest         FailureReason = "INVALID_REQUEST"
	FailureReasonAccountNotFound        FailureReason = "ACCOUNT_NOT_FOUND"
	FailureReasonTransactionNotFound    FailureReason = "TRANSACTION_NOT_FOUND"
	FailureReasonAccountClosed          FailureReason = "ACCOUNT_CLOSED"
	FailureReasonAccountNotActive       FailureReason = "ACCOUNT_NOT_ACTIVE"
	FailureReasonInsufficientFunds      FailureReason = "INSUFFICIENT_FUNDS"
	FailureReasonSameAccountTransfer    FailureReason = "SAME_ACCOUNT_TRANSFER"
	FailureReasonDestinationNotFound    FailureReason = "DESTINATION_NOT_FOUND"
	FailureReasonDestinationNotActive   FailureReason = "DESTINATION_NOT_ACTIVE"
	FailureReasonIdempotencyKeyMismatch FailureReason = "IDEMPOTENCY_KEY_MISMATCH"
	FailureReasonAccountNotEmpty        FailureReason = "ACCOUNT_NOT_EMPTY"
	FailureReasonPendingTransactions    FailureReason = "PENDING_TRANSACTIONS"
	FailureReasonConflict               FailureReason = "CONCURRENT_UPDATE_CONFLICT"
	FailureReasonUnknownError           FailureReason = "UNKNOWN_ERROR"
)

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
