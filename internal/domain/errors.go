package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrPairNotFound  = errors.New("pair_not_found")
	ErrDuplicatePair = errors.New("duplicate_pair")
	ErrOrderNotFound = errors.New("order_not_found")
	ErrTradeNotFound = errors.New("trade_not_found")

	ErrInvalidSignature = errors.New("invalid_signature")

	// ErrSettlementRejected means the settlement contract simulation
	// refused the batch; the trade row is recorded as failed and no
	// transaction is submitted.
	ErrSettlementRejected = errors.New("settlement_rejected")
	// ErrSettlementSubmissionFailed means the simulation passed but the
	// real transaction could not be submitted (network/chain error).
	// Retryable by an operator, never retried automatically.
	ErrSettlementSubmissionFailed = errors.New("settlement_submission_failed")
)

// ValidationError represents a request validation failure (malformed
// side, price, or quantity). Rejected before any book or store mutation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
