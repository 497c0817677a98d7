package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// PayoutRequest is one payout instruction. Reference is stable across
// retries of the same item so providers can de-duplicate.
type PayoutRequest struct {
	WorkerID  string
	Amount    decimal.Decimal
	Reference string
}

// PayoutReceipt stores provider call metadata for audit and persistence.
type PayoutReceipt struct {
	ProviderRef string
}

// Provider is the outbound money-movement port. Implementations may block;
// callers bound each call with a context deadline.
type Provider interface {
	Pay(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error)
}
