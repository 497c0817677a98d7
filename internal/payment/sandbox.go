package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SandboxProvider approves every payout without moving money. It remembers
// references it has seen, so a retried reference returns the original
// receipt instead of minting a new one.
type SandboxProvider struct {
	mu       sync.Mutex
	receipts map[string]string
}

func NewSandboxProvider() *SandboxProvider {
	return &SandboxProvider{receipts: make(map[string]string)}
}

func (p *SandboxProvider) Pay(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.WorkerID == "" || req.Reference == "" {
		return nil, &PayoutError{
			Code:    "INVALID_REQUEST",
			Message: "worker id and reference are required",
		}
	}
	if !req.Amount.IsPositive() {
		return nil, &PayoutError{
			Code:    "INVALID_AMOUNT",
			Message: fmt.Sprintf("amount %s is not payable", req.Amount.String()),
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if ref, ok := p.receipts[req.Reference]; ok {
		return &PayoutReceipt{ProviderRef: ref}, nil
	}

	ref := "sandbox-" + uuid.NewString()
	p.receipts[req.Reference] = ref

	return &PayoutReceipt{ProviderRef: ref}, nil
}
