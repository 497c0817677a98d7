package disbursement

import (
	"context"

	"github.com/shopspring/decimal"

	"go-payroll/internal/payrollbatch"
)

// FundsVerifier answers "how much float does disbursing these items need".
// Read-only; callable in any batch state.
type FundsVerifier struct {
	batches payrollbatch.Repository
}

func NewFundsVerifier(batches payrollbatch.Repository) *FundsVerifier {
	return &FundsVerifier{batches: batches}
}

// RequiredFunds sums net pay over the batch's items, restricted to
// workerIDs when supplied. A filtered sum is never larger than the full
// batch sum.
func (v *FundsVerifier) RequiredFunds(ctx context.Context, batchID string, workerIDs []string) (decimal.Decimal, error) {
	batch, err := v.batches.FindByID(ctx, batchID)
	if err != nil {
		return decimal.Zero, err
	}

	var filter map[string]struct{}
	if len(workerIDs) > 0 {
		filter = make(map[string]struct{}, len(workerIDs))
		for _, id := range workerIDs {
			filter[id] = struct{}{}
		}
	}

	total := decimal.Zero
	for _, item := range batch.Items {
		if filter != nil {
			if _, ok := filter[item.WorkerID.String()]; !ok {
				continue
			}
		}
		total = total.Add(item.NetPay)
	}

	return total, nil
}
