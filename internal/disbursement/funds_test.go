package disbursement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"go-payroll/internal/disbursement"
	"go-payroll/internal/payrollbatch"
)

func TestFundsVerifier_RequiredFunds(t *testing.T) {
	ctx := context.Background()
	batch := finalizedBatch("42500.50", "25000", "38000.25")
	store := newMemoryBatchStore(batch)
	verifier := disbursement.NewFundsVerifier(store)

	t.Run("full batch sums every net pay", func(t *testing.T) {
		total, err := verifier.RequiredFunds(ctx, batch.ID.String(), nil)
		assert.NoError(t, err)
		assert.Equal(t, "105500.75", total.StringFixed(2))
	})

	t.Run("filtered sum never exceeds the full sum", func(t *testing.T) {
		subset := []string{
			batch.Items[0].WorkerID.String(),
			batch.Items[2].WorkerID.String(),
		}

		filtered, err := verifier.RequiredFunds(ctx, batch.ID.String(), subset)
		assert.NoError(t, err)
		assert.Equal(t, "80500.75", filtered.StringFixed(2))

		full, err := verifier.RequiredFunds(ctx, batch.ID.String(), nil)
		assert.NoError(t, err)
		assert.True(t, filtered.LessThan(full))
	})

	t.Run("unknown workers contribute nothing", func(t *testing.T) {
		total, err := verifier.RequiredFunds(ctx, batch.ID.String(), []string{"not-in-batch"})
		assert.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	t.Run("verification works in any batch state", func(t *testing.T) {
		// Net pay sums are read-only; a disbursing batch answers the same.
		disbursing := finalizedBatch("1000")
		disbursing.Status = payrollbatch.StatusDisbursing
		v := disbursement.NewFundsVerifier(newMemoryBatchStore(disbursing))

		total, err := v.RequiredFunds(ctx, disbursing.ID.String(), nil)
		assert.NoError(t, err)
		assert.Equal(t, "1000.00", total.StringFixed(2))
	})
}
