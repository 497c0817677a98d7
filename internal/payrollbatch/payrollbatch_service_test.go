package payrollbatch_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"go-payroll/internal/payrollbatch"
	payrollbatcherrors "go-payroll/internal/payrollbatch/errors"
	"go-payroll/internal/shared/apperror"
	"go-payroll/internal/taxcalc"
	"go-payroll/internal/taxrule"
)

type fakeBatchRepository struct {
	withTxFn             func(tx *sql.Tx) payrollbatch.Repository
	createBatchFn        func(ctx context.Context, batch *payrollbatch.Batch) error
	findByIDFn           func(ctx context.Context, id string) (*payrollbatch.Batch, error)
	createItemFn         func(ctx context.Context, item *payrollbatch.Item) error
	updateItemFn         func(ctx context.Context, item *payrollbatch.Item) error
	updateBatchFn        func(ctx context.Context, batch *payrollbatch.Batch) error
	claimDisbursementFn  func(ctx context.Context, id string) (bool, error)
	reclaimForRetryFn    func(ctx context.Context, id string) (bool, error)
	finishDisbursementFn func(ctx context.Context, id string, status string, completedAt time.Time) error
	markItemProcessingFn func(ctx context.Context, itemID string) error
	markItemPaidFn       func(ctx context.Context, itemID string, providerRef string) error
	markItemFailedFn     func(ctx context.Context, itemID string, reason string) error
}

func (f *fakeBatchRepository) WithTx(tx *sql.Tx) payrollbatch.Repository {
	if f.withTxFn != nil {
		return f.withTxFn(tx)
	}
	return f
}

func (f *fakeBatchRepository) CreateBatch(ctx context.Context, batch *payrollbatch.Batch) error {
	if f.createBatchFn != nil {
		return f.createBatchFn(ctx, batch)
	}
	return nil
}

func (f *fakeBatchRepository) FindByID(ctx context.Context, id string) (*payrollbatch.Batch, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, payrollbatcherrors.ErrBatchNotFound
}

func (f *fakeBatchRepository) CreateItem(ctx context.Context, item *payrollbatch.Item) error {
	if f.createItemFn != nil {
		return f.createItemFn(ctx, item)
	}
	return nil
}

func (f *fakeBatchRepository) UpdateItem(ctx context.Context, item *payrollbatch.Item) error {
	if f.updateItemFn != nil {
		return f.updateItemFn(ctx, item)
	}
	return nil
}

func (f *fakeBatchRepository) UpdateBatch(ctx context.Context, batch *payrollbatch.Batch) error {
	if f.updateBatchFn != nil {
		return f.updateBatchFn(ctx, batch)
	}
	return nil
}

func (f *fakeBatchRepository) ClaimDisbursement(ctx context.Context, id string) (bool, error) {
	if f.claimDisbursementFn != nil {
		return f.claimDisbursementFn(ctx, id)
	}
	return true, nil
}

func (f *fakeBatchRepository) ReclaimForRetry(ctx context.Context, id string) (bool, error) {
	if f.reclaimForRetryFn != nil {
		return f.reclaimForRetryFn(ctx, id)
	}
	return true, nil
}

func (f *fakeBatchRepository) FinishDisbursement(ctx context.Context, id string, status string, completedAt time.Time) error {
	if f.finishDisbursementFn != nil {
		return f.finishDisbursementFn(ctx, id, status, completedAt)
	}
	return nil
}

func (f *fakeBatchRepository) MarkItemProcessing(ctx context.Context, itemID string) error {
	if f.markItemProcessingFn != nil {
		return f.markItemProcessingFn(ctx, itemID)
	}
	return nil
}

func (f *fakeBatchRepository) MarkItemPaid(ctx context.Context, itemID string, providerRef string) error {
	if f.markItemPaidFn != nil {
		return f.markItemPaidFn(ctx, itemID, providerRef)
	}
	return nil
}

func (f *fakeBatchRepository) MarkItemFailed(ctx context.Context, itemID string, reason string) error {
	if f.markItemFailedFn != nil {
		return f.markItemFailedFn(ctx, itemID, reason)
	}
	return nil
}

type fakeCalculator struct {
	calculateFn func(ctx context.Context, workerID string, grossPay decimal.Decimal, onDate time.Time, ruleTypes []taxrule.RuleType) (taxcalc.DeductionBreakdown, error)
}

func (f *fakeCalculator) Calculate(ctx context.Context, workerID string, grossPay decimal.Decimal, onDate time.Time, ruleTypes []taxrule.RuleType) (taxcalc.DeductionBreakdown, error) {
	if f.calculateFn != nil {
		return f.calculateFn(ctx, workerID, grossPay, onDate, ruleTypes)
	}
	return taxcalc.DeductionBreakdown{GrossPay: grossPay, NetPay: grossPay}, nil
}

type batchServiceDeps struct {
	db      *sql.DB
	sqlMock sqlmock.Sqlmock
	service payrollbatch.Service
	repo    *fakeBatchRepository
	calc    *fakeCalculator
}

func setupBatchServiceTest(t *testing.T) *batchServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	repo := &fakeBatchRepository{}
	calc := &fakeCalculator{}
	svc := payrollbatch.NewService(db, repo, calc)

	return &batchServiceDeps{
		db:      db,
		sqlMock: sqlMock,
		service: svc,
		repo:    repo,
		calc:    calc,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func draftBatch(items ...payrollbatch.Item) *payrollbatch.Batch {
	return &payrollbatch.Batch{
		ID:          uuid.New(),
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:      payrollbatch.StatusDraft,
		Items:       items,
	}
}

func breakdownJSON(t *testing.T, gross, total string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(taxcalc.DeductionBreakdown{
		GrossPay:        dec(gross),
		TotalDeductions: dec(total),
		NetPay:          dec(gross).Sub(dec(total)),
	})
	assert.NoError(t, err)
	return raw
}

func TestBatchService_CreateDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		deps.repo.createBatchFn = func(ctx context.Context, batch *payrollbatch.Batch) error {
			assert.Equal(t, payrollbatch.StatusDraft, batch.Status)
			return nil
		}

		resp, err := deps.service.CreateDraft(ctx, payrollbatch.CreateBatchRequest{
			PeriodStart: "2026-03-01",
			PeriodEnd:   "2026-03-31",
		})

		assert.NoError(t, err)
		assert.Equal(t, payrollbatch.StatusDraft, resp.Status)
		assert.Equal(t, "2026-03-01", resp.PeriodStart)
		assert.Empty(t, resp.Items)
	})

	t.Run("negative start after end", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.CreateDraft(ctx, payrollbatch.CreateBatchRequest{
			PeriodStart: "2026-04-01",
			PeriodEnd:   "2026-03-31",
		})

		assert.ErrorIs(t, err, payrollbatcherrors.ErrInvalidDateRange)
	})
}

func TestBatchService_AddItem(t *testing.T) {
	ctx := context.Background()
	workerID := uuid.NewString()

	t.Run("success computes breakdown on period end", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		batch := draftBatch()
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return batch, nil
		}
		deps.calc.calculateFn = func(ctx context.Context, wid string, grossPay decimal.Decimal, onDate time.Time, ruleTypes []taxrule.RuleType) (taxcalc.DeductionBreakdown, error) {
			assert.Equal(t, workerID, wid)
			assert.True(t, onDate.Equal(batch.PeriodEnd))
			return taxcalc.DeductionBreakdown{
				GrossPay:        grossPay,
				TotalDeductions: dec("7500"),
				NetPay:          grossPay.Sub(dec("7500")),
			}, nil
		}
		deps.repo.createItemFn = func(ctx context.Context, item *payrollbatch.Item) error {
			assert.Equal(t, 0, item.Position)
			assert.Equal(t, payrollbatch.PayoutPending, item.PayoutStatus)
			assert.Equal(t, "42500.00", item.NetPay.StringFixed(2))
			assert.NotEmpty(t, item.Breakdown)
			return nil
		}

		resp, err := deps.service.AddItem(ctx, batch.ID.String(), payrollbatch.AddItemRequest{
			WorkerID: workerID,
			GrossPay: "50000",
		})

		assert.NoError(t, err)
		assert.Len(t, resp.Items, 1)
		assert.Equal(t, "42500.00", resp.Items[0].NetPay)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative duplicate worker", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		existing := payrollbatch.Item{
			ID:       uuid.New(),
			WorkerID: uuid.MustParse(workerID),
			GrossPay: dec("30000"),
		}
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return draftBatch(existing), nil
		}

		_, err := deps.service.AddItem(ctx, uuid.NewString(), payrollbatch.AddItemRequest{
			WorkerID: workerID,
			GrossPay: "50000",
		})

		assert.ErrorIs(t, err, payrollbatcherrors.ErrDuplicateWorker)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative batch not draft", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		batch := draftBatch()
		batch.Status = payrollbatch.StatusFinalized
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return batch, nil
		}

		_, err := deps.service.AddItem(ctx, batch.ID.String(), payrollbatch.AddItemRequest{
			WorkerID: workerID,
			GrossPay: "50000",
		})

		assert.ErrorIs(t, err, payrollbatcherrors.ErrItemsOnlyInDraft)
	})

	t.Run("negative gross pay not a decimal", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return draftBatch(), nil
		}

		_, err := deps.service.AddItem(ctx, uuid.NewString(), payrollbatch.AddItemRequest{
			WorkerID: workerID,
			GrossPay: "fifty grand",
		})

		assert.ErrorIs(t, err, payrollbatcherrors.ErrInvalidGrossPay)
	})
}

func TestBatchService_Recompute(t *testing.T) {
	ctx := context.Background()

	t.Run("rewrites every item from current rules", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		items := []payrollbatch.Item{
			{ID: uuid.New(), WorkerID: uuid.New(), GrossPay: dec("50000"), TotalDeductions: dec("9000"), NetPay: dec("41000")},
			{ID: uuid.New(), WorkerID: uuid.New(), GrossPay: dec("30000"), TotalDeductions: dec("5000"), NetPay: dec("25000")},
		}
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return draftBatch(items...), nil
		}
		deps.calc.calculateFn = func(ctx context.Context, wid string, grossPay decimal.Decimal, onDate time.Time, ruleTypes []taxrule.RuleType) (taxcalc.DeductionBreakdown, error) {
			total := grossPay.Mul(dec("0.10"))
			return taxcalc.DeductionBreakdown{
				GrossPay:        grossPay,
				TotalDeductions: total,
				NetPay:          grossPay.Sub(total),
			}, nil
		}
		var updated int
		deps.repo.updateItemFn = func(ctx context.Context, item *payrollbatch.Item) error {
			updated++
			assert.True(t, item.TotalDeductions.Equal(item.GrossPay.Mul(dec("0.10"))))
			return nil
		}

		resp, err := deps.service.Recompute(ctx, uuid.NewString(), payrollbatch.RecomputeRequest{})

		assert.NoError(t, err)
		assert.Equal(t, 2, updated)
		assert.Equal(t, "5000.00", resp.Items[0].TotalDeductions)
		assert.Equal(t, "3000.00", resp.Items[1].TotalDeductions)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative finalized batch is frozen", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		batch := draftBatch()
		batch.Status = payrollbatch.StatusFinalized
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return batch, nil
		}

		_, err := deps.service.Recompute(ctx, batch.ID.String(), payrollbatch.RecomputeRequest{})

		assert.ErrorIs(t, err, payrollbatcherrors.ErrItemsOnlyInDraft)
	})
}

func TestBatchService_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("success stamps finalized_at", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		item := payrollbatch.Item{
			ID:              uuid.New(),
			WorkerID:        uuid.New(),
			GrossPay:        dec("50000"),
			Breakdown:       breakdownJSON(t, "50000", "7500"),
			TotalDeductions: dec("7500"),
			NetPay:          dec("42500"),
		}
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return draftBatch(item), nil
		}
		deps.repo.updateBatchFn = func(ctx context.Context, batch *payrollbatch.Batch) error {
			assert.Equal(t, payrollbatch.StatusFinalized, batch.Status)
			assert.NotNil(t, batch.FinalizedAt)
			return nil
		}

		resp, err := deps.service.Finalize(ctx, uuid.NewString())

		assert.NoError(t, err)
		assert.Equal(t, payrollbatch.StatusFinalized, resp.Status)
		assert.NotNil(t, resp.FinalizedAt)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("already finalized is a no-op", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		batch := draftBatch()
		batch.Status = payrollbatch.StatusFinalized
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return batch, nil
		}
		deps.repo.updateBatchFn = func(ctx context.Context, b *payrollbatch.Batch) error {
			t.Fatal("no update expected for an already finalized batch")
			return nil
		}

		resp, err := deps.service.Finalize(ctx, batch.ID.String())

		assert.NoError(t, err)
		assert.Equal(t, payrollbatch.StatusFinalized, resp.Status)
	})

	t.Run("negative empty batch", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return draftBatch(), nil
		}

		_, err := deps.service.Finalize(ctx, uuid.NewString())

		assert.ErrorIs(t, err, payrollbatcherrors.ErrEmptyBatch)
	})

	t.Run("negative lists every offending worker and stays draft", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		good := payrollbatch.Item{
			ID:              uuid.New(),
			WorkerID:        uuid.New(),
			GrossPay:        dec("50000"),
			Breakdown:       breakdownJSON(t, "50000", "7500"),
			TotalDeductions: dec("7500"),
			NetPay:          dec("42500"),
		}
		overDeducted := payrollbatch.Item{
			ID:              uuid.New(),
			WorkerID:        uuid.New(),
			GrossPay:        dec("1000"),
			Breakdown:       breakdownJSON(t, "1000", "1200"),
			TotalDeductions: dec("1200"),
			NetPay:          dec("-200"),
		}
		noBreakdown := payrollbatch.Item{
			ID:       uuid.New(),
			WorkerID: uuid.New(),
			GrossPay: dec("20000"),
		}
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return draftBatch(good, overDeducted, noBreakdown), nil
		}
		deps.repo.updateBatchFn = func(ctx context.Context, b *payrollbatch.Batch) error {
			t.Fatal("batch must stay DRAFT when validation fails")
			return nil
		}

		_, err := deps.service.Finalize(ctx, uuid.NewString())

		var appErr *apperror.AppError
		assert.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.CodeValidationError, appErr.Code)

		details, ok := appErr.Details.(map[string]any)
		assert.True(t, ok)
		workerIDs, ok := details["worker_ids"].([]string)
		assert.True(t, ok)
		assert.ElementsMatch(t, []string{overDeducted.WorkerID.String(), noBreakdown.WorkerID.String()}, workerIDs)
	})

	t.Run("negative disbursing batch rejects", func(t *testing.T) {
		deps := setupBatchServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)
		batch := draftBatch()
		batch.Status = payrollbatch.StatusDisbursing
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*payrollbatch.Batch, error) {
			return batch, nil
		}

		_, err := deps.service.Finalize(ctx, batch.ID.String())

		assert.ErrorIs(t, err, payrollbatcherrors.ErrFinalizeOnlyDraft)
	})
}
