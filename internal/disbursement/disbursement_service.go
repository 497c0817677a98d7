package disbursement

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"go-payroll/internal/events"
	"go-payroll/internal/messaging/kafka"
	"go-payroll/internal/payment"
	"go-payroll/internal/payrollbatch"
	payrollbatcherrors "go-payroll/internal/payrollbatch/errors"
	"go-payroll/internal/shared/contextutil"
)

const (
	minConcurrency  = 1
	disburseLockTTL = 5 * time.Minute
)

type Options struct {
	Concurrency   int
	PayoutTimeout time.Duration
	RatePerSec    int
}

//go:generate mockgen -source=disbursement_service.go -destination=mock/disbursement_service_mock.go -package=mock
type Disburser interface {
	Disburse(ctx context.Context, batchID string, workerIDs []string) (Result, error)
	RetryFailed(ctx context.Context, batchID string) (Result, error)
}

type disburser struct {
	db       *sql.DB
	batches  payrollbatch.Repository
	attempts AttemptRepository
	outbox   kafka.OutboxRepository
	provider payment.Provider
	rdb      *redis.Client

	limiter       *rate.Limiter
	concurrency   int
	payoutTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

func NewDisburser(
	db *sql.DB,
	batches payrollbatch.Repository,
	attempts AttemptRepository,
	outbox kafka.OutboxRepository,
	provider payment.Provider,
	rdb *redis.Client,
	opts Options,
	logger *zap.Logger,
) Disburser {
	if opts.Concurrency < minConcurrency {
		opts.Concurrency = minConcurrency
	}
	if opts.PayoutTimeout <= 0 {
		opts.PayoutTimeout = 15 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &disburser{
		db:            db,
		batches:       batches,
		attempts:      attempts,
		outbox:        outbox,
		provider:      provider,
		rdb:           rdb,
		limiter:       rate.NewLimiter(limit, 1),
		concurrency:   opts.Concurrency,
		payoutTimeout: opts.PayoutTimeout,
		logger:        logger.Named("disbursement"),
		now:           time.Now,
	}
}

// Disburse runs one payout pass over the batch's eligible items (payout
// state PENDING or FAILED, restricted to workerIDs if given). One item's
// failure never aborts the rest; the pass always resolves every submitted
// item to PAID or FAILED.
//
// Starting disbursement is at-most-once per batch: the first caller moves
// FINALIZED to DISBURSING, later callers observe the current state and
// no-op. A DISBURSING batch whose pass ended without settling every item
// (worker filter, cancellation) is resumed by the next caller to win the
// pass lock. Terminal batches accept passes scoped to their FAILED items.
func (d *disburser) Disburse(ctx context.Context, batchID string, workerIDs []string) (Result, error) {
	batch, err := d.batches.FindByID(ctx, batchID)
	if err != nil {
		return Result{}, err
	}

	switch {
	case batch.Status == payrollbatch.StatusDraft:
		return Result{}, payrollbatcherrors.ErrBatchNotFinalized

	case batch.Status == payrollbatch.StatusDisbursing:
		// Either a pass is running right now or an earlier pass left
		// unsettled items behind. The pass lock tells them apart: a live
		// pass holds it, so a caller that wins it owns the resumption.
		if len(eligibleItems(batch, workerIDs, false)) == 0 {
			return noOpResult(batch), nil
		}

		release, acquired, err := d.acquireLock(ctx, batchID)
		if err != nil {
			return Result{}, err
		}
		if !acquired {
			return noOpResult(batch), nil
		}
		defer release()

	case batch.Status == payrollbatch.StatusFinalized:
		release, acquired, err := d.acquireLock(ctx, batchID)
		if err != nil {
			return Result{}, err
		}
		if !acquired {
			return noOpResult(batch), nil
		}
		defer release()

		claimed, err := d.batches.ClaimDisbursement(ctx, batchID)
		if err != nil {
			return Result{}, err
		}
		if !claimed {
			refreshed, err := d.batches.FindByID(ctx, batchID)
			if err != nil {
				return Result{}, err
			}
			return noOpResult(refreshed), nil
		}

	case payrollbatch.IsTerminal(batch.Status):
		if len(eligibleItems(batch, workerIDs, true)) == 0 {
			return noOpResult(batch), nil
		}

		release, acquired, err := d.acquireLock(ctx, batchID)
		if err != nil {
			return Result{}, err
		}
		if !acquired {
			return noOpResult(batch), nil
		}
		defer release()

		reclaimed, err := d.batches.ReclaimForRetry(ctx, batchID)
		if err != nil {
			return Result{}, err
		}
		if !reclaimed {
			return noOpResult(batch), nil
		}
	}

	// State is DISBURSING and owned by this caller.
	batch, err = d.batches.FindByID(ctx, batchID)
	if err != nil {
		return Result{}, err
	}

	eligible := eligibleItems(batch, workerIDs, false)
	outcomes := d.runPool(ctx, batch, eligible)

	return d.finish(ctx, batchID, outcomes)
}

// RetryFailed re-enters disbursement scoped to the batch's FAILED items.
func (d *disburser) RetryFailed(ctx context.Context, batchID string) (Result, error) {
	batch, err := d.batches.FindByID(ctx, batchID)
	if err != nil {
		return Result{}, err
	}
	if batch.Status == payrollbatch.StatusFinalized {
		// Nothing has been attempted yet; there are no failures to retry.
		return noOpResult(batch), nil
	}
	return d.Disburse(ctx, batchID, nil)
}

// runPool processes items concurrently. Per-item state writes are single-row
// statements and each item is owned by exactly one goroutine, so no two
// workers ever transition the same item.
func (d *disburser) runPool(ctx context.Context, batch *payrollbatch.Batch, eligible []payrollbatch.Item) []ItemOutcome {
	outcomes := make([]ItemOutcome, len(eligible))

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)

	for i := range eligible {
		item := eligible[i]
		idx := i

		g.Go(func() error {
			// Cancellation gates un-submitted items only; in-flight
			// payouts always run to a terminal payout state.
			if err := d.limiter.Wait(ctx); err != nil {
				outcomes[idx] = ItemOutcome{
					WorkerID: item.WorkerID.String(),
					Status:   item.PayoutStatus,
				}
				return nil
			}

			outcomes[idx] = d.processItem(ctx, batch, item)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

func (d *disburser) processItem(ctx context.Context, batch *payrollbatch.Batch, item payrollbatch.Item) ItemOutcome {
	workerID := item.WorkerID.String()
	itemID := item.ID.String()
	reference := batch.ID.String() + ":" + itemID

	if err := d.batches.MarkItemProcessing(ctx, itemID); err != nil {
		d.logger.Error("mark item processing failed",
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		msg := err.Error()
		return ItemOutcome{WorkerID: workerID, Status: item.PayoutStatus, Error: &msg}
	}

	// The provider call is bounded; a deadline is recorded exactly like a
	// provider-reported failure so no item is ever left PROCESSING.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.payoutTimeout)
	defer cancel()

	receipt, payErr := d.provider.Pay(callCtx, payment.PayoutRequest{
		WorkerID:  workerID,
		Amount:    item.NetPay,
		Reference: reference,
	})

	d.recordAttempt(ctx, item, reference, receipt, payErr)

	if payErr != nil {
		reason := payErr.Error()
		if errors.Is(payErr, context.DeadlineExceeded) {
			reason = "payout timed out after " + d.payoutTimeout.String()
		}

		if err := d.batches.MarkItemFailed(ctx, itemID, reason); err != nil {
			d.logger.Error("mark item failed errored",
				zap.String("item_id", itemID),
				zap.Error(err),
			)
		}

		d.logger.Warn("payout failed",
			zap.String("batch_id", batch.ID.String()),
			zap.String("worker_id", workerID),
			zap.Bool("transient", payment.IsTransient(payErr)),
			zap.Error(payErr),
		)

		return ItemOutcome{WorkerID: workerID, Status: payrollbatch.PayoutFailed, Error: &reason}
	}

	providerRef := ""
	if receipt != nil {
		providerRef = receipt.ProviderRef
	}

	if err := d.batches.MarkItemPaid(ctx, itemID, providerRef); err != nil {
		d.logger.Error("mark item paid errored",
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		msg := err.Error()
		return ItemOutcome{WorkerID: workerID, Status: payrollbatch.PayoutProcessing, Error: &msg}
	}

	outcome := ItemOutcome{WorkerID: workerID, Status: payrollbatch.PayoutPaid}
	if providerRef != "" {
		outcome.ProviderRef = &providerRef
	}
	return outcome
}

func (d *disburser) recordAttempt(
	ctx context.Context,
	item payrollbatch.Item,
	reference string,
	receipt *payment.PayoutReceipt,
	payErr error,
) {
	attempt := &PayoutAttempt{
		ID:            uuid.New(),
		ItemID:        item.ID,
		AttemptNumber: item.AttemptCount + 1,
		Reference:     reference,
		CreatedAt:     d.now().UTC(),
	}
	if receipt != nil && receipt.ProviderRef != "" {
		v := receipt.ProviderRef
		attempt.ProviderRef = &v
	}
	if payErr != nil {
		v := payErr.Error()
		attempt.Error = &v
	}

	if err := d.attempts.Create(ctx, attempt); err != nil {
		d.logger.Error("record payout attempt failed",
			zap.String("item_id", item.ID.String()),
			zap.Error(err),
		)
	}
}

// finish recomputes the batch aggregate state and, if terminal, commits the
// transition together with the outbox event in one transaction.
func (d *disburser) finish(ctx context.Context, batchID string, outcomes []ItemOutcome) (Result, error) {
	batch, err := d.batches.FindByID(ctx, batchID)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		BatchID:         batchID,
		BatchStatus:     batch.Status,
		PerItem:         outcomes,
		FailedWorkerIDs: failedWorkerIDs(batch),
	}
	for _, outcome := range outcomes {
		switch outcome.Status {
		case payrollbatch.PayoutPaid:
			result.SuccessCount++
		case payrollbatch.PayoutFailed:
			result.FailureCount++
		}
	}

	finalStatus := aggregateStatus(batch)
	if finalStatus == "" {
		// Un-submitted items remain; the batch stays DISBURSING and the
		// next pass to win the lock resumes them.
		return result, nil
	}

	completedAt := d.now().UTC()
	if err := d.commitTerminalState(ctx, batch, finalStatus, completedAt, result); err != nil {
		return result, err
	}

	result.BatchStatus = finalStatus
	d.logger.Info("disbursement pass finished",
		zap.String("batch_id", batchID),
		zap.String("status", finalStatus),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount),
	)

	return result, nil
}

func (d *disburser) commitTerminalState(
	ctx context.Context,
	batch *payrollbatch.Batch,
	status string,
	completedAt time.Time,
	result Result,
) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := d.batches.WithTx(tx).FinishDisbursement(ctx, batch.ID.String(), status, completedAt); err != nil {
		return err
	}

	payload, err := json.Marshal(events.BatchDisbursedEvent{
		EventType:       "payroll.batch.disbursed",
		BatchID:         batch.ID.String(),
		Status:          status,
		SuccessCount:    result.SuccessCount,
		FailureCount:    result.FailureCount,
		FailedWorkerIDs: result.FailedWorkerIDs,
		OccurredAt:      completedAt,
	})
	if err != nil {
		return err
	}

	err = d.outbox.WithTx(tx).Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: "payroll_batch",
		AggregateID:   batch.ID.String(),
		EventType:     "payroll.batch.disbursed",
		Topic:         events.BatchDisbursedTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// acquireLock takes the per-batch redis lock so only one process can run a
// pass at a time. Without redis the database claim guard still enforces
// at-most-once starts; the lock just fails duplicates faster.
func (d *disburser) acquireLock(ctx context.Context, batchID string) (func(), bool, error) {
	if d.rdb == nil {
		return func() {}, true, nil
	}

	lockKey := "payroll:disburse:" + batchID
	acquired, err := d.rdb.SetNX(ctx, lockKey, "locked", disburseLockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	release := func() {
		_ = d.rdb.Del(context.WithoutCancel(ctx), lockKey).Err()
	}
	return release, true, nil
}

// eligibleItems selects items awaiting payout: PENDING or FAILED, filtered
// by worker id when a filter is given. failedOnly restricts to FAILED, used
// for terminal-state retry passes.
func eligibleItems(batch *payrollbatch.Batch, workerIDs []string, failedOnly bool) []payrollbatch.Item {
	var filter map[string]struct{}
	if len(workerIDs) > 0 {
		filter = make(map[string]struct{}, len(workerIDs))
		for _, id := range workerIDs {
			filter[id] = struct{}{}
		}
	}

	var eligible []payrollbatch.Item
	for _, item := range batch.Items {
		switch item.PayoutStatus {
		case payrollbatch.PayoutFailed:
		case payrollbatch.PayoutPending:
			if failedOnly {
				continue
			}
		default:
			continue
		}

		if filter != nil {
			if _, ok := filter[item.WorkerID.String()]; !ok {
				continue
			}
		}
		eligible = append(eligible, item)
	}
	return eligible
}

// aggregateStatus returns the terminal status the batch has earned, or ""
// while items still await submission.
func aggregateStatus(batch *payrollbatch.Batch) string {
	anyFailed := false
	for _, item := range batch.Items {
		switch item.PayoutStatus {
		case payrollbatch.PayoutPending, payrollbatch.PayoutProcessing:
			return ""
		case payrollbatch.PayoutFailed:
			anyFailed = true
		}
	}
	if anyFailed {
		return payrollbatch.StatusCompletedWithFailures
	}
	return payrollbatch.StatusCompleted
}

func failedWorkerIDs(batch *payrollbatch.Batch) []string {
	var ids []string
	for _, item := range batch.Items {
		if item.PayoutStatus == payrollbatch.PayoutFailed {
			ids = append(ids, item.WorkerID.String())
		}
	}
	return ids
}

func noOpResult(batch *payrollbatch.Batch) Result {
	return Result{
		BatchID:         batch.ID.String(),
		BatchStatus:     batch.Status,
		PerItem:         []ItemOutcome{},
		FailedWorkerIDs: failedWorkerIDs(batch),
	}
}
