package payrollbatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	payrollbatcherrors "go-payroll/internal/payrollbatch/errors"
	"go-payroll/internal/taxcalc"
	"go-payroll/internal/taxrule"
)

//go:generate mockgen -source=payrollbatch_service.go -destination=mock/payrollbatch_service_mock.go -package=mock
type Service interface {
	CreateDraft(ctx context.Context, req CreateBatchRequest) (BatchResponse, error)
	AddItem(ctx context.Context, batchID string, req AddItemRequest) (BatchResponse, error)
	Recompute(ctx context.Context, batchID string, req RecomputeRequest) (BatchResponse, error)
	Finalize(ctx context.Context, batchID string) (BatchResponse, error)
	GetByID(ctx context.Context, batchID string) (BatchResponse, error)
}

type service struct {
	db   *sql.DB
	repo Repository
	calc taxcalc.Calculator
}

func NewService(db *sql.DB, repo Repository, calc taxcalc.Calculator) Service {
	return &service{db: db, repo: repo, calc: calc}
}

func (s *service) CreateDraft(
	ctx context.Context,
	req CreateBatchRequest,
) (BatchResponse, error) {
	periodStart, err := parseDate(req.PeriodStart)
	if err != nil {
		return BatchResponse{}, payrollbatcherrors.ErrInvalidDateFormat
	}
	periodEnd, err := parseDate(req.PeriodEnd)
	if err != nil {
		return BatchResponse{}, payrollbatcherrors.ErrInvalidDateFormat
	}
	if periodStart.After(periodEnd) {
		return BatchResponse{}, payrollbatcherrors.ErrInvalidDateRange
	}

	batch := &Batch{
		ID:          uuid.New(),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      StatusDraft,
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return BatchResponse{}, err
	}

	return mapToResponse(*batch), nil
}

// AddItem computes the worker's breakdown on the batch's period end and
// appends the item. Draft batches only.
func (s *service) AddItem(
	ctx context.Context,
	batchID string,
	req AddItemRequest,
) (BatchResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BatchResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	batch, err := qtx.FindByID(ctx, batchID)
	if err != nil {
		return BatchResponse{}, err
	}
	if batch.Status != StatusDraft {
		return BatchResponse{}, payrollbatcherrors.ErrItemsOnlyInDraft
	}

	workerID, err := uuid.Parse(req.WorkerID)
	if err != nil {
		return BatchResponse{}, payrollbatcherrors.ErrInvalidWorkerID
	}
	for _, item := range batch.Items {
		if item.WorkerID == workerID {
			return BatchResponse{}, payrollbatcherrors.ErrDuplicateWorker
		}
	}

	grossPay, err := decimal.NewFromString(req.GrossPay)
	if err != nil || grossPay.IsNegative() {
		return BatchResponse{}, payrollbatcherrors.ErrInvalidGrossPay
	}

	breakdown, err := s.calc.Calculate(ctx, req.WorkerID, grossPay, batch.PeriodEnd, toRuleTypes(req.RuleTypes))
	if err != nil {
		return BatchResponse{}, err
	}

	raw, err := json.Marshal(breakdown)
	if err != nil {
		return BatchResponse{}, err
	}

	item := &Item{
		ID:              uuid.New(),
		BatchID:         batch.ID,
		WorkerID:        workerID,
		Position:        len(batch.Items),
		GrossPay:        grossPay,
		Breakdown:       raw,
		TotalDeductions: breakdown.TotalDeductions,
		NetPay:          breakdown.NetPay,
		PayoutStatus:    PayoutPending,
	}

	if err := qtx.CreateItem(ctx, item); err != nil {
		return BatchResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return BatchResponse{}, err
	}

	batch.Items = append(batch.Items, *item)
	return mapToResponse(*batch), nil
}

// Recompute rewrites every item's breakdown from the current rule set.
// Identical inputs produce identical breakdowns, so recomputing a draft is
// always safe; finalized batches are frozen and rejected here.
func (s *service) Recompute(
	ctx context.Context,
	batchID string,
	req RecomputeRequest,
) (BatchResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BatchResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	batch, err := qtx.FindByID(ctx, batchID)
	if err != nil {
		return BatchResponse{}, err
	}
	if batch.Status != StatusDraft {
		return BatchResponse{}, payrollbatcherrors.ErrItemsOnlyInDraft
	}

	onDate := batch.PeriodEnd
	if req.OnDate != "" {
		onDate, err = parseDate(req.OnDate)
		if err != nil {
			return BatchResponse{}, payrollbatcherrors.ErrInvalidDateFormat
		}
	}

	for i := range batch.Items {
		item := &batch.Items[i]

		breakdown, err := s.calc.Calculate(ctx, item.WorkerID.String(), item.GrossPay, onDate, toRuleTypes(req.RuleTypes))
		if err != nil {
			return BatchResponse{}, err
		}

		raw, err := json.Marshal(breakdown)
		if err != nil {
			return BatchResponse{}, err
		}

		item.Breakdown = raw
		item.TotalDeductions = breakdown.TotalDeductions
		item.NetPay = breakdown.NetPay

		if err := qtx.UpdateItem(ctx, item); err != nil {
			return BatchResponse{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return BatchResponse{}, err
	}

	return mapToResponse(*batch), nil
}

// Finalize freezes every item's breakdown and moves DRAFT to FINALIZED.
// Re-finalizing an already FINALIZED batch is a no-op; later states reject.
func (s *service) Finalize(ctx context.Context, batchID string) (BatchResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BatchResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	batch, err := qtx.FindByID(ctx, batchID)
	if err != nil {
		return BatchResponse{}, err
	}

	if batch.Status == StatusFinalized {
		return mapToResponse(*batch), nil
	}
	if batch.Status != StatusDraft {
		return BatchResponse{}, payrollbatcherrors.ErrFinalizeOnlyDraft
	}
	if len(batch.Items) == 0 {
		return BatchResponse{}, payrollbatcherrors.ErrEmptyBatch
	}

	var offending []string
	for _, item := range batch.Items {
		if len(item.Breakdown) == 0 || item.TotalDeductions.GreaterThan(item.GrossPay) {
			offending = append(offending, item.WorkerID.String())
		}
	}
	if len(offending) > 0 {
		return BatchResponse{}, payrollbatcherrors.NewFinalizeValidationError(offending)
	}

	now := time.Now().UTC()
	batch.Status = StatusFinalized
	batch.FinalizedAt = &now

	if err := qtx.UpdateBatch(ctx, batch); err != nil {
		return BatchResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return BatchResponse{}, err
	}

	return mapToResponse(*batch), nil
}

func (s *service) GetByID(ctx context.Context, batchID string) (BatchResponse, error) {
	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		return BatchResponse{}, err
	}
	return mapToResponse(*batch), nil
}

func toRuleTypes(values []string) []taxrule.RuleType {
	if len(values) == 0 {
		return nil
	}
	types := make([]taxrule.RuleType, len(values))
	for i, v := range values {
		types[i] = taxrule.RuleType(v)
	}
	return types
}

func parseDate(v string) (time.Time, error) {
	return time.Parse("2006-01-02", v)
}

func mapToResponse(batch Batch) BatchResponse {
	items := make([]ItemResponse, len(batch.Items))
	for i, item := range batch.Items {
		items[i] = ItemResponse{
			ID:              item.ID.String(),
			WorkerID:        item.WorkerID.String(),
			GrossPay:        item.GrossPay.StringFixed(2),
			TotalDeductions: item.TotalDeductions.StringFixed(2),
			NetPay:          item.NetPay.StringFixed(2),
			PayoutStatus:    item.PayoutStatus,
			PayoutError:     item.PayoutError,
			ProviderRef:     item.ProviderRef,
		}
	}

	resp := BatchResponse{
		ID:          batch.ID.String(),
		PeriodStart: batch.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   batch.PeriodEnd.Format("2006-01-02"),
		Status:      batch.Status,
		Items:       items,
	}
	if batch.FinalizedAt != nil {
		v := batch.FinalizedAt.Format(time.RFC3339)
		resp.FinalizedAt = &v
	}
	if batch.CompletedAt != nil {
		v := batch.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &v
	}
	return resp
}
