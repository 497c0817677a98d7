package payrollbatch

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	payrollbatcherrors "go-payroll/internal/payrollbatch/errors"
)

//go:generate mockgen -source=payrollbatch_repo.go -destination=mock/payrollbatch_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	CreateBatch(ctx context.Context, batch *Batch) error
	FindByID(ctx context.Context, id string) (*Batch, error)
	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	UpdateBatch(ctx context.Context, batch *Batch) error

	// Guarded forward-only transitions. Claim ops return whether this
	// caller won the transition (first-writer-wins).
	ClaimDisbursement(ctx context.Context, id string) (bool, error)
	ReclaimForRetry(ctx context.Context, id string) (bool, error)
	FinishDisbursement(ctx context.Context, id string, status string, completedAt time.Time) error

	// Per-item payout transitions, one row per statement so concurrent
	// workers never contend on the same item.
	MarkItemProcessing(ctx context.Context, itemID string) error
	MarkItemPaid(ctx context.Context, itemID string, providerRef string) error
	MarkItemFailed(ctx context.Context, itemID string, reason string) error
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{
		db: r.db,
		tx: tx,
	}
}

func (r *repository) CreateBatch(ctx context.Context, batch *Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*Batch, error) {
	var batch Batch
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&batch, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payrollbatcherrors.ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (r *repository) CreateItem(ctx context.Context, item *Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateItem(ctx context.Context, item *Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) UpdateBatch(ctx context.Context, batch *Batch) error {
	return r.db.WithContext(ctx).Save(batch).Error
}

func (r *repository) ClaimDisbursement(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Batch{}).
		Where("id = ? AND status = ?", id, StatusFinalized).
		Updates(map[string]any{
			"status":                  StatusDisbursing,
			"disbursement_started_at": time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ReclaimForRetry(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Batch{}).
		Where("id = ? AND status = ?", id, StatusCompletedWithFailures).
		Updates(map[string]any{
			"status":       StatusDisbursing,
			"completed_at": nil,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) FinishDisbursement(ctx context.Context, id string, status string, completedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&Batch{}).
		Where("id = ? AND status = ?", id, StatusDisbursing).
		Updates(map[string]any{
			"status":       status,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return payrollbatcherrors.ErrBatchNotFound
	}
	return nil
}

func (r *repository) MarkItemProcessing(ctx context.Context, itemID string) error {
	return r.db.WithContext(ctx).
		Model(&Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"payout_status": PayoutProcessing,
			"payout_error":  nil,
		}).Error
}

func (r *repository) MarkItemPaid(ctx context.Context, itemID string, providerRef string) error {
	return r.db.WithContext(ctx).
		Model(&Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"payout_status": PayoutPaid,
			"provider_ref":  providerRef,
			"payout_error":  nil,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

func (r *repository) MarkItemFailed(ctx context.Context, itemID string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&Item{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"payout_status": PayoutFailed,
			"payout_error":  reason,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}
