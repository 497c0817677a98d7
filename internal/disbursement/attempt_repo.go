package disbursement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PayoutAttempt is the audit row for one provider call, successful or not.
type PayoutAttempt struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ItemID        uuid.UUID `gorm:"type:uuid;not null;index"`
	AttemptNumber int       `gorm:"not null"`
	Reference     string    `gorm:"type:varchar(120);not null"`
	ProviderRef   *string   `gorm:"type:varchar(120)"`
	Error         *string   `gorm:"type:text"`
	CreatedAt     time.Time
}

//go:generate mockgen -source=attempt_repo.go -destination=mock/attempt_repo_mock.go -package=mock
type AttemptRepository interface {
	Create(ctx context.Context, attempt *PayoutAttempt) error
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(ctx context.Context, attempt *PayoutAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}
