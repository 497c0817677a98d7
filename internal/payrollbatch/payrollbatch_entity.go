package payrollbatch

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	StatusDraft                 = "DRAFT"
	StatusFinalized             = "FINALIZED"
	StatusDisbursing            = "DISBURSING"
	StatusCompleted             = "COMPLETED"
	StatusCompletedWithFailures = "COMPLETED_WITH_FAILURES"
)

const (
	PayoutPending    = "PENDING"
	PayoutProcessing = "PROCESSING"
	PayoutPaid       = "PAID"
	PayoutFailed     = "FAILED"
)

// IsTerminal reports whether a batch status accepts no further full
// disbursement passes (failed-item retries excepted).
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCompletedWithFailures
}

// Batch is one pay period's draft-to-paid lifecycle. Status only moves
// forward.
type Batch struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PeriodStart time.Time `gorm:"type:date;not null"`
	PeriodEnd   time.Time `gorm:"type:date;not null"`
	Status      string    `gorm:"type:varchar(30);not null;default:'DRAFT';index"`

	FinalizedAt           *time.Time
	DisbursementStartedAt *time.Time
	CompletedAt           *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Items []Item `gorm:"foreignKey:BatchID"`
}

// Item is one worker's line in a batch. Breakdown holds the serialized
// deduction breakdown; once the batch finalizes it is a frozen snapshot that
// later rule changes must not touch.
type Item struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	BatchID  uuid.UUID `gorm:"type:uuid;not null;index:idx_batch_worker,unique"`
	WorkerID uuid.UUID `gorm:"type:uuid;not null;index:idx_batch_worker,unique"`
	Position int       `gorm:"not null"`

	GrossPay        decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Breakdown       json.RawMessage `gorm:"type:jsonb"`
	TotalDeductions decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	NetPay          decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`

	PayoutStatus string  `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	PayoutError  *string `gorm:"type:text"`
	ProviderRef  *string `gorm:"type:varchar(120)"`
	AttemptCount int     `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
