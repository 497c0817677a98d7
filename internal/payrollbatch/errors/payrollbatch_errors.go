package payrollbatcherrors

import (
	"net/http"

	"go-payroll/internal/shared/apperror"
)

var (
	ErrBatchNotFound = apperror.New(
		apperror.CodeNotFound,
		"payroll batch not found",
		http.StatusNotFound,
	)
	ErrItemsOnlyInDraft = apperror.New(
		apperror.CodeInvalidState,
		"items can only be added or recomputed while the batch is DRAFT",
		http.StatusConflict,
	)
	ErrFinalizeOnlyDraft = apperror.New(
		apperror.CodeInvalidState,
		"batch can only be finalized while DRAFT",
		http.StatusConflict,
	)
	ErrEmptyBatch = apperror.New(
		apperror.CodeValidationError,
		"batch has no items to finalize",
		http.StatusUnprocessableEntity,
	)
	ErrBatchNotFinalized = apperror.New(
		apperror.CodeInvalidState,
		"batch must be FINALIZED before disbursement",
		http.StatusConflict,
	)
	ErrDuplicateWorker = apperror.New(
		apperror.CodeConflict,
		"worker already has an item in this batch",
		http.StatusConflict,
	)
	ErrInvalidWorkerID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid worker id",
		http.StatusBadRequest,
	)
	ErrInvalidGrossPay = apperror.New(
		apperror.CodeInvalidInput,
		"gross pay must be a non-negative decimal",
		http.StatusBadRequest,
	)
	ErrInvalidDateFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid date format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrInvalidDateRange = apperror.New(
		apperror.CodeInvalidInput,
		"period_start must be before or equal period_end",
		http.StatusBadRequest,
	)
)

// NewFinalizeValidationError lists the workers whose items block
// finalization; the batch stays DRAFT.
func NewFinalizeValidationError(workerIDs []string) *apperror.AppError {
	return apperror.New(
		apperror.CodeValidationError,
		"one or more items have deductions exceeding gross pay or no breakdown",
		http.StatusUnprocessableEntity,
	).WithDetails(map[string]any{"worker_ids": workerIDs})
}
