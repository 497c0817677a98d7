package taxruleerrors

import (
	"net/http"

	"go-payroll/internal/shared/apperror"
)

var (
	ErrRuleNotFound = apperror.New(
		apperror.CodeNotFound,
		"no active tax rule for that type and date",
		http.StatusNotFound,
	)
	ErrInvalidRateShape = apperror.New(
		apperror.CodeInvalidInput,
		"unknown rate shape",
		http.StatusBadRequest,
	)
	ErrInvalidParameters = apperror.New(
		apperror.CodeConfigurationError,
		"rate parameters are invalid for the declared shape",
		http.StatusUnprocessableEntity,
	)
	ErrOverlappingWindow = apperror.New(
		apperror.CodeConfigurationError,
		"an active rule of this type already covers part of that effective window",
		http.StatusConflict,
	)
	ErrInvalidDateFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid date format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrInvalidDateRange = apperror.New(
		apperror.CodeInvalidInput,
		"effective_from must be before effective_to",
		http.StatusBadRequest,
	)
)
