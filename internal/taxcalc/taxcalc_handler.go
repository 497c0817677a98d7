package taxcalc

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"go-payroll/internal/shared/apperror"
	"go-payroll/internal/shared/response"
	"go-payroll/internal/taxrule"
)

type Handler struct {
	calc Calculator
}

func NewHandler(calc Calculator) *Handler {
	return &Handler{calc: calc}
}

func (h *Handler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	grossPay, err := decimal.NewFromString(req.GrossPay)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "gross_pay must be a decimal string", nil)
		return
	}

	onDate, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
		return
	}

	breakdown, err := h.calc.Calculate(c.Request.Context(), req.WorkerID, grossPay, onDate, toRuleTypes(req.RuleTypes))
	if err != nil {
		httpErr := apperror.ToHTTP(err)
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}

	response.Success(c, http.StatusOK, MapToResponse(req.WorkerID, breakdown))
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
