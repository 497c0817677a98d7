package taxcalc

import (
	"github.com/shopspring/decimal"

	"go-payroll/internal/taxrule"
)

// DefaultRuleTypes is the statutory deduction set applied when a caller does
// not name an explicit one.
var DefaultRuleTypes = []taxrule.RuleType{
	taxrule.RuleIncomeTax,
	taxrule.RuleHealthLevy,
	taxrule.RulePensionTier1,
	taxrule.RulePensionTier2,
	taxrule.RuleHousingLevy,
}

type LineItem struct {
	Type   taxrule.RuleType `json:"type"`
	Amount decimal.Decimal  `json:"amount"`
}

// DeductionBreakdown is an immutable value: recomputed on demand while a
// payroll item is draft, frozen verbatim once its batch finalizes.
type DeductionBreakdown struct {
	GrossPay        decimal.Decimal `json:"gross_pay"`
	LineItems       []LineItem      `json:"line_items"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	NetPay          decimal.Decimal `json:"net_pay"`
}

type CalculateRequest struct {
	WorkerID  string   `json:"worker_id" binding:"required"`
	GrossPay  string   `json:"gross_pay" binding:"required"`
	Date      string   `json:"date" binding:"required"`
	RuleTypes []string `json:"rule_types"`
}

type BreakdownResponse struct {
	WorkerID        string             `json:"worker_id"`
	GrossPay        string             `json:"gross_pay"`
	LineItems       []LineItemResponse `json:"line_items"`
	TotalDeductions string             `json:"total_deductions"`
	NetPay          string             `json:"net_pay"`
}

type LineItemResponse struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

func MapToResponse(workerID string, b DeductionBreakdown) BreakdownResponse {
	items := make([]LineItemResponse, len(b.LineItems))
	for i, li := range b.LineItems {
		items[i] = LineItemResponse{
			Type:   string(li.Type),
			Amount: li.Amount.StringFixed(2),
		}
	}

	return BreakdownResponse{
		WorkerID:        workerID,
		GrossPay:        b.GrossPay.StringFixed(2),
		LineItems:       items,
		TotalDeductions: b.TotalDeductions.StringFixed(2),
		NetPay:          b.NetPay.StringFixed(2),
	}
}
