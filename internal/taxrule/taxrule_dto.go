package taxrule

import "encoding/json"

type CreateTaxRuleRequest struct {
	RuleType      string          `json:"rule_type" binding:"required"`
	RateShape     string          `json:"rate_shape" binding:"required,oneof=FLAT_PERCENTAGE PROGRESSIVE_BRACKETS SALARY_TIERS AMOUNT_BANDS"`
	Parameters    json.RawMessage `json:"parameters" binding:"required"`
	EffectiveFrom string          `json:"effective_from" binding:"required"`
	EffectiveTo   string          `json:"effective_to"`
}

type TaxRuleResponse struct {
	ID            string          `json:"id"`
	RuleType      string          `json:"rule_type"`
	RateShape     string          `json:"rate_shape"`
	Parameters    json.RawMessage `json:"parameters"`
	EffectiveFrom string          `json:"effective_from"`
	EffectiveTo   *string         `json:"effective_to,omitempty"`
	IsActive      bool            `json:"is_active"`
}
