package payrollbatch

type CreateBatchRequest struct {
	PeriodStart string `json:"period_start" binding:"required"`
	PeriodEnd   string `json:"period_end" binding:"required"`
}

type AddItemRequest struct {
	WorkerID  string   `json:"worker_id" binding:"required,uuid"`
	GrossPay  string   `json:"gross_pay" binding:"required"`
	RuleTypes []string `json:"rule_types"`
}

type RecomputeRequest struct {
	OnDate    string   `json:"on_date"`
	RuleTypes []string `json:"rule_types"`
}

type ItemResponse struct {
	ID              string  `json:"id"`
	WorkerID        string  `json:"worker_id"`
	GrossPay        string  `json:"gross_pay"`
	TotalDeductions string  `json:"total_deductions"`
	NetPay          string  `json:"net_pay"`
	PayoutStatus    string  `json:"payout_status"`
	PayoutError     *string `json:"payout_error,omitempty"`
	ProviderRef     *string `json:"provider_ref,omitempty"`
}

type BatchResponse struct {
	ID          string         `json:"id"`
	PeriodStart string         `json:"period_start"`
	PeriodEnd   string         `json:"period_end"`
	Status      string         `json:"status"`
	FinalizedAt *string        `json:"finalized_at,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty"`
	Items       []ItemResponse `json:"items"`
}
