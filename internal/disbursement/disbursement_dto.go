package disbursement

type ItemOutcome struct {
	WorkerID    string  `json:"worker_id"`
	Status      string  `json:"status"`
	ProviderRef *string `json:"provider_ref,omitempty"`
	Error       *string `json:"error,omitempty"`
}

// Result is the aggregate outcome of one disbursement pass. Counts cover
// only the items processed in this pass; FailedWorkerIDs is the batch-wide
// retryable list.
type Result struct {
	BatchID         string        `json:"batch_id"`
	BatchStatus     string        `json:"batch_status"`
	SuccessCount    int           `json:"success_count"`
	FailureCount    int           `json:"failure_count"`
	PerItem         []ItemOutcome `json:"per_item"`
	FailedWorkerIDs []string      `json:"failed_worker_ids,omitempty"`
}

type DisburseRequest struct {
	WorkerIDs []string `json:"worker_ids"`
}
