package events

import "time"

const BatchDisbursedTopic = "payroll.batch.disbursed.v1"

type BatchDisbursedEvent struct {
	EventType       string    `json:"event_type"`
	BatchID         string    `json:"batch_id"`
	Status          string    `json:"status"`
	SuccessCount    int       `json:"success_count"`
	FailureCount    int       `json:"failure_count"`
	FailedWorkerIDs []string  `json:"failed_worker_ids,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
