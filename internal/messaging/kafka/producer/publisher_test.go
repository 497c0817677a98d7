package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-payroll/internal/messaging/kafka"
)

func TestBuildMessage(t *testing.T) {
	t.Run("carries event metadata and request id as headers", func(t *testing.T) {
		event := kafka.OutboxEvent{
			ID:            "evt-1",
			RequestID:     "req-123",
			AggregateType: "payroll_batch",
			AggregateID:   "batch-1",
			EventType:     "payroll.batch.disbursed",
			Topic:         "payroll.batch.disbursed",
			Payload:       []byte(`{"batch_id":"batch-1"}`),
		}

		msg := buildMessage(event)

		assert.Equal(t, event.Topic, msg.Topic)
		assert.Equal(t, []byte(event.AggregateID), msg.Key)
		assert.Equal(t, event.Payload, msg.Value)

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, "payroll.batch.disbursed", headers["event_type"])
		assert.Equal(t, "payroll_batch", headers["aggregate_type"])
		assert.Equal(t, "req-123", headers["request_id"])
	})

	t.Run("omits the request id header when the row has none", func(t *testing.T) {
		msg := buildMessage(kafka.OutboxEvent{
			AggregateID: "batch-1",
			EventType:   "payroll.batch.disbursed",
			Topic:       "payroll.batch.disbursed",
		})

		for _, h := range msg.Headers {
			assert.NotEqual(t, "request_id", h.Key)
		}
	})
}
