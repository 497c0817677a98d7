package producer

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	"go-payroll/internal/messaging/kafka"
)

// buildMessage keys the message by aggregate id so every event for one batch
// lands on the same partition, in order. The originating request id rides
// along as a header so consumers can correlate the event with the API call.
func buildMessage(event kafka.OutboxEvent) kafkago.Message {
	msg := kafkago.Message{
		Topic: event.Topic,
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
		},
	}
	if event.RequestID != "" {
		msg.Headers = append(msg.Headers, kafkago.Header{
			Key:   "request_id",
			Value: []byte(event.RequestID),
		})
	}
	return msg
}

func publishEvent(ctx context.Context, writer *kafkago.Writer, event kafka.OutboxEvent) error {
	return writer.WriteMessages(ctx, buildMessage(event))
}
