package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
)

// Processor turns lifecycle events from SQS into stored notifications.
type Processor struct {
	store NotificationRecorder
	log   zerolog.Logger
}

// NewProcessor creates a new worker processor.
func NewProcessor(store NotificationRecorder, logger zerolog.Logger) *Processor {
	return &Processor{store: store, log: logger}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Lambda retries the batch; already stored notifications are
			// skipped on redelivery. Exhausted messages go to the DLQ.
			p.log.Error().Err(err).Str("message_id", rec.MessageId).Msg("worker error")
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var ev notifications.Event
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if ev.Type == "" || ev.OrderID == "" {
		return fmt.Errorf("message %s: event type and order id are required", rec.MessageId)
	}

	log := p.log.With().Str("order_id", ev.OrderID).Str("event", ev.Type).Logger()
	list := notifications.FromEvent(ev)
	if len(list) == 0 {
		log.Debug().Msg("event produces no notifications")
		return nil
	}
	for _, n := range list {
		created, err := p.store.Record(ctx, n)
		if err != nil {
			return fmt.Errorf("record notification %s: %w", n.NotificationID, err)
		}
		if !created {
			log.Info().Str("notification_id", n.NotificationID).Msg("duplicate delivery, notification already stored")
			continue
		}
		log.Info().Str("notification_id", n.NotificationID).Str("recipient_id", n.RecipientID).Msg("notification stored")
	}
	return nil
}
