package notifications

import (
	"context"
	"encoding/json"
	"fmt"
)

// sender is satisfied by aws.Publisher.
type sender interface {
	Send(ctx context.Context, messageBody string, attributes map[string]string) error
}

// Dispatcher publishes lifecycle events to the notifications queue.
type Dispatcher struct {
	queue sender
}

func NewDispatcher(queue sender) *Dispatcher {
	return &Dispatcher{queue: queue}
}

func (d *Dispatcher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return d.queue.Send(ctx, string(body), map[string]string{
		"event_type": ev.Type,
		"order_id":   ev.OrderID,
	})
}
