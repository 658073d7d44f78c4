// Package notifications carries order lifecycle events over SQS and turns
// them into per-recipient notification records.
package notifications

import "time"

// Lifecycle event types.
const (
	EventOrderPlaced         = "order.placed"
	EventOrderAccepted       = "order.accepted"
	EventOrderRejected       = "order.rejected"
	EventOrderAutoRejected   = "order.auto_rejected"
	EventOrderCancelled      = "order.cancelled"
	EventOrderOutForDelivery = "order.out_for_delivery"
	EventOrderDelivered      = "order.delivered"
	EventOrderPaid           = "order.paid"
	EventPaymentFailed       = "order.payment_failed"
)

// Event is the message body published for every lifecycle transition.
type Event struct {
	Type     string    `json:"type"`
	OrderID  string    `json:"order_id"`
	UserID   string    `json:"user_id"`
	SellerID string    `json:"seller_id"`
	Status   string    `json:"status"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}
