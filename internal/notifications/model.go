package notifications

import (
	"fmt"
	"time"
)

const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
)

// Notification is one stored message for a customer or seller.
type Notification struct {
	NotificationID string    `json:"notificationId" dynamodbav:"notification_id"` // PK
	RecipientID    string    `json:"recipientId" dynamodbav:"recipient_id"`
	RecipientRole  string    `json:"recipientRole" dynamodbav:"recipient_role"`
	Type           string    `json:"type" dynamodbav:"type"`
	OrderID        string    `json:"orderId" dynamodbav:"order_id"`
	Title          string    `json:"title" dynamodbav:"title"`
	Message        string    `json:"message" dynamodbav:"message"`
	Read           bool      `json:"read" dynamodbav:"read"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// FromEvent builds the notifications an event produces. IDs are derived
// from the event so redelivered messages map onto the same records.
func FromEvent(ev Event) []Notification {
	short := ev.OrderID
	if len(short) > 8 {
		short = short[:8]
	}

	var out []Notification
	add := func(role, recipient, title, msg string) {
		if recipient == "" {
			return
		}
		out = append(out, Notification{
			NotificationID: fmt.Sprintf("%s:%s:%s", ev.Type, ev.OrderID, recipient),
			RecipientID:    recipient,
			RecipientRole:  role,
			Type:           ev.Type,
			OrderID:        ev.OrderID,
			Title:          title,
			Message:        msg,
			CreatedAt:      ev.At,
		})
	}

	switch ev.Type {
	case EventOrderPlaced:
		add(RoleSeller, ev.SellerID, "New order", fmt.Sprintf("Order #%s is waiting for your confirmation.", short))
	case EventOrderAccepted:
		add(RoleCustomer, ev.UserID, "Order confirmed", fmt.Sprintf("Your order #%s has been accepted by the store.", short))
	case EventOrderRejected:
		msg := fmt.Sprintf("Your order #%s was declined by the store.", short)
		if ev.Reason != "" {
			msg += " Reason: " + ev.Reason
		}
		add(RoleCustomer, ev.UserID, "Order rejected", msg)
	case EventOrderAutoRejected:
		add(RoleCustomer, ev.UserID, "Order cancelled", fmt.Sprintf("The store did not confirm order #%s in time, so it was cancelled.", short))
		add(RoleSeller, ev.SellerID, "Order expired", fmt.Sprintf("Order #%s expired before you responded.", short))
	case EventOrderCancelled:
		add(RoleSeller, ev.SellerID, "Order cancelled", fmt.Sprintf("The customer cancelled order #%s.", short))
	case EventOrderOutForDelivery:
		add(RoleCustomer, ev.UserID, "Out for delivery", fmt.Sprintf("Order #%s is on its way. Share your delivery code with the agent.", short))
	case EventOrderDelivered:
		add(RoleCustomer, ev.UserID, "Delivered", fmt.Sprintf("Order #%s has been delivered.", short))
		add(RoleSeller, ev.SellerID, "Delivered", fmt.Sprintf("Order #%s was handed over.", short))
	case EventOrderPaid:
		add(RoleSeller, ev.SellerID, "Payment received", fmt.Sprintf("Payment for order #%s is confirmed.", short))
	case EventPaymentFailed:
		add(RoleCustomer, ev.UserID, "Payment failed", fmt.Sprintf("We could not verify the payment for order #%s.", short))
	}
	return out
}
