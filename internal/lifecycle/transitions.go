package lifecycle

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
)

// AcceptOrder records the seller's acceptance. The order stays Processing
// and becomes eligible for dispatch.
func (e *Engine) AcceptOrder(ctx context.Context, orderID, sellerID string) (*orders.Order, error) {
	o, err := e.loadForSeller(ctx, orderID, sellerID)
	if err != nil {
		return nil, err
	}
	if err := awaitingDecision(o); err != nil {
		return nil, err
	}
	return e.apply(ctx, o.OrderID, orders.Transition{
		ExpectedStatus:   orders.StatusProcessing,
		ExpectedDecision: orders.DecisionPending,
		NewStatus:        orders.StatusProcessing,
		NewDecision:      orders.DecisionAccepted,
		Entry:            orders.TimelineEntry{Status: orders.LabelConfirmed, Timestamp: e.now()},
	}, "accept", notifications.EventOrderAccepted, "")
}

// RejectOrder cancels an order the seller declines.
func (e *Engine) RejectOrder(ctx context.Context, orderID, sellerID, reason string) (*orders.Order, error) {
	o, err := e.loadForSeller(ctx, orderID, sellerID)
	if err != nil {
		return nil, err
	}
	if err := awaitingDecision(o); err != nil {
		return nil, err
	}
	return e.apply(ctx, o.OrderID, orders.Transition{
		ExpectedStatus:   orders.StatusProcessing,
		ExpectedDecision: orders.DecisionPending,
		NewStatus:        orders.StatusCancelled,
		NewDecision:      orders.DecisionRejected,
		Entry:            orders.TimelineEntry{Status: orders.LabelRejected, Timestamp: e.now()},
		CancelledBy:      orders.CancelledBySeller,
		CancelReason:     reason,
	}, "reject", notifications.EventOrderRejected, reason)
}

// MarkOutForDelivery dispatches an accepted order.
func (e *Engine) MarkOutForDelivery(ctx context.Context, orderID, sellerID string) (*orders.Order, error) {
	o, err := e.loadForSeller(ctx, orderID, sellerID)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusProcessing || o.SellerDecision != orders.DecisionAccepted {
		return nil, newError(ErrStateConflict, "only accepted orders in Processing can go out for delivery (order is %s, seller decision %s)",
			o.Status, o.SellerDecision)
	}
	return e.apply(ctx, o.OrderID, orders.Transition{
		ExpectedStatus:   orders.StatusProcessing,
		ExpectedDecision: orders.DecisionAccepted,
		NewStatus:        orders.StatusUnderDelivery,
		Entry:            orders.TimelineEntry{Status: orders.LabelOutForDelivery, Timestamp: e.now()},
	}, "out_for_delivery", notifications.EventOrderOutForDelivery, "")
}

// MarkDelivered completes an order once the customer's hand-off code
// matches. A wrong code changes nothing.
func (e *Engine) MarkDelivered(ctx context.Context, orderID, sellerID, otp string) (*orders.Order, error) {
	o, err := e.loadForSeller(ctx, orderID, sellerID)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusUnderDelivery {
		return nil, newError(ErrStateConflict, "order is %s, not %s", o.Status, orders.StatusUnderDelivery)
	}
	if o.DeliveryOTP == "" || subtle.ConstantTimeCompare([]byte(otp), []byte(o.DeliveryOTP)) != 1 {
		return nil, newError(ErrOTPMismatch, "delivery code does not match")
	}
	return e.apply(ctx, o.OrderID, orders.Transition{
		ExpectedStatus: orders.StatusUnderDelivery,
		NewStatus:      orders.StatusCompleted,
		Entry:          orders.TimelineEntry{Status: orders.LabelDelivered, Timestamp: e.now()},
	}, "deliver", notifications.EventOrderDelivered, "")
}

// CancelOrder lets the customer cancel while the order is Processing and
// no more than the cancellation window has elapsed since placement.
func (e *Engine) CancelOrder(ctx context.Context, orderID, userID, reason string) (*orders.Order, error) {
	o, err := e.loadForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusProcessing {
		return nil, newError(ErrStateConflict, "order is already %s", o.Status)
	}
	window := e.settings.CancellationWindow
	if e.now().Sub(o.Timestamp) > window {
		return nil, newError(ErrCancellationWindowExpired, "orders can only be cancelled within %s of placement", window)
	}
	return e.apply(ctx, o.OrderID, orders.Transition{
		ExpectedStatus: orders.StatusProcessing,
		NewStatus:      orders.StatusCancelled,
		Entry:          orders.TimelineEntry{Status: orders.LabelCancelled, Timestamp: e.now()},
		CancelledBy:    orders.CancelledByCustomer,
		CancelReason:   reason,
	}, "cancel", notifications.EventOrderCancelled, reason)
}

func (e *Engine) loadForUser(ctx context.Context, orderID, userID string) (*orders.Order, error) {
	if userID == "" {
		return nil, validationError(map[string]string{"userId": "required"}, "user id is required")
	}
	o, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, newError(ErrForbidden, "order %s does not belong to this user", orderID)
	}
	return o, nil
}

func (e *Engine) loadForSeller(ctx context.Context, orderID, sellerID string) (*orders.Order, error) {
	if sellerID == "" {
		return nil, validationError(map[string]string{"sellerId": "required"}, "seller id is required")
	}
	o, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.StoreDetails.SellerID != sellerID {
		return nil, newError(ErrForbidden, "order %s belongs to another seller", orderID)
	}
	return o, nil
}

// awaitingDecision reports why a seller can no longer decide on o.
func awaitingDecision(o *orders.Order) error {
	if o.AwaitingSeller() {
		return nil
	}
	if o.Status == orders.StatusCancelled && o.CancelledBy == orders.CancelledBySystem {
		return newError(ErrDeadlinePassed, "approval deadline %s has passed; the order was auto-rejected",
			o.SellerApprovalDeadline.Format("15:04:05 MST"))
	}
	return newError(ErrStateConflict, "order is %s with seller decision %s", o.Status, o.SellerDecision)
}

// apply writes t and reports a lost race as a state conflict.
func (e *Engine) apply(ctx context.Context, orderID string, t orders.Transition, name, eventType, reason string) (*orders.Order, error) {
	updated, err := e.repo.ApplyTransition(ctx, orderID, t)
	if errors.Is(err, orders.ErrConditionFailed) {
		return nil, newError(ErrStateConflict, "order %s changed while this request was in flight", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s order %s: %w", name, orderID, err)
	}
	e.observe(ctx, name, eventType, updated, reason)
	return updated, nil
}
