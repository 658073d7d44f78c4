package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/payment"
)

// PaymentCallback carries the fields the checkout widget hands back.
type PaymentCallback struct {
	OrderID        string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// CreatePaymentIntent opens a gateway order for an unpaid, non-COD order.
func (e *Engine) CreatePaymentIntent(ctx context.Context, orderID string) (*payment.Intent, *orders.Order, error) {
	o, err := e.load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.PaymentMethod.ViaGateway() {
		return nil, nil, newError(ErrValidation, "cash on delivery orders are not paid online")
	}
	if o.Status == orders.StatusCancelled {
		return nil, nil, newError(ErrStateConflict, "order is cancelled")
	}
	if o.PaymentStatus != orders.PaymentPending {
		return nil, nil, newError(ErrStateConflict, "payment is already %s", o.PaymentStatus)
	}
	intent, updated, err := e.openIntent(ctx, o)
	if err != nil {
		return nil, nil, err
	}
	return &intent, updated, nil
}

func (e *Engine) openIntent(ctx context.Context, o *orders.Order) (payment.Intent, *orders.Order, error) {
	intent, err := e.gateway.CreateIntent(ctx, o.TotalAmount, o.Currency, o.OrderID)
	if err != nil {
		return payment.Intent{}, nil, fmt.Errorf("create payment intent: %w", err)
	}
	updated, err := e.repo.SetGatewayOrder(ctx, o.OrderID, intent.GatewayOrderID)
	if errors.Is(err, orders.ErrConditionFailed) {
		return payment.Intent{}, nil, newError(ErrStateConflict, "order %s is no longer awaiting payment", o.OrderID)
	}
	if err != nil {
		return payment.Intent{}, nil, fmt.Errorf("store gateway order: %w", err)
	}
	return intent, updated, nil
}

// VerifyPayment checks the gateway signature and marks the order paid.
// Replaying a successful callback returns the order unchanged. On failure
// the payment status follows the configured policy and the returned *Error
// reports which status was left on the order.
func (e *Engine) VerifyPayment(ctx context.Context, cb PaymentCallback) (*orders.Order, error) {
	fields := map[string]string{}
	if cb.OrderID == "" {
		fields["orderId"] = "required"
	}
	if cb.GatewayOrderID == "" {
		fields["razorpay_order_id"] = "required"
	}
	if cb.PaymentID == "" {
		fields["razorpay_payment_id"] = "required"
	}
	if cb.Signature == "" {
		fields["razorpay_signature"] = "required"
	}
	if len(fields) > 0 {
		return nil, validationError(fields, "payment callback is incomplete")
	}

	o, err := e.load(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	if !o.PaymentMethod.ViaGateway() {
		return nil, newError(ErrValidation, "cash on delivery orders are not paid online")
	}
	switch o.PaymentStatus {
	case orders.PaymentPaid:
		if o.GatewayPaymentID == cb.PaymentID {
			return o, nil
		}
		return nil, newError(ErrStateConflict, "order is already paid")
	case orders.PaymentRefunded:
		return nil, newError(ErrStateConflict, "payment was refunded")
	}

	var verifyErr error
	if o.GatewayOrderID == "" || o.GatewayOrderID != cb.GatewayOrderID {
		verifyErr = errors.New("gateway order does not belong to this order")
	} else if err := e.gateway.Verify(ctx, cb.GatewayOrderID, cb.PaymentID, cb.Signature); err != nil {
		if !errors.Is(err, payment.ErrInvalidSignature) {
			return nil, fmt.Errorf("verify payment: %w", err)
		}
		verifyErr = err
	}
	if verifyErr != nil {
		return nil, e.failPayment(ctx, o, verifyErr)
	}

	updated, err := e.repo.UpdatePaymentStatus(ctx, o.OrderID, o.PaymentStatus, orders.PaymentPaid, cb.PaymentID)
	if errors.Is(err, orders.ErrConditionFailed) {
		return nil, newError(ErrStateConflict, "payment status of order %s changed concurrently", o.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("mark order %s paid: %w", o.OrderID, err)
	}
	e.observe(ctx, "payment_paid", notifications.EventOrderPaid, updated, "")
	return updated, nil
}

func (e *Engine) failPayment(ctx context.Context, o *orders.Order, cause error) error {
	left := o.PaymentStatus
	if e.settings.PaymentFailurePolicy == MarkFailedOnFailure && o.PaymentStatus == orders.PaymentPending {
		updated, err := e.repo.UpdatePaymentStatus(ctx, o.OrderID, orders.PaymentPending, orders.PaymentFailed, "")
		switch {
		case err == nil:
			o, left = updated, updated.PaymentStatus
		case errors.Is(err, orders.ErrConditionFailed):
			return newError(ErrStateConflict, "payment status of order %s changed concurrently", o.OrderID)
		default:
			return fmt.Errorf("mark order %s payment failed: %w", o.OrderID, err)
		}
	}
	e.observe(ctx, "payment_failed", notifications.EventPaymentFailed, o, cause.Error())
	return &Error{
		Kind:          ErrPaymentVerification,
		Message:       "payment could not be verified",
		PaymentStatus: left,
		Cause:         cause,
	}
}
