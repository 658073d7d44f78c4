// Package lifecycle implements order placement and the order state machine:
//
//	Processing ──accept──▶ Processing(accepted) ──out for delivery──▶ Under Delivery ──OTP──▶ Completed
//	    │                         │
//	    ├──reject / deadline──▶ Cancelled
//	    └──customer cancel (within window)──▶ Cancelled
//
// Seller decisions are tracked in a separate field (pending / accepted /
// rejected). Deadlines are evaluated lazily whenever an order is read;
// ExpireOverdue applies the same rule in bulk for operators who want it.
package lifecycle

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/catalog"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/payment"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"
)

// OrderRepository is implemented by orders.Store.
type OrderRepository interface {
	Create(ctx context.Context, order orders.Order, checkoutKey string) error
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Order, error)
	ListAwaitingSeller(ctx context.Context, sellerID string) ([]orders.Order, error)
	ScanAwaitingSeller(ctx context.Context) ([]orders.Order, error)
	ApplyTransition(ctx context.Context, orderID string, t orders.Transition) (*orders.Order, error)
	SetGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) (*orders.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, expected, next orders.PaymentStatus, paymentID string) (*orders.Order, error)
}

// Catalog is implemented by catalog.Store.
type Catalog interface {
	Seller(ctx context.Context, sellerID string) (*catalog.Seller, error)
	Product(ctx context.Context, sellerCollection, productID string) (*catalog.Product, error)
}

// Gateway is implemented by payment.Razorpay.
type Gateway interface {
	CreateIntent(ctx context.Context, amount pricing.Amount, currency, receipt string) (payment.Intent, error)
	Verify(ctx context.Context, gatewayOrderID, paymentID, signature string) error
}

// Notifier is implemented by notifications.Dispatcher.
type Notifier interface {
	Publish(ctx context.Context, ev notifications.Event) error
}

// Metrics is implemented by aws.Metrics.
type Metrics interface {
	Count(ctx context.Context, name string, dims map[string]string) error
}

// Payment failure policies.
const (
	KeepPendingOnFailure = "keep_pending"
	MarkFailedOnFailure  = "mark_failed"
)

type Settings struct {
	Pricing              pricing.Rules
	Currency             string
	CancellationWindow   time.Duration
	SellerApprovalWindow time.Duration
	PaymentFailurePolicy string
}

type Engine struct {
	repo     OrderRepository
	catalog  Catalog
	gateway  Gateway
	notifier Notifier
	metrics  Metrics
	settings Settings
	log      zerolog.Logger

	nowFunc func() time.Time
	newID   func() string
	newOTP  func() (string, error)
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.nowFunc = now } }

func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

func WithOTPGenerator(f func() (string, error)) Option { return func(e *Engine) { e.newOTP = f } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithMetrics(m Metrics) Option { return func(e *Engine) { e.metrics = m } }

func NewEngine(repo OrderRepository, cat Catalog, gateway Gateway, settings Settings, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		catalog:  cat,
		gateway:  gateway,
		settings: settings,
		log:      logger.With().Str("component", "lifecycle").Logger(),
		nowFunc:  time.Now,
		newID:    uuid.NewString,
		newOTP:   randomOTP,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) now() time.Time { return e.nowFunc().UTC() }

// load fetches an order and applies the seller-deadline rule to it.
func (e *Engine) load(ctx context.Context, orderID string) (*orders.Order, error) {
	o, err := e.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return nil, newError(ErrNotFound, "order %s not found", orderID)
		}
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	return e.expireIfDue(ctx, o)
}

// expireIfDue auto-rejects o when it is still awaiting the seller after
// its approval deadline. It returns the order as it stands afterwards.
func (e *Engine) expireIfDue(ctx context.Context, o *orders.Order) (*orders.Order, error) {
	now := e.now()
	if !o.AwaitingSeller() || !now.After(o.SellerApprovalDeadline) {
		return o, nil
	}
	updated, err := e.repo.ApplyTransition(ctx, o.OrderID, orders.Transition{
		ExpectedStatus:   orders.StatusProcessing,
		ExpectedDecision: orders.DecisionPending,
		NewStatus:        orders.StatusCancelled,
		NewDecision:      orders.DecisionRejected,
		Entry:            orders.TimelineEntry{Status: orders.LabelAutoRejected, Timestamp: now},
		CancelledBy:      orders.CancelledBySystem,
	})
	if errors.Is(err, orders.ErrConditionFailed) {
		// another request moved it first
		return e.reload(ctx, o.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("auto-reject order %s: %w", o.OrderID, err)
	}
	e.observe(ctx, "auto_reject", notifications.EventOrderAutoRejected, updated, "")
	return updated, nil
}

func (e *Engine) reload(ctx context.Context, orderID string) (*orders.Order, error) {
	o, err := e.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return nil, newError(ErrNotFound, "order %s not found", orderID)
		}
		return nil, fmt.Errorf("reload order %s: %w", orderID, err)
	}
	return o, nil
}

// observe logs a completed transition, counts it and publishes its event.
// Side-effect failures never fail the transition.
func (e *Engine) observe(ctx context.Context, transition, eventType string, o *orders.Order, reason string) {
	e.log.Info().
		Str("order_id", o.OrderID).
		Str("transition", transition).
		Str("status", string(o.Status)).
		Str("seller_decision", string(o.SellerDecision)).
		Msg("order transition")

	if e.metrics != nil {
		if err := e.metrics.Count(ctx, "OrderTransitions", map[string]string{"Transition": transition}); err != nil {
			e.log.Warn().Err(err).Str("order_id", o.OrderID).Msg("metric publish failed")
		}
	}
	if e.notifier != nil && eventType != "" {
		ev := notifications.Event{
			Type:     eventType,
			OrderID:  o.OrderID,
			UserID:   o.UserID,
			SellerID: o.StoreDetails.SellerID,
			Status:   string(o.Status),
			Reason:   reason,
			At:       e.now(),
		}
		if err := e.notifier.Publish(ctx, ev); err != nil {
			e.log.Warn().Err(err).Str("order_id", o.OrderID).Str("event", eventType).Msg("event publish failed")
		}
	}
}

// randomOTP returns a 4-digit code from crypto/rand.
func randomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
