package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/lifecycle"
	lt "github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/lifecycle/lifecycletest"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"
)

func newHarness(t *testing.T) *lt.Harness {
	return lt.New(t, lt.DefaultSettings())
}

func TestCreateOrder_PricingScenario(t *testing.T) {
	h := newHarness(t)

	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	assert.True(t, o.Subtotal.Equal(pricing.MustAmount("450")))
	assert.True(t, o.DeliveryFee.Equal(pricing.MustAmount("50")))
	assert.True(t, o.TotalAmount.Equal(pricing.MustAmount("500")))
	assert.Equal(t, orders.StatusProcessing, o.Status)
	assert.Equal(t, orders.DecisionPending, o.SellerDecision)
	assert.Equal(t, orders.PaymentPending, o.PaymentStatus)
	require.Len(t, o.StatusTimeline, 1)
	assert.Equal(t, orders.LabelPlaced, o.StatusTimeline[0].Status)
	assert.Equal(t, lt.Start.Add(15*time.Minute), o.SellerApprovalDeadline)
	assert.Equal(t, lt.Collection, o.StoreDetails.SellerCollection)
	assert.Equal(t, "Basmati 5kg", o.Products[0].Name, "line items are snapshotted from the catalog")

	stored, err := h.Orders.Get(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(stored.Subtotal.Add(stored.DeliveryFee)))
	assert.Equal(t, []string{notifications.EventOrderPlaced}, h.Notifier.Types())
	assert.Equal(t, 1, h.Metrics.Counts["place"])
}

func TestCreateOrder_FreeDeliveryAtThreshold(t *testing.T) {
	tests := []struct {
		name     string
		items    []lifecycle.DraftItem
		subtotal string
		fee      string
	}{
		{
			name:     "below threshold",
			items:    []lifecycle.DraftItem{lt.Rice(), lt.Tomato(1)},
			subtotal: "490",
			fee:      "50",
		},
		{
			name:     "exactly threshold",
			items:    []lifecycle.DraftItem{lt.Tomato(5), {ID: "p-milk", Price: pricing.MustAmount("30"), Quantity: 10}},
			subtotal: "500",
			fee:      "0",
		},
		{
			name:     "above threshold",
			items:    []lifecycle.DraftItem{lt.Rice(), lt.Tomato(2)},
			subtotal: "530",
			fee:      "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, tt.items...))
			assert.True(t, o.Subtotal.Equal(pricing.MustAmount(tt.subtotal)), "subtotal %s", o.Subtotal)
			assert.True(t, o.DeliveryFee.Equal(pricing.MustAmount(tt.fee)), "fee %s", o.DeliveryFee)
			assert.True(t, o.TotalAmount.Equal(o.Subtotal.Add(o.DeliveryFee)))
		})
	}
}

func TestCreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *lifecycle.Draft)
		kind   error
	}{
		{"missing user", func(d *lifecycle.Draft) { d.UserID = "" }, lifecycle.ErrValidation},
		{"no items", func(d *lifecycle.Draft) { d.Items = nil }, lifecycle.ErrValidation},
		{"missing city", func(d *lifecycle.Draft) { d.Address.City = "" }, lifecycle.ErrValidation},
		{"bad payment method", func(d *lifecycle.Draft) { d.PaymentMethod = "Cheque" }, lifecycle.ErrValidation},
		{"unknown seller", func(d *lifecycle.Draft) { d.Store.SellerID = "seller-x" }, lifecycle.ErrNotFound},
		{"wrong collection", func(d *lifecycle.Draft) { d.Store.SellerCollection = "store_other" }, lifecycle.ErrValidation},
		{"unknown product", func(d *lifecycle.Draft) { d.Items[0].ID = "p-ghost" }, lifecycle.ErrNotFound},
		{"unavailable product", func(d *lifecycle.Draft) { d.Items[0].ID = "p-saffron"; d.Items[0].Price = pricing.MustAmount("300") }, lifecycle.ErrNotFound},
		{"stale price", func(d *lifecycle.Draft) { d.Items[0].Price = pricing.MustAmount("420") }, lifecycle.ErrValidation},
		{"subtotal mismatch", func(d *lifecycle.Draft) { d.Subtotal = pricing.MustAmount("449") }, lifecycle.ErrValidation},
		{"fee mismatch", func(d *lifecycle.Draft) { d.DeliveryFee = pricing.MustAmount("0") }, lifecycle.ErrValidation},
		{"total mismatch", func(d *lifecycle.Draft) { d.TotalAmount = pricing.MustAmount("450") }, lifecycle.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			d := lt.Draft("user-1", orders.PaymentCOD, lt.Rice())
			tt.mutate(&d)

			_, err := h.Engine.CreateOrder(context.Background(), d)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Empty(t, h.DB.Items(lt.OrdersTable), "nothing is persisted")
		})
	}
}

func TestCreateOrder_SubtotalWithinRounding(t *testing.T) {
	h := newHarness(t)
	d := lt.Draft("user-1", orders.PaymentCOD, lt.Rice())
	d.Subtotal = pricing.MustAmount("450.001")

	_, err := h.Engine.CreateOrder(context.Background(), d)
	require.NoError(t, err)
}

func TestCreateOrder_ValidationFields(t *testing.T) {
	h := newHarness(t)
	d := lt.Draft("", orders.PaymentCOD, lt.Rice())
	d.Address.PostalCode = ""

	_, err := h.Engine.CreateOrder(context.Background(), d)
	var lerr *lifecycle.Error
	require.True(t, errors.As(err, &lerr))
	assert.Contains(t, lerr.Fields, "userId")
	assert.Contains(t, lerr.Fields, "deliveryAddress.postalCode")
}

func TestCreateOrder_CODNeverPaid(t *testing.T) {
	h := newHarness(t)
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	assert.Equal(t, orders.PaymentPending, o.PaymentStatus)
	assert.Empty(t, h.Gateway.Intents, "COD bypasses the gateway")

	ctx := context.Background()
	_, err := h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)
	_, err = h.Engine.MarkOutForDelivery(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)
	done, err := h.Engine.MarkDelivered(ctx, o.OrderID, lt.SellerID, lt.OTP)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPending, done.PaymentStatus)

	_, err = h.Engine.VerifyPayment(ctx, lifecycle.PaymentCallback{
		OrderID: o.OrderID, GatewayOrderID: "order_x", PaymentID: "pay_1", Signature: lt.Sign("pay_1"),
	})
	assert.ErrorIs(t, err, lifecycle.ErrValidation)
}

func TestCreateOrder_GatewayMethodOpensIntent(t *testing.T) {
	h := newHarness(t)
	res, err := h.Engine.CreateOrder(context.Background(), lt.Draft("user-1", orders.PaymentRazorpay, lt.Rice()))
	require.NoError(t, err)

	require.NotNil(t, res.Payment)
	assert.Equal(t, "order_gw1", res.Payment.GatewayOrderID)
	assert.True(t, res.Payment.Amount.Equal(pricing.MustAmount("500")))
	assert.Equal(t, "order_gw1", res.Order.GatewayOrderID)
	assert.Equal(t, orders.PaymentPending, res.Order.PaymentStatus)
}

func TestCreateOrder_GatewayDownStillPlacesOrder(t *testing.T) {
	h := newHarness(t)
	h.Gateway.CreateErr = errors.New("gateway timeout")

	res, err := h.Engine.CreateOrder(context.Background(), lt.Draft("user-1", orders.PaymentUPI, lt.Rice()))
	require.NoError(t, err)
	assert.Nil(t, res.Payment)
	assert.Empty(t, res.Order.GatewayOrderID)

	h.Gateway.CreateErr = nil
	intent, updated, err := h.Engine.CreatePaymentIntent(context.Background(), res.Order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, intent.GatewayOrderID, updated.GatewayOrderID)
}

func TestCreateOrder_CheckoutKeyReplay(t *testing.T) {
	h := newHarness(t)
	d := lt.Draft("user-1", orders.PaymentCOD, lt.Rice())
	d.CheckoutKey = "chk-1"

	_, err := h.Engine.CreateOrder(context.Background(), d)
	require.NoError(t, err)

	_, err = h.Engine.CreateOrder(context.Background(), d)
	assert.ErrorIs(t, err, orders.ErrCheckoutKeyExists)
	assert.Len(t, h.DB.Items(lt.OrdersTable), 1)
}

func TestCancelOrder_Scenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	h.Clock.Advance(2 * time.Minute)
	cancelled, err := h.Engine.CancelOrder(ctx, o.OrderID, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)
	assert.Equal(t, orders.CancelledByCustomer, cancelled.CancelledBy)
	require.Len(t, cancelled.StatusTimeline, 2)
	assert.Equal(t, orders.LabelCancelled, cancelled.StatusTimeline[1].Status)

	_, err = h.Engine.CancelOrder(ctx, o.OrderID, "user-1", "")
	assert.ErrorIs(t, err, lifecycle.ErrStateConflict)

	after, err := h.Engine.GetStatus(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Len(t, after.StatusTimeline, 2)
	assert.Equal(t, notifications.EventOrderCancelled, h.Notifier.Types()[1])
}

func TestCancelOrder_WindowBoundary(t *testing.T) {
	ctx := context.Background()

	t.Run("exactly 360s", func(t *testing.T) {
		h := newHarness(t)
		o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
		h.Clock.Advance(360 * time.Second)

		got, err := h.Engine.CancelOrder(ctx, o.OrderID, "user-1", "")
		require.NoError(t, err)
		assert.Equal(t, orders.StatusCancelled, got.Status)
	})

	t.Run("360s plus 1ms", func(t *testing.T) {
		h := newHarness(t)
		o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
		h.Clock.Advance(360*time.Second + time.Millisecond)

		_, err := h.Engine.CancelOrder(ctx, o.OrderID, "user-1", "")
		assert.ErrorIs(t, err, lifecycle.ErrCancellationWindowExpired)

		got, err := h.Engine.GetStatus(ctx, o.OrderID)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusProcessing, got.Status)
	})
}

func TestCancelOrder_Guards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	_, err := h.Engine.CancelOrder(ctx, o.OrderID, "user-2", "")
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	_, err = h.Engine.CancelOrder(ctx, "missing", "user-1", "")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, err = h.Engine.CancelOrder(ctx, o.OrderID, "", "")
	assert.ErrorIs(t, err, lifecycle.ErrValidation)

	_, err = h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)
	_, err = h.Engine.MarkOutForDelivery(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)

	_, err = h.Engine.CancelOrder(ctx, o.OrderID, "user-1", "")
	assert.ErrorIs(t, err, lifecycle.ErrStateConflict, "only Processing orders can be cancelled")
}

func TestCancelOrder_AfterAcceptanceWithinWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	_, err := h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)

	got, err := h.Engine.CancelOrder(ctx, o.OrderID, "user-1", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, orders.DecisionAccepted, got.SellerDecision)
	assert.Equal(t, "changed my mind", got.CancelReason)
}

func TestAcceptOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	_, err := h.Engine.AcceptOrder(ctx, o.OrderID, "seller-2")
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	got, err := h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, got.Status, "acceptance does not change the primary status")
	assert.Equal(t, orders.DecisionAccepted, got.SellerDecision)
	assert.Equal(t, orders.LabelConfirmed, got.StatusTimeline[len(got.StatusTimeline)-1].Status)

	_, err = h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	assert.ErrorIs(t, err, lifecycle.ErrStateConflict)

	_, err = h.Engine.RejectOrder(ctx, o.OrderID, lt.SellerID, "")
	assert.ErrorIs(t, err, lifecycle.ErrStateConflict)
}

func TestRejectOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	got, err := h.Engine.RejectOrder(ctx, o.OrderID, lt.SellerID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, orders.DecisionRejected, got.SellerDecision)
	assert.Equal(t, orders.CancelledBySeller, got.CancelledBy)
	assert.Equal(t, "out of stock", got.CancelReason)
	assert.Equal(t, orders.LabelRejected, got.StatusTimeline[1].Status)

	_, err = h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	assert.ErrorIs(t, err, lifecycle.ErrStateConflict)

	events := h.Notifier.Events
	require.Len(t, events, 2)
	assert.Equal(t, notifications.EventOrderRejected, events[1].Type)
	assert.Equal(t, "out of stock", events[1].Reason)
}

func TestSellerDeadline_LazyAutoReject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	h.Clock.Advance(15 * time.Minute)
	still, err := h.Engine.GetStatus(ctx, o.OrderID)
	require.NoError(t, err)
	assert.True(t, still.AwaitingSeller(), "the deadline itself is still in time")

	h.Clock.Advance(time.Second)
	got, err := h.Engine.GetStatus(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, orders.DecisionRejected, got.SellerDecision)
	assert.Equal(t, orders.CancelledBySystem, got.CancelledBy)
	assert.Equal(t, orders.LabelAutoRejected, got.StatusTimeline[len(got.StatusTimeline)-1].Status)

	_, err = h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	assert.ErrorIs(t, err, lifecycle.ErrDeadlinePassed)

	again, err := h.Engine.GetStatus(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Len(t, again.StatusTimeline, len(got.StatusTimeline), "expiry is applied once")
	assert.Equal(t, 1, h.Metrics.Counts["auto_reject"])
}

func TestSellerDeadline_LateAcceptWithoutPriorRead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	h.Clock.Advance(20 * time.Minute)
	_, err := h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	assert.ErrorIs(t, err, lifecycle.ErrDeadlinePassed)

	_, err = h.Engine.RejectOrder(ctx, o.OrderID, lt.SellerID, "")
	assert.ErrorIs(t, err, lifecycle.ErrDeadlinePassed)
}

func TestSellerDeadline_AcceptedOrdersDoNotExpire(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	_, err := h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)

	h.Clock.Advance(time.Hour)
	got, err := h.Engine.MarkOutForDelivery(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusUnderDelivery, got.Status)
}

func TestMarkOutForDelivery_RequiresAcceptance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	_, err := h.Engine.MarkOutForDelivery(ctx, o.OrderID, lt.SellerID)
	assert.ErrorIs(t, err, lifecycle.ErrStateConflict)

	_, err = h.Engine.MarkOutForDelivery(ctx, o.OrderID, "")
	assert.ErrorIs(t, err, lifecycle.ErrValidation)
}

func TestMarkDelivered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	_, err := h.Engine.MarkDelivered(ctx, o.OrderID, lt.SellerID, lt.OTP)
	assert.ErrorIs(t, err, lifecycle.ErrStateConflict, "not dispatched yet")

	_, err = h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)
	dispatched, err := h.Engine.MarkOutForDelivery(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)

	_, err = h.Engine.MarkDelivered(ctx, o.OrderID, lt.SellerID, "0000")
	assert.ErrorIs(t, err, lifecycle.ErrOTPMismatch)
	unchanged, err := h.Engine.GetStatus(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusUnderDelivery, unchanged.Status)
	assert.Len(t, unchanged.StatusTimeline, len(dispatched.StatusTimeline))

	done, err := h.Engine.MarkDelivered(ctx, o.OrderID, lt.SellerID, lt.OTP)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, done.Status)
	assert.Len(t, done.StatusTimeline, len(dispatched.StatusTimeline)+1)

	_, err = h.Engine.MarkDelivered(ctx, o.OrderID, lt.SellerID, lt.OTP)
	assert.ErrorIs(t, err, lifecycle.ErrStateConflict)
	final, err := h.Engine.GetStatus(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Len(t, final.StatusTimeline, len(done.StatusTimeline), "retry does not re-append")

	assert.Equal(t, []string{
		notifications.EventOrderPlaced,
		notifications.EventOrderAccepted,
		notifications.EventOrderOutForDelivery,
		notifications.EventOrderDelivered,
	}, h.Notifier.Types())
}

func TestTimelineIsAppendOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	prev := []orders.TimelineEntry{}
	steps := []func() error{
		func() error { return nil },
		func() error { _, err := h.Engine.AcceptOrder(ctx, o.OrderID, lt.SellerID); return err },
		func() error { _, err := h.Engine.MarkOutForDelivery(ctx, o.OrderID, lt.SellerID); return err },
		func() error { _, _ = h.Engine.MarkDelivered(ctx, o.OrderID, lt.SellerID, "9999"); return nil },
		func() error { _, err := h.Engine.MarkDelivered(ctx, o.OrderID, lt.SellerID, lt.OTP); return err },
		func() error { _, _ = h.Engine.CancelOrder(ctx, o.OrderID, "user-1", ""); return nil },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		got, err := h.Engine.GetStatus(ctx, o.OrderID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(got.StatusTimeline), len(prev))
		assert.Equal(t, prev, got.StatusTimeline[:len(prev)], "earlier entries are never rewritten")
		prev = got.StatusTimeline
	}
}

func TestListForUser_Buckets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
	h.Clock.Advance(time.Second)
	b := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Tomato(2)))
	h.Clock.Advance(time.Second)
	c := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Tomato(3)))
	h.Place(t, lt.Draft("user-2", orders.PaymentCOD, lt.Rice()))

	_, err := h.Engine.CancelOrder(ctx, b.OrderID, "user-1", "")
	require.NoError(t, err)
	_, err = h.Engine.AcceptOrder(ctx, c.OrderID, lt.SellerID)
	require.NoError(t, err)
	_, err = h.Engine.MarkOutForDelivery(ctx, c.OrderID, lt.SellerID)
	require.NoError(t, err)

	got, err := h.Engine.ListForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got.Processing, 1)
	assert.Equal(t, a.OrderID, got.Processing[0].OrderID)
	require.Len(t, got.UnderDelivery, 1)
	assert.Equal(t, c.OrderID, got.UnderDelivery[0].OrderID)
	require.Len(t, got.Cancelled, 1)
	assert.Equal(t, b.OrderID, got.Cancelled[0].OrderID)
	assert.Empty(t, got.Completed)
	assert.NotNil(t, got.Completed)
}

func TestOrderViews(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))

	mine, err := h.Engine.OrderForUser(ctx, o.OrderID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, lt.OTP, mine.DeliveryOTP)

	_, err = h.Engine.OrderForUser(ctx, o.OrderID, "user-2")
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)
	_, err = h.Engine.OrderForUser(ctx, o.OrderID, "")
	assert.ErrorIs(t, err, lifecycle.ErrValidation)

	theirs, err := h.Engine.OrderForSeller(ctx, o.OrderID, lt.SellerID)
	require.NoError(t, err)
	assert.Empty(t, theirs.DeliveryOTP)
	assert.Equal(t, o.OrderID, theirs.OrderID)

	_, err = h.Engine.OrderForSeller(ctx, o.OrderID, "seller-2")
	assert.ErrorIs(t, err, lifecycle.ErrForbidden)

	stored, err := h.Orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, lt.OTP, stored.DeliveryOTP, "the seller view is a copy")
}

func TestListForUser_NewestFirstWithinASecond(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	older := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
	h.Clock.Advance(500 * time.Millisecond)
	newer := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Tomato(2)))

	got, err := h.Engine.ListForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got.Processing, 2)
	assert.Equal(t, newer.OrderID, got.Processing[0].OrderID)
	assert.Equal(t, older.OrderID, got.Processing[1].OrderID)

	pending, err := h.Engine.ListPendingForSeller(ctx, lt.SellerID)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.OrderID, pending[0].OrderID, "sellers see the oldest first")
}

func TestListForUser_AppliesExpiry(t *testing.T) {
	h := newHarness(t)
	h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
	h.Clock.Advance(16 * time.Minute)

	got, err := h.Engine.ListForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, got.Processing)
	require.Len(t, got.Cancelled, 1)
	assert.Equal(t, orders.CancelledBySystem, got.Cancelled[0].CancelledBy)
}

func TestListPendingForSeller(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	old := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
	h.Clock.Advance(10 * time.Minute)
	mid := h.Place(t, lt.Draft("user-2", orders.PaymentCOD, lt.Tomato(1)))
	h.Clock.Advance(time.Minute)
	fresh := h.Place(t, lt.Draft("user-3", orders.PaymentCOD, lt.Tomato(2)))
	accepted := h.Place(t, lt.Draft("user-4", orders.PaymentCOD, lt.Tomato(4)))
	_, err := h.Engine.AcceptOrder(ctx, accepted.OrderID, lt.SellerID)
	require.NoError(t, err)

	h.Clock.Advance(5 * time.Minute) // old is now 16 minutes old
	got, err := h.Engine.ListPendingForSeller(ctx, lt.SellerID)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, mid.OrderID, got[0].OrderID, "most urgent first")
	assert.Equal(t, fresh.OrderID, got[1].OrderID)
	for _, o := range got {
		assert.Empty(t, o.DeliveryOTP, "sellers never see the hand-off code")
	}

	expired, err := h.Engine.GetStatus(ctx, old.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, expired.Status)
}

func TestExpireOverdue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
	b := h.Place(t, lt.Draft("user-2", orders.PaymentCOD, lt.Rice()))
	h.Clock.Advance(10 * time.Minute)
	c := h.Place(t, lt.Draft("user-3", orders.PaymentCOD, lt.Rice()))
	h.Clock.Advance(6 * time.Minute)

	n, err := h.Engine.ExpireOverdue(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	untouched, err := h.Orders.Get(ctx, a.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, untouched.Status, "dry run writes nothing")

	n, err = h.Engine.ExpireOverdue(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[string]orders.Status{
		a.OrderID: orders.StatusCancelled,
		b.OrderID: orders.StatusCancelled,
		c.OrderID: orders.StatusProcessing,
	} {
		got, err := h.Orders.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, id)
	}

	n, err = h.Engine.ExpireOverdue(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVerifyPayment(t *testing.T) {
	ctx := context.Background()
	place := func(t *testing.T, h *lt.Harness) *orders.Order {
		res, err := h.Engine.CreateOrder(ctx, lt.Draft("user-1", orders.PaymentRazorpay, lt.Rice()))
		require.NoError(t, err)
		require.NotNil(t, res.Payment)
		return res.Order
	}

	t.Run("success then replay", func(t *testing.T) {
		h := newHarness(t)
		o := place(t, h)
		cb := lifecycle.PaymentCallback{OrderID: o.OrderID, GatewayOrderID: o.GatewayOrderID, PaymentID: "pay_1", Signature: lt.Sign("pay_1")}

		paid, err := h.Engine.VerifyPayment(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, orders.PaymentPaid, paid.PaymentStatus)
		assert.Equal(t, "pay_1", paid.GatewayPaymentID)

		again, err := h.Engine.VerifyPayment(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, orders.PaymentPaid, again.PaymentStatus)

		cb.PaymentID, cb.Signature = "pay_2", lt.Sign("pay_2")
		_, err = h.Engine.VerifyPayment(ctx, cb)
		assert.ErrorIs(t, err, lifecycle.ErrStateConflict)
		assert.Contains(t, h.Notifier.Types(), notifications.EventOrderPaid)
	})

	t.Run("bad signature keeps pending", func(t *testing.T) {
		h := newHarness(t)
		o := place(t, h)

		_, err := h.Engine.VerifyPayment(ctx, lifecycle.PaymentCallback{
			OrderID: o.OrderID, GatewayOrderID: o.GatewayOrderID, PaymentID: "pay_1", Signature: "forged",
		})
		require.ErrorIs(t, err, lifecycle.ErrPaymentVerification)
		var lerr *lifecycle.Error
		require.True(t, errors.As(err, &lerr))
		assert.Equal(t, orders.PaymentPending, lerr.PaymentStatus)

		got, err := h.Orders.Get(ctx, o.OrderID)
		require.NoError(t, err)
		assert.Equal(t, orders.PaymentPending, got.PaymentStatus)
	})

	t.Run("bad signature marks failed", func(t *testing.T) {
		settings := lt.DefaultSettings()
		settings.PaymentFailurePolicy = lifecycle.MarkFailedOnFailure
		h := lt.New(t, settings)
		o := place(t, h)

		_, err := h.Engine.VerifyPayment(ctx, lifecycle.PaymentCallback{
			OrderID: o.OrderID, GatewayOrderID: o.GatewayOrderID, PaymentID: "pay_1", Signature: "forged",
		})
		var lerr *lifecycle.Error
		require.True(t, errors.As(err, &lerr))
		assert.ErrorIs(t, err, lifecycle.ErrPaymentVerification)
		assert.Equal(t, orders.PaymentFailed, lerr.PaymentStatus)

		got, err := h.Orders.Get(ctx, o.OrderID)
		require.NoError(t, err)
		assert.Equal(t, orders.PaymentFailed, got.PaymentStatus)
		assert.Contains(t, h.Notifier.Types(), notifications.EventPaymentFailed)

		// a later valid callback still settles the order
		paid, err := h.Engine.VerifyPayment(ctx, lifecycle.PaymentCallback{
			OrderID: o.OrderID, GatewayOrderID: o.GatewayOrderID, PaymentID: "pay_2", Signature: lt.Sign("pay_2"),
		})
		require.NoError(t, err)
		assert.Equal(t, orders.PaymentPaid, paid.PaymentStatus)
	})

	t.Run("gateway order mismatch", func(t *testing.T) {
		h := newHarness(t)
		o := place(t, h)

		_, err := h.Engine.VerifyPayment(ctx, lifecycle.PaymentCallback{
			OrderID: o.OrderID, GatewayOrderID: "order_other", PaymentID: "pay_1", Signature: lt.Sign("pay_1"),
		})
		assert.ErrorIs(t, err, lifecycle.ErrPaymentVerification)
	})

	t.Run("gateway outage is not a verification failure", func(t *testing.T) {
		h := newHarness(t)
		o := place(t, h)
		h.Gateway.VerifyErr = errors.New("connection reset")

		_, err := h.Engine.VerifyPayment(ctx, lifecycle.PaymentCallback{
			OrderID: o.OrderID, GatewayOrderID: o.GatewayOrderID, PaymentID: "pay_1", Signature: lt.Sign("pay_1"),
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, lifecycle.ErrPaymentVerification)
	})

	t.Run("incomplete callback", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.Engine.VerifyPayment(ctx, lifecycle.PaymentCallback{OrderID: "x"})
		assert.ErrorIs(t, err, lifecycle.ErrValidation)
	})
}

func TestCreatePaymentIntent_Guards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cod := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
	_, _, err := h.Engine.CreatePaymentIntent(ctx, cod.OrderID)
	assert.ErrorIs(t, err, lifecycle.ErrValidation)

	upi := h.Place(t, lt.Draft("user-1", orders.PaymentUPI, lt.Rice()))
	_, err = h.Engine.CancelOrder(ctx, upi.OrderID, "user-1", "")
	require.NoError(t, err)
	_, _, err = h.Engine.CreatePaymentIntent(ctx, upi.OrderID)
	assert.ErrorIs(t, err, lifecycle.ErrStateConflict)

	_, _, err = h.Engine.CreatePaymentIntent(ctx, "missing")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestSideEffectFailuresDoNotFailTransitions(t *testing.T) {
	h := newHarness(t)
	h.Notifier.Err = errors.New("queue unavailable")

	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
	_, err := h.Engine.AcceptOrder(context.Background(), o.OrderID, lt.SellerID)
	assert.NoError(t, err)
}

func TestStorageFailureIsNotABusinessError(t *testing.T) {
	h := newHarness(t)
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
	h.DB.FailNext("UpdateItem", errors.New("throttled"))

	_, err := h.Engine.AcceptOrder(context.Background(), o.OrderID, lt.SellerID)
	require.Error(t, err)
	var lerr *lifecycle.Error
	assert.False(t, errors.As(err, &lerr))
}
