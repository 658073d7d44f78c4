package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/catalog"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/payment"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"
)

// DraftItem is a line of a checkout request. Only the id, the price the
// customer saw and the quantity are taken from the client; everything else
// is read from the catalog.
type DraftItem struct {
	ID       string
	Price    pricing.Amount
	Quantity int
}

// Draft is a checkout request.
type Draft struct {
	UserID        string
	Items         []DraftItem
	Subtotal      pricing.Amount
	DeliveryFee   pricing.Amount
	TotalAmount   pricing.Amount
	PaymentMethod orders.PaymentMethod
	Address       orders.Address
	Store         orders.StoreDetails
	// CheckoutKey makes creation idempotent when set.
	CheckoutKey string
}

type CreateResult struct {
	Order *orders.Order
	// Payment is set for gateway payment methods when the intent could be
	// created right away.
	Payment *payment.Intent
}

// CreateOrder validates d against the seller's catalog and the pricing
// rules, then persists a new Processing order awaiting the seller.
func (e *Engine) CreateOrder(ctx context.Context, d Draft) (*CreateResult, error) {
	if fields := checkDraft(d); len(fields) > 0 {
		return nil, validationError(fields, "order request is incomplete")
	}

	seller, err := e.catalog.Seller(ctx, d.Store.SellerID)
	if err != nil {
		if errors.Is(err, catalog.ErrSellerNotFound) {
			return nil, newError(ErrNotFound, "seller %s not found", d.Store.SellerID)
		}
		return nil, fmt.Errorf("lookup seller: %w", err)
	}
	if d.Store.SellerCollection != "" && d.Store.SellerCollection != seller.SellerCollection {
		return nil, validationError(map[string]string{"storeDetails.sellerCollection": "does not belong to seller"},
			"store collection does not match seller")
	}

	items := make([]orders.LineItem, 0, len(d.Items))
	lines := make([]pricing.Line, 0, len(d.Items))
	for i, it := range d.Items {
		p, err := e.catalog.Product(ctx, seller.SellerCollection, it.ID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, newError(ErrNotFound, "product %s not found in store", it.ID)
			}
			return nil, fmt.Errorf("lookup product %s: %w", it.ID, err)
		}
		if !it.Price.Equal(p.Price) {
			return nil, validationError(map[string]string{fmt.Sprintf("products[%d].price", i): "price changed"},
				"price of %s is now %s", p.Name, p.Price.StringFixed(2))
		}
		items = append(items, orders.LineItem{
			ID:       p.ProductID,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: it.Quantity,
			Image:    p.Image,
			IsVeg:    p.IsVeg,
		})
		lines = append(lines, pricing.Line{Price: p.Price, Quantity: it.Quantity})
	}

	quote := e.settings.Pricing.Quote(pricing.Subtotal(lines))
	if !quote.Subtotal.Equal(d.Subtotal) {
		return nil, validationError(map[string]string{"subtotal": "does not match items"},
			"subtotal should be %s", quote.Subtotal.StringFixed(2))
	}
	if !quote.DeliveryFee.Equal(d.DeliveryFee) {
		return nil, validationError(map[string]string{"deliveryFee": "does not match pricing"},
			"delivery fee should be %s", quote.DeliveryFee.StringFixed(2))
	}
	if !quote.TotalAmount.Equal(d.TotalAmount) {
		return nil, validationError(map[string]string{"totalAmount": "must equal subtotal plus delivery fee"},
			"total should be %s", quote.TotalAmount.StringFixed(2))
	}

	otp, err := e.newOTP()
	if err != nil {
		return nil, err
	}
	now := e.now()
	order := orders.Order{
		OrderID:                e.newID(),
		UserID:                 d.UserID,
		Products:               items,
		Subtotal:               quote.Subtotal,
		DeliveryFee:            quote.DeliveryFee,
		TotalAmount:            quote.TotalAmount,
		Currency:               e.settings.Currency,
		PaymentMethod:          d.PaymentMethod,
		PaymentStatus:          orders.PaymentPending,
		Status:                 orders.StatusProcessing,
		SellerDecision:         orders.DecisionPending,
		StatusTimeline:         []orders.TimelineEntry{{Status: orders.LabelPlaced, Timestamp: now}},
		DeliveryAddress:        d.Address,
		StoreDetails:           orders.StoreDetails{SellerID: seller.SellerID, SellerCollection: seller.SellerCollection},
		Timestamp:              now,
		SellerApprovalDeadline: now.Add(e.settings.SellerApprovalWindow),
		DeliveryOTP:            otp,
		UpdatedAt:              now,
	}
	if err := e.repo.Create(ctx, order, d.CheckoutKey); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	e.observe(ctx, "place", notifications.EventOrderPlaced, &order, "")

	res := &CreateResult{Order: &order}
	if order.PaymentMethod.ViaGateway() {
		intent, updated, err := e.openIntent(ctx, &order)
		if err != nil {
			// the order stands; the client can ask for an intent again
			e.log.Warn().Err(err).Str("order_id", order.OrderID).Msg("payment intent not created at checkout")
			return res, nil
		}
		res.Order, res.Payment = updated, &intent
	}
	return res, nil
}

func checkDraft(d Draft) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(d.UserID) == "" {
		fields["userId"] = "required"
	}
	if len(d.Items) == 0 {
		fields["products"] = "at least one product is required"
	}
	for i, it := range d.Items {
		if it.ID == "" {
			fields[fmt.Sprintf("products[%d].id", i)] = "required"
		}
		if it.Quantity < 1 {
			fields[fmt.Sprintf("products[%d].quantity", i)] = "must be at least 1"
		}
		if !it.Price.IsPositive() {
			fields[fmt.Sprintf("products[%d].price", i)] = "must be positive"
		}
	}
	switch d.PaymentMethod {
	case orders.PaymentCOD, orders.PaymentRazorpay, orders.PaymentUPI, orders.PaymentWallet:
	default:
		fields["paymentMethod"] = "must be one of COD Razorpay UPI Wallet"
	}
	if d.Store.SellerID == "" {
		fields["storeDetails.sellerId"] = "required"
	}
	a := d.Address
	for name, v := range map[string]string{
		"name":       a.Name,
		"phone":      a.Phone,
		"street":     a.Street,
		"city":       a.City,
		"state":      a.State,
		"postalCode": a.PostalCode,
	} {
		if strings.TrimSpace(v) == "" {
			fields["deliveryAddress."+name] = "required"
		}
	}
	return fields
}
