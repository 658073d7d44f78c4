package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// the submitted amounts must be consistent with the line items before the
	// engine compares them with catalog prices and the delivery rules
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

// createOrderStructValidation verifies subtotal == sum(price*quantity) and
// totalAmount == subtotal + deliveryFee, compared at paise precision.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	lines := make([]pricing.Line, 0, len(req.Products))
	for _, it := range req.Products {
		if !it.Price.IsPositive() {
			sl.ReportError(it.Price, "price", "Price", "gt", "0")
		}
		lines = append(lines, pricing.Line{Price: it.Price, Quantity: it.Quantity})
	}
	sum := pricing.Subtotal(lines)

	if !sum.Equal(req.Subtotal) {
		sl.ReportError(req.Subtotal, "subtotal", "Subtotal", "subtotal_match_items", fmt.Sprintf("items sum %s != subtotal %s", sum.StringFixed(2), req.Subtotal.StringFixed(2)))
	}
	if req.DeliveryFee.IsNegative() {
		sl.ReportError(req.DeliveryFee, "deliveryFee", "DeliveryFee", "gte", "0")
	}
	if !req.Subtotal.Add(req.DeliveryFee).Equal(req.TotalAmount) {
		sl.ReportError(req.TotalAmount, "totalAmount", "TotalAmount", "total_match_subtotal", "")
	}
}
