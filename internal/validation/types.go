package validation

import "github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"

// Item is a checkout line item as sent by the client.
type Item struct {
	ID       string         `json:"id" validate:"required"`
	Name     string         `json:"name"`
	Price    pricing.Amount `json:"price"`                              // must match the catalog price
	Quantity int            `json:"quantity" validate:"required,min=1"` // must be >= 1
	Image    string         `json:"image,omitempty"`
	IsVeg    bool           `json:"isVeg"`
}

type Address struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required,min=7,max=15"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Landmark   string `json:"landmark,omitempty"`
}

type StoreDetails struct {
	SellerID         string `json:"sellerId" validate:"required"`
	SellerCollection string `json:"sellerCollection,omitempty"`
}

// CreateOrderRequest is the payload for POST /orders/create
type CreateOrderRequest struct {
	UserID          string         `json:"userId" validate:"required"`
	Products        []Item         `json:"products" validate:"required,min=1,dive"`
	Subtotal        pricing.Amount `json:"subtotal"`
	DeliveryFee     pricing.Amount `json:"deliveryFee"`
	TotalAmount     pricing.Amount `json:"totalAmount"`
	PaymentMethod   string         `json:"paymentMethod" validate:"required,oneof=COD Razorpay UPI Wallet"`
	DeliveryAddress Address        `json:"deliveryAddress"`
	StoreDetails    StoreDetails   `json:"storeDetails"`
}

// VerifyPaymentRequest is the payload for POST /orders/verify-payment
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
	OrderID           string `json:"orderId" validate:"required"`
}

// CancelOrderRequest is the payload for PUT /orders/cancel/:orderId
type CancelOrderRequest struct {
	UserID string `json:"userId" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"max=280"`
}

// SellerActionRequest is the payload for the seller accept / reject /
// out-for-delivery routes.
type SellerActionRequest struct {
	SellerID string `json:"sellerId" validate:"required"`
	Reason   string `json:"reason,omitempty" validate:"max=280"`
}

// DeliverRequest is the payload for PUT /orders/seller/deliver/:orderId
type DeliverRequest struct {
	SellerID string `json:"sellerId" validate:"required"`
	OTP      string `json:"otp" validate:"required,numeric,len=4"`
}
