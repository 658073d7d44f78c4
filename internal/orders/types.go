package orders

import (
	"time"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"
)

// Status is the primary fulfillment status of an order.
type Status string

const (
	StatusProcessing    Status = "Processing"
	StatusUnderDelivery Status = "Under Delivery"
	StatusCompleted     Status = "Completed"
	StatusCancelled     Status = "Cancelled"
)

// SellerDecision tracks the seller's response, orthogonal to Status.
type SellerDecision string

const (
	DecisionPending  SellerDecision = "pending"
	DecisionAccepted SellerDecision = "accepted"
	DecisionRejected SellerDecision = "rejected"
)

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "COD"
	PaymentRazorpay PaymentMethod = "Razorpay"
	PaymentUPI      PaymentMethod = "UPI"
	PaymentWallet   PaymentMethod = "Wallet"
)

// ViaGateway reports whether the method settles through the payment gateway.
func (m PaymentMethod) ViaGateway() bool { return m != PaymentCOD }

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Timeline labels.
const (
	LabelPlaced         = "Order Placed"
	LabelConfirmed      = "Order Confirmed"
	LabelRejected       = "Rejected by Seller"
	LabelAutoRejected   = "Auto-Rejected: Seller Approval Deadline Passed"
	LabelCancelled      = "Cancelled by Customer"
	LabelOutForDelivery = "Out for Delivery"
	LabelDelivered      = "Delivered"
)

// Who cancelled an order.
const (
	CancelledByCustomer = "customer"
	CancelledBySeller   = "seller"
	CancelledBySystem   = "system"
)

// LineItem is a catalog snapshot taken when the order was placed.
type LineItem struct {
	ID       string         `json:"id" dynamodbav:"id"`
	Name     string         `json:"name" dynamodbav:"name"`
	Price    pricing.Amount `json:"price" dynamodbav:"price"`
	Quantity int            `json:"quantity" dynamodbav:"quantity"`
	Image    string         `json:"image,omitempty" dynamodbav:"image,omitempty"`
	IsVeg    bool           `json:"isVeg" dynamodbav:"is_veg"`
}

// Address is a snapshot of the delivery address.
type Address struct {
	Name       string `json:"name" dynamodbav:"name"`
	Phone      string `json:"phone" dynamodbav:"phone"`
	Street     string `json:"street" dynamodbav:"street"`
	City       string `json:"city" dynamodbav:"city"`
	State      string `json:"state" dynamodbav:"state"`
	PostalCode string `json:"postalCode" dynamodbav:"postal_code"`
	Landmark   string `json:"landmark,omitempty" dynamodbav:"landmark,omitempty"`
}

type StoreDetails struct {
	SellerID         string `json:"sellerId" dynamodbav:"seller_id"`
	SellerCollection string `json:"sellerCollection" dynamodbav:"seller_collection"`
}

type TimelineEntry struct {
	Status    string    `json:"status" dynamodbav:"status"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// Order represents the item stored in the Orders DynamoDB table.
// seller_id and user_id are duplicated at the top level for the GSIs.
type Order struct {
	OrderID                string          `json:"orderId" dynamodbav:"order_id"` // PK
	UserID                 string          `json:"userId" dynamodbav:"user_id"`
	SellerID               string          `json:"-" dynamodbav:"seller_id"`
	Products               []LineItem      `json:"products" dynamodbav:"products"`
	Subtotal               pricing.Amount  `json:"subtotal" dynamodbav:"subtotal"`
	DeliveryFee            pricing.Amount  `json:"deliveryFee" dynamodbav:"delivery_fee"`
	TotalAmount            pricing.Amount  `json:"totalAmount" dynamodbav:"total_amount"`
	Currency               string          `json:"currency" dynamodbav:"currency"`
	PaymentMethod          PaymentMethod   `json:"paymentMethod" dynamodbav:"payment_method"`
	PaymentStatus          PaymentStatus   `json:"paymentStatus" dynamodbav:"payment_status"`
	GatewayOrderID         string          `json:"gatewayOrderId,omitempty" dynamodbav:"gateway_order_id,omitempty"`
	GatewayPaymentID       string          `json:"gatewayPaymentId,omitempty" dynamodbav:"gateway_payment_id,omitempty"`
	Status                 Status          `json:"status" dynamodbav:"status"`
	SellerDecision         SellerDecision  `json:"sellerDecision" dynamodbav:"seller_decision"`
	StatusTimeline         []TimelineEntry `json:"statusTimeline" dynamodbav:"status_timeline"`
	DeliveryAddress        Address         `json:"deliveryAddress" dynamodbav:"delivery_address"`
	StoreDetails           StoreDetails    `json:"storeDetails" dynamodbav:"store_details"`
	Timestamp              time.Time       `json:"timestamp" dynamodbav:"created_at"`
	SellerApprovalDeadline time.Time       `json:"sellerApprovalDeadline" dynamodbav:"seller_approval_deadline"`
	DeliveryOTP            string          `json:"deliveryOtp,omitempty" dynamodbav:"delivery_otp"`
	CancelledBy            string          `json:"cancelledBy,omitempty" dynamodbav:"cancelled_by,omitempty"`
	CancelReason           string          `json:"cancelReason,omitempty" dynamodbav:"cancel_reason,omitempty"`
	UpdatedAt              time.Time       `json:"updatedAt" dynamodbav:"updated_at"`
}

// AwaitingSeller reports whether the order still needs a seller decision.
func (o Order) AwaitingSeller() bool {
	return o.Status == StatusProcessing && o.SellerDecision == DecisionPending
}

// ForSeller returns a copy safe to show a seller: the hand-off code is removed.
func (o Order) ForSeller() Order {
	o.DeliveryOTP = ""
	return o
}

// Transition is a single conditional update of an order: the expected state
// must still hold when the write lands, and the timeline entry is appended
// in the same write.
type Transition struct {
	ExpectedStatus   Status
	ExpectedDecision SellerDecision // empty means any

	NewStatus    Status
	NewDecision  SellerDecision // empty means unchanged
	Entry        TimelineEntry
	CancelledBy  string
	CancelReason string
}
