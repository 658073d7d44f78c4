// Package payment adapts the Razorpay gateway: order (intent) creation and
// checkout signature verification.
package payment

import (
	"context"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"
)

var (
	ErrInvalidSignature = errors.New("payment signature mismatch")
	ErrNotConfigured    = errors.New("payment gateway not configured")
)

// Intent is a gateway-side order the client completes in the checkout widget.
type Intent struct {
	GatewayOrderID string         `json:"gatewayOrderId"`
	Amount         pricing.Amount `json:"amount"`
	Currency       string         `json:"currency"`
	KeyID          string         `json:"keyId"`
	Receipt        string         `json:"receipt"`
}

// orderCreator is satisfied by the SDK's client.Order resource.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Razorpay struct {
	orders orderCreator
	keyID  string
	secret string
}

func NewRazorpay(keyID, secret string) *Razorpay {
	client := razorpay.NewClient(keyID, secret)
	return &Razorpay{orders: client.Order, keyID: keyID, secret: secret}
}

// CreateIntent creates a Razorpay order for amount. receipt is our order id.
func (r *Razorpay) CreateIntent(ctx context.Context, amount pricing.Amount, currency, receipt string) (Intent, error) {
	if r.keyID == "" || r.secret == "" {
		return Intent{}, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	body, err := r.orders.Create(map[string]interface{}{
		"amount":   amount.MinorUnits(),
		"currency": currency,
		"receipt":  receipt,
		"notes": map[string]interface{}{
			"order_id": receipt,
		},
	}, nil)
	if err != nil {
		return Intent{}, fmt.Errorf("razorpay create order: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return Intent{}, fmt.Errorf("razorpay create order: response has no id")
	}
	return Intent{
		GatewayOrderID: id,
		Amount:         amount,
		Currency:       currency,
		KeyID:          r.keyID,
		Receipt:        receipt,
	}, nil
}

// Verify checks the checkout callback signature over "order_id|payment_id".
func (r *Razorpay) Verify(ctx context.Context, gatewayOrderID, paymentID, signature string) error {
	if r.secret == "" {
		return ErrNotConfigured
	}
	params := map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": paymentID,
	}
	if !utils.VerifyPaymentSignature(params, signature, r.secret) {
		return ErrInvalidSignature
	}
	return nil
}
