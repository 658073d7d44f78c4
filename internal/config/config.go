// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/lifecycle"
)

type Config struct {
	RunLocal   bool   `envconfig:"RUN_LOCAL" default:"false"`
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	AWSRegion           string `envconfig:"AWS_REGION"`
	AWSEndpointOverride string `envconfig:"AWS_ENDPOINT_OVERRIDE"`

	OrdersTable        string `envconfig:"ORDERS_TABLE" required:"true"`
	IdempotencyTable   string `envconfig:"IDEMPOTENCY_TABLE" required:"true"`
	ProductsTable      string `envconfig:"PRODUCTS_TABLE" required:"true"`
	SellersTable       string `envconfig:"SELLERS_TABLE" required:"true"`
	NotificationsTable string `envconfig:"NOTIFICATIONS_TABLE" required:"true"`
	QueueURL           string `envconfig:"NOTIFICATIONS_QUEUE_URL" required:"true"`
	MetricsNamespace   string `envconfig:"METRICS_NAMESPACE" default:"FreshCart/Orders"`

	RazorpayKeyID     string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `envconfig:"RAZORPAY_KEY_SECRET"`
	Currency          string `envconfig:"CURRENCY" default:"INR"`

	DeliveryFee           string `envconfig:"DELIVERY_FEE" default:"50"`
	FreeDeliveryThreshold string `envconfig:"FREE_DELIVERY_THRESHOLD" default:"500"`

	CancellationWindow   time.Duration `envconfig:"CANCELLATION_WINDOW" default:"6m"`
	SellerApprovalWindow time.Duration `envconfig:"SELLER_APPROVAL_WINDOW" default:"15m"`
	PaymentFailurePolicy string        `envconfig:"PAYMENT_FAILURE_POLICY" default:"keep_pending"`
	IdempotencyTTL       time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"48h"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := decimal.NewFromString(c.DeliveryFee); err != nil {
		return fmt.Errorf("DELIVERY_FEE: %w", err)
	}
	if _, err := decimal.NewFromString(c.FreeDeliveryThreshold); err != nil {
		return fmt.Errorf("FREE_DELIVERY_THRESHOLD: %w", err)
	}
	if c.CancellationWindow <= 0 || c.SellerApprovalWindow <= 0 {
		return errors.New("CANCELLATION_WINDOW and SELLER_APPROVAL_WINDOW must be positive")
	}
	switch c.PaymentFailurePolicy {
	case lifecycle.KeepPendingOnFailure, lifecycle.MarkFailedOnFailure:
	default:
		return fmt.Errorf("PAYMENT_FAILURE_POLICY: unknown policy %q", c.PaymentFailurePolicy)
	}
	return nil
}

// Fees returns the parsed delivery fee and free-delivery threshold.
// Validate must have succeeded.
func (c Config) Fees() (fee, threshold decimal.Decimal) {
	return decimal.RequireFromString(c.DeliveryFee), decimal.RequireFromString(c.FreeDeliveryThreshold)
}
