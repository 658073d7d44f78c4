// Package lifecycletest wires an Engine to in-memory storage and fake
// collaborators for tests.
package lifecycletest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/rs/zerolog"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/aws/awstest"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/catalog"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/lifecycle"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/payment"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/pricing"
)

const (
	OrdersTable      = "orders"
	IdempotencyTable = "idempotency"
	SellersTable     = "sellers"
	ProductsTable    = "products"

	SellerID   = "seller-1"
	Collection = "store_seller1"
	OTP        = "4821"
)

// Start is the fixed time the clock begins at.
var Start = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Gateway is a fake payment gateway. A signature equal to "sig:"+paymentID
// verifies.
type Gateway struct {
	mu        sync.Mutex
	next      int
	CreateErr error
	VerifyErr error
	Intents   []payment.Intent
}

func (g *Gateway) CreateIntent(ctx context.Context, amount pricing.Amount, currency, receipt string) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return payment.Intent{}, g.CreateErr
	}
	g.next++
	in := payment.Intent{
		GatewayOrderID: fmt.Sprintf("order_gw%d", g.next),
		Amount:         amount,
		Currency:       currency,
		KeyID:          "rzp_test_key",
		Receipt:        receipt,
	}
	g.Intents = append(g.Intents, in)
	return in, nil
}

func (g *Gateway) Verify(ctx context.Context, gatewayOrderID, paymentID, signature string) error {
	if g.VerifyErr != nil {
		return g.VerifyErr
	}
	if signature != Sign(paymentID) {
		return payment.ErrInvalidSignature
	}
	return nil
}

// Sign returns the signature Gateway accepts for paymentID.
func Sign(paymentID string) string { return "sig:" + paymentID }

// Notifier records published events.
type Notifier struct {
	mu     sync.Mutex
	Events []notifications.Event
	Err    error
}

func (n *Notifier) Publish(ctx context.Context, ev notifications.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Events = append(n.Events, ev)
	return nil
}

// Types returns the recorded event types in order.
func (n *Notifier) Types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.Events))
	for _, ev := range n.Events {
		out = append(out, ev.Type)
	}
	return out
}

// Counter records metric names by transition.
type Counter struct {
	mu     sync.Mutex
	Counts map[string]int
}

func (c *Counter) Count(ctx context.Context, name string, dims map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Counts == nil {
		c.Counts = map[string]int{}
	}
	c.Counts[dims["Transition"]]++
	return nil
}

type Harness struct {
	DB       *awstest.MemoryDynamo
	Orders   *orders.Store
	Catalog  *catalog.Store
	Gateway  *Gateway
	Notifier *Notifier
	Metrics  *Counter
	Clock    *Clock
	Engine   *lifecycle.Engine
}

// DefaultSettings mirrors the service defaults.
func DefaultSettings() lifecycle.Settings {
	return lifecycle.Settings{
		Pricing: pricing.Rules{
			DeliveryFee:           pricing.MustAmount("50"),
			FreeDeliveryThreshold: pricing.MustAmount("500"),
		},
		Currency:             "INR",
		CancellationWindow:   6 * time.Minute,
		SellerApprovalWindow: 15 * time.Minute,
		PaymentFailurePolicy: lifecycle.KeepPendingOnFailure,
	}
}

// New builds a Harness with one active seller whose catalog holds:
// p-tomato 40, p-rice 450, p-milk 30 and an unavailable p-saffron.
func New(t testing.TB, settings lifecycle.Settings) *Harness {
	t.Helper()
	db := awstest.NewMemoryDynamo()
	db.CreateTable(OrdersTable, "order_id", "")
	db.AddIndex(OrdersTable, orders.UserIndex, "user_id")
	db.AddIndex(OrdersTable, orders.SellerIndex, "seller_id")
	db.CreateTable(IdempotencyTable, "idempotency_key", "")
	db.CreateTable(SellersTable, "seller_id", "")
	db.CreateTable(ProductsTable, "seller_collection", "product_id")

	seed(t, db, SellersTable, catalog.Seller{SellerID: SellerID, Name: "Green Basket", SellerCollection: Collection, Active: true})
	for _, p := range []catalog.Product{
		{ProductID: "p-tomato", Name: "Tomatoes 1kg", Price: pricing.MustAmount("40"), IsVeg: true, Available: true},
		{ProductID: "p-rice", Name: "Basmati 5kg", Price: pricing.MustAmount("450"), IsVeg: true, Available: true},
		{ProductID: "p-milk", Name: "Milk 1L", Price: pricing.MustAmount("30"), IsVeg: true, Available: true},
		{ProductID: "p-saffron", Name: "Saffron 1g", Price: pricing.MustAmount("300"), IsVeg: true, Available: false},
	} {
		p.SellerCollection = Collection
		seed(t, db, ProductsTable, p)
	}

	h := &Harness{
		DB:       db,
		Orders:   orders.NewStore(db, OrdersTable, IdempotencyTable, 48*time.Hour),
		Catalog:  catalog.NewStore(db, SellersTable, ProductsTable),
		Gateway:  &Gateway{},
		Notifier: &Notifier{},
		Metrics:  &Counter{},
		Clock:    &Clock{now: Start},
	}
	ids := 0
	h.Engine = lifecycle.NewEngine(h.Orders, h.Catalog, h.Gateway, settings, zerolog.New(io.Discard),
		lifecycle.WithClock(h.Clock.Now),
		lifecycle.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("ord-%03d", ids)
		}),
		lifecycle.WithOTPGenerator(func() (string, error) { return OTP, nil }),
		lifecycle.WithNotifier(h.Notifier),
		lifecycle.WithMetrics(h.Metrics),
	)
	return h
}

func seed(t testing.TB, db *awstest.MemoryDynamo, table string, v interface{}) {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		t.Fatalf("marshal seed item: %v", err)
	}
	if err := db.Seed(table, item); err != nil {
		t.Fatalf("seed %s: %v", table, err)
	}
}

// Address is a complete delivery address.
func Address() orders.Address {
	return orders.Address{
		Name:       "Asha Menon",
		Phone:      "9847000000",
		Street:     "12 Marine Drive",
		City:       "Kochi",
		State:      "Kerala",
		PostalCode: "682031",
	}
}

// Draft returns a consistent checkout for the given user and items, priced
// with the default rules.
func Draft(userID string, method orders.PaymentMethod, items ...lifecycle.DraftItem) lifecycle.Draft {
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{Price: it.Price, Quantity: it.Quantity})
	}
	q := DefaultSettings().Pricing.Quote(pricing.Subtotal(lines))
	return lifecycle.Draft{
		UserID:        userID,
		Items:         items,
		Subtotal:      q.Subtotal,
		DeliveryFee:   q.DeliveryFee,
		TotalAmount:   q.TotalAmount,
		PaymentMethod: method,
		Address:       Address(),
		Store:         orders.StoreDetails{SellerID: SellerID},
	}
}

// Rice is a 450 line that leaves the order just below free delivery.
func Rice() lifecycle.DraftItem {
	return lifecycle.DraftItem{ID: "p-rice", Price: pricing.MustAmount("450"), Quantity: 1}
}

func Tomato(qty int) lifecycle.DraftItem {
	return lifecycle.DraftItem{ID: "p-tomato", Price: pricing.MustAmount("40"), Quantity: qty}
}

// Place creates an order and fails the test on error.
func (h *Harness) Place(t testing.TB, d lifecycle.Draft) *orders.Order {
	t.Helper()
	res, err := h.Engine.CreateOrder(context.Background(), d)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return res.Order
}
