package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/idempotency"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/lifecycle"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/notifications"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/payment"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/validation"
)

// IdempotencyStore is implemented by idempotency.Store.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// NotificationLister is implemented by notifications.Store.
type NotificationLister interface {
	ListForRecipient(ctx context.Context, recipientID string) ([]notifications.Notification, error)
}

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	Engine        *lifecycle.Engine
	Idempotency   IdempotencyStore
	Notifications NotificationLister
	Logger        zerolog.Logger
}

type ordersHandler struct {
	engine        *lifecycle.Engine
	idemp         IdempotencyStore
	notifications NotificationLister
	v             *validatorv10.Validate
	log           zerolog.Logger
}

// createOrderResponse is the checkout response, replayed verbatim for a
// repeated Idempotency-Key.
type createOrderResponse struct {
	OrderID string          `json:"orderId"`
	Order   *orders.Order   `json:"order"`
	Payment *payment.Intent `json:"payment,omitempty"`
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &ordersHandler{
		engine:        cfg.Engine,
		idemp:         cfg.Idempotency,
		notifications: cfg.Notifications,
		v:             validation.New(),
		log:           cfg.Logger,
	}

	g := r.Group("/orders")
	g.POST("/create", h.createOrder)
	g.POST("/payment-intent/:orderId", h.createPaymentIntent)
	g.POST("/verify-payment", h.verifyPayment)
	g.GET("/status/:orderId", h.getStatus)
	g.GET("/list/:userId", h.listForUser)
	g.PUT("/cancel/:orderId", h.cancelOrder)

	s := g.Group("/seller")
	s.GET("/pending/:sellerId", h.listPendingForSeller)
	s.PUT("/accept/:orderId", h.acceptOrder)
	s.PUT("/reject/:orderId", h.rejectOrder)
	s.PUT("/out-for-delivery/:orderId", h.markOutForDelivery)
	s.PUT("/deliver/:orderId", h.markDelivered)

	if cfg.Notifications != nil {
		r.GET("/notifications/:recipientId", h.listNotifications)
	}
}

func (h *ordersHandler) createOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	// optional: a repeated key replays the first response
	idempKey := c.GetHeader("Idempotency-Key")
	if h.idemp == nil {
		idempKey = ""
	}

	res, err := h.engine.CreateOrder(ctx, toDraft(req, idempKey))
	if errors.Is(err, orders.ErrCheckoutKeyExists) {
		h.replay(c, idempKey)
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := createOrderResponse{OrderID: res.Order.OrderID, Order: res.Order, Payment: res.Payment}
	if idempKey != "" {
		body, err := json.Marshal(resp)
		h.remember(ctx, idempKey, res.Order.OrderID, string(body), err)
	}

	c.Header("Location", fmt.Sprintf("/orders/status/%s?userId=%s", res.Order.OrderID, url.QueryEscape(res.Order.UserID)))
	c.JSON(http.StatusCreated, resp)
}

// remember stores the checkout response under its key, or marks the key
// FAILED when the response could not be encoded. Store errors are logged;
// the order already exists.
func (h *ordersHandler) remember(ctx context.Context, key, orderID, body string, encodeErr error) {
	if encodeErr != nil {
		if err := h.idemp.MarkFailed(ctx, key, fmt.Sprintf("marshal response: %v", encodeErr)); err != nil {
			h.log.Warn().Err(err).Str("idempotency_key", key).Str("order_id", orderID).Msg("marking idempotency key as failed errored")
		}
		return
	}
	if err := h.idemp.MarkDone(ctx, key, body, http.StatusCreated); err != nil {
		h.log.Warn().Err(err).Str("idempotency_key", key).Str("order_id", orderID).Msg("mark idempotency done failed")
	}
}

// replay answers a checkout whose key was already used.
func (h *ordersHandler) replay(c *gin.Context, key string) {
	rec, err := h.idemp.Get(c.Request.Context(), key)
	if err != nil {
		h.log.Error().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"orderId": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "orderId": rec.OrderID})
	case idempotency.StatusFailed:
		// the order exists; the client can read it by id
		c.JSON(http.StatusConflict, gin.H{"error": "previous_attempt_failed", "orderId": rec.OrderID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

func toDraft(req validation.CreateOrderRequest, key string) lifecycle.Draft {
	items := make([]lifecycle.DraftItem, 0, len(req.Products))
	for _, it := range req.Products {
		items = append(items, lifecycle.DraftItem{ID: it.ID, Price: it.Price, Quantity: it.Quantity})
	}
	a := req.DeliveryAddress
	return lifecycle.Draft{
		UserID:        req.UserID,
		Items:         items,
		Subtotal:      req.Subtotal,
		DeliveryFee:   req.DeliveryFee,
		TotalAmount:   req.TotalAmount,
		PaymentMethod: orders.PaymentMethod(req.PaymentMethod),
		Address: orders.Address{
			Name:       a.Name,
			Phone:      a.Phone,
			Street:     a.Street,
			City:       a.City,
			State:      a.State,
			PostalCode: a.PostalCode,
			Landmark:   a.Landmark,
		},
		Store: orders.StoreDetails{
			SellerID:         req.StoreDetails.SellerID,
			SellerCollection: req.StoreDetails.SellerCollection,
		},
		CheckoutKey: key,
	}
}

func (h *ordersHandler) createPaymentIntent(c *gin.Context) {
	intent, order, err := h.engine.CreatePaymentIntent(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orderId": order.OrderID, "payment": intent})
}

func (h *ordersHandler) verifyPayment(c *gin.Context) {
	var req validation.VerifyPaymentRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	order, err := h.engine.VerifyPayment(c.Request.Context(), lifecycle.PaymentCallback{
		OrderID:        req.OrderID,
		GatewayOrderID: req.RazorpayOrderID,
		PaymentID:      req.RazorpayPaymentID,
		Signature:      req.RazorpaySignature,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": order.OrderID, "paymentStatus": order.PaymentStatus})
}

// getStatus needs the caller's id: ?userId= for the customer view or
// ?sellerId= for the seller view, which never carries the delivery code.
func (h *ordersHandler) getStatus(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		order *orders.Order
		err   error
	)
	if sellerID := c.Query("sellerId"); sellerID != "" && c.Query("userId") == "" {
		order, err = h.engine.OrderForSeller(ctx, c.Param("orderId"), sellerID)
	} else {
		order, err = h.engine.OrderForUser(ctx, c.Param("orderId"), c.Query("userId"))
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *ordersHandler) listForUser(c *gin.Context) {
	buckets, err := h.engine.ListForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (h *ordersHandler) cancelOrder(c *gin.Context) {
	var req validation.CancelOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	order, err := h.engine.CancelOrder(c.Request.Context(), c.Param("orderId"), req.UserID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *ordersHandler) listNotifications(c *gin.Context) {
	list, err := h.notifications.ListForRecipient(c.Request.Context(), c.Param("recipientId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}
