package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/validation"
)

// Seller responses never carry the delivery code.

func (h *ordersHandler) listPendingForSeller(c *gin.Context) {
	list, err := h.engine.ListPendingForSeller(c.Request.Context(), c.Param("sellerId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *ordersHandler) acceptOrder(c *gin.Context) {
	var req validation.SellerActionRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	h.sellerResult(c)(h.engine.AcceptOrder(c.Request.Context(), c.Param("orderId"), req.SellerID))
}

func (h *ordersHandler) rejectOrder(c *gin.Context) {
	var req validation.SellerActionRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	h.sellerResult(c)(h.engine.RejectOrder(c.Request.Context(), c.Param("orderId"), req.SellerID, req.Reason))
}

func (h *ordersHandler) markOutForDelivery(c *gin.Context) {
	var req validation.SellerActionRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	h.sellerResult(c)(h.engine.MarkOutForDelivery(c.Request.Context(), c.Param("orderId"), req.SellerID))
}

func (h *ordersHandler) markDelivered(c *gin.Context) {
	var req validation.DeliverRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	h.sellerResult(c)(h.engine.MarkDelivered(c.Request.Context(), c.Param("orderId"), req.SellerID, req.OTP))
}

func (h *ordersHandler) sellerResult(c *gin.Context) func(*orders.Order, error) {
	return func(o *orders.Order, err error) {
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o.ForSeller())
	}
}
