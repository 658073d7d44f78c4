package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/lifecycle"
)

// errorStatus maps an engine error kind to its HTTP status and code. The
// first match wins.
var errorStatus = []struct {
	kind   error
	status int
	code   string
}{
	{lifecycle.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{lifecycle.ErrNotFound, http.StatusNotFound, "not_found"},
	{lifecycle.ErrForbidden, http.StatusForbidden, "forbidden"},
	{lifecycle.ErrDeadlinePassed, http.StatusConflict, "seller_deadline_passed"},
	{lifecycle.ErrCancellationWindowExpired, http.StatusConflict, "cancellation_window_expired"},
	{lifecycle.ErrStateConflict, http.StatusConflict, "state_conflict"},
	{lifecycle.ErrOTPMismatch, http.StatusUnprocessableEntity, "otp_mismatch"},
	{lifecycle.ErrPaymentVerification, http.StatusPaymentRequired, "payment_verification_failed"},
}

func (h *ordersHandler) writeError(c *gin.Context, err error) {
	var lerr *lifecycle.Error
	if errors.As(err, &lerr) {
		for _, m := range errorStatus {
			if !errors.Is(lerr.Kind, m.kind) {
				continue
			}
			body := gin.H{"error": m.code, "message": lerr.Message}
			if len(lerr.Fields) > 0 {
				body["fields"] = lerr.Fields
			}
			if lerr.PaymentStatus != "" {
				body["paymentStatus"] = lerr.PaymentStatus
			}
			c.AbortWithStatusJSON(m.status, body)
			return
		}
	}

	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
