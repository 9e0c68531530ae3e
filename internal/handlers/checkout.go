package handlers

import (
	"log/slog"
	"net/http"

	"github.com/amaral/loja-store/internal/checkout"
	"github.com/amaral/loja-store/internal/models"
	"github.com/amaral/loja-store/internal/store"
	"github.com/amaral/loja-store/pkg/logkey"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Checkout places an order from the current cart. The client generates one
// idempotency key per confirm attempt; resubmitting the same key returns the
// order created the first time instead of charging twice.
func (h *Handler) Checkout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		AddressID      string `json:"address_id"`
		PaymentMethod  string `json:"payment_method"`
		IdempotencyKey string `json:"idempotency_key" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodPix
	}

	// No address chosen: fall back to the default. A user without any saved
	// address cannot check out at all.
	if req.AddressID == "" {
		addresses, err := store.ListAddresses(c.Request.Context(), h.db, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(addresses) == 0 {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
				gin.H{"error": "no saved address", "reason": "no_address"})
			return
		}
		req.AddressID = addresses[0].ID
	}

	key, err := uuid.Parse(req.IdempotencyKey)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid idempotency key"})
		return
	}

	order, err := checkout.Confirm(c.Request.Context(), h.db, checkout.ConfirmRequest{
		UserID:         userID,
		AddressID:      req.AddressID,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: key,
	})
	if err != nil {
		slog.Error("checkout failed",
			slog.String(logkey.TraceID, getTraceID(c)),
			slog.String(logkey.UserID, userID),
			slog.String(logkey.Error, err.Error()))
		respondError(c, err)
		return
	}

	slog.Info("order placed",
		slog.String(logkey.TraceID, getTraceID(c)),
		slog.String(logkey.UserID, userID),
		slog.String(logkey.OrderID, order.ID))

	c.JSON(http.StatusCreated, order)
}
