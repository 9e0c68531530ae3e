package handlers

import (
	"log/slog"
	"net/http"

	"github.com/amaral/loja-store/internal/store"
	"github.com/amaral/loja-store/pkg/logkey"
	"github.com/gin-gonic/gin"
)

func (h *Handler) GetCart(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cartID, err := store.GetOrCreateCart(c.Request.Context(), h.db, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	items, err := store.GetCartItems(c.Request.Context(), h.db, cartID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart_id": cartID,
		"items":   items,
		"total":   store.CartTotal(items),
	})
}

func (h *Handler) AddToCart(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		ProductID string `json:"product_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := store.AddItem(c.Request.Context(), h.db, userID, req.ProductID)
	if err != nil {
		slog.Error("add to cart failed",
			slog.String(logkey.TraceID, getTraceID(c)),
			slog.String(logkey.UserID, userID),
			slog.String(logkey.ProductID, req.ProductID),
			slog.String(logkey.Error, err.Error()))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := store.SetItemQuantity(c.Request.Context(), h.db, userID, c.Param("id"), req.Quantity); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "quantity updated"})
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := store.RemoveItem(c.Request.Context(), h.db, userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "item removed"})
}

func (h *Handler) ClearCart(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cartID, err := store.GetOrCreateCart(c.Request.Context(), h.db, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := store.ClearCart(c.Request.Context(), h.db, cartID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
}
