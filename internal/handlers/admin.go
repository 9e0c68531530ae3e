package handlers

import (
	"log/slog"
	"net/http"

	"github.com/amaral/loja-store/internal/store"
	"github.com/amaral/loja-store/pkg/logkey"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type productRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"image_url"`
}

func (r productRequest) toInput() store.ProductInput {
	return store.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       decimal.NewFromFloat(r.Price),
		Stock:       r.Stock,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
	}
}

func (h *Handler) AdminCreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := store.CreateProduct(c.Request.Context(), h.db, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) AdminUpdateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := store.UpdateProduct(c.Request.Context(), h.db, c.Param("id"), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) AdminDeleteProduct(c *gin.Context) {
	if err := store.DeleteProduct(c.Request.Context(), h.db, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}

// AdminClaimOrder hands the caller the oldest pending order, marked as
// processing. Returns 404 when the queue is empty.
func (h *Handler) AdminClaimOrder(c *gin.Context) {
	order, err := store.ClaimNextPendingOrder(c.Request.Context(), h.db)
	if err != nil {
		respondError(c, err)
		return
	}

	slog.Info("order claimed",
		slog.String(logkey.TraceID, getTraceID(c)),
		slog.String(logkey.OrderID, order.ID))

	c.JSON(http.StatusOK, order)
}

func (h *Handler) AdminUpdateOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := store.UpdateOrderStatus(c.Request.Context(), h.db, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
