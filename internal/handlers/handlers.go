package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/amaral/loja-store/internal/auth"
	"github.com/amaral/loja-store/internal/database"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	db   *sql.DB
	keys *auth.Keys
}

func NewHandler(db *sql.DB, keys *auth.Keys) *Handler {
	return &Handler{db: db, keys: keys}
}

// API wires the full route table. Routes under the authenticated group need
// a valid session token; admin routes additionally check the user's admin
// flag against the database.
func API(db *sql.DB, keys *auth.Keys) *gin.Engine {
	r := gin.New()
	h := NewHandler(db, keys)

	r.Use(TraceID(), RequestLogger(), gin.Recovery())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/signup", h.Signup)
	r.POST("/login", h.Login)
	r.GET("/products", h.ListProducts)
	r.GET("/products/:id", h.GetProduct)

	authed := r.Group("/")
	authed.Use(h.Authenticate())
	{
		authed.GET("/me", h.GetProfile)
		authed.PATCH("/me", h.UpdateProfile)

		authed.GET("/cart", h.GetCart)
		authed.POST("/cart/items", h.AddToCart)
		authed.PATCH("/cart/items/:id", h.UpdateCartItem)
		authed.DELETE("/cart/items/:id", h.RemoveCartItem)
		authed.DELETE("/cart", h.ClearCart)

		authed.GET("/addresses", h.ListAddresses)
		authed.POST("/addresses", h.CreateAddress)
		authed.DELETE("/addresses/:id", h.DeleteAddress)
		authed.PUT("/addresses/:id/default", h.SetDefaultAddress)

		authed.POST("/checkout", h.Checkout)
		authed.GET("/orders", h.ListOrders)
		authed.GET("/orders/:id", h.GetOrder)
	}

	admin := r.Group("/admin")
	admin.Use(h.Authenticate(), h.RequireAdmin())
	{
		admin.POST("/products", h.AdminCreateProduct)
		admin.PUT("/products/:id", h.AdminUpdateProduct)
		admin.DELETE("/products/:id", h.AdminDeleteProduct)
		admin.POST("/orders/claim", h.AdminClaimOrder)
		admin.PATCH("/orders/:id/status", h.AdminUpdateOrderStatus)
	}

	return r
}

// respondError maps domain errors onto HTTP statuses. Precondition failures
// carry a machine-readable reason the client uses to redirect (address page,
// cart page); stock conflicts get a distinct message instead of a silent
// clamp.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrEmptyCart):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
			gin.H{"error": "cart is empty", "reason": "empty_cart"})
	case errors.Is(err, database.ErrInsufficientStock):
		c.AbortWithStatusJSON(http.StatusConflict,
			gin.H{"error": "item no longer available in requested quantity"})
	case errors.Is(err, database.ErrInvalidQuantity),
		errors.Is(err, database.ErrInvalidPaymentMethod):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrEmailTaken),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrIdempotencyConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrAddressNotFound),
		errors.Is(err, database.ErrCartItemNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			gin.H{"error": "internal error"})
	}
}
