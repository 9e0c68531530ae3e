package handlers

import (
	"net/http"

	"github.com/amaral/loja-store/internal/store"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ListAddresses(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	addresses, err := store.ListAddresses(c.Request.Context(), h.db, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

func (h *Handler) CreateAddress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Street       string `json:"street" binding:"required"`
		Number       string `json:"number" binding:"required"`
		Complement   string `json:"complement"`
		Neighborhood string `json:"neighborhood" binding:"required"`
		City         string `json:"city" binding:"required"`
		State        string `json:"state" binding:"required"`
		PostalCode   string `json:"postal_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address, err := store.CreateAddress(c.Request.Context(), h.db, userID, store.AddressInput{
		Street:       req.Street,
		Number:       req.Number,
		Complement:   req.Complement,
		Neighborhood: req.Neighborhood,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, address)
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := store.DeleteAddress(c.Request.Context(), h.db, userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
}

func (h *Handler) SetDefaultAddress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := store.SetDefaultAddress(c.Request.Context(), h.db, userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "default address set"})
}
