package handlers

import (
	"log/slog"
	"net/http"

	"github.com/amaral/loja-store/internal/store"
	"github.com/amaral/loja-store/pkg/logkey"
	"github.com/gin-gonic/gin"
)

func (h *Handler) Signup(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Name     string `json:"name" binding:"required"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := store.CreateUser(c.Request.Context(), h.db, req.Email, req.Name, req.Password)
	if err != nil {
		slog.Error("signup failed",
			slog.String(logkey.TraceID, getTraceID(c)),
			slog.String(logkey.Error, err.Error()))
		respondError(c, err)
		return
	}

	token, err := h.keys.NewToken(user.ID)
	if err != nil {
		slog.Error("token issue failed",
			slog.String(logkey.TraceID, getTraceID(c)),
			slog.String(logkey.Error, err.Error()))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := store.Authenticate(c.Request.Context(), h.db, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.keys.NewToken(user.ID)
	if err != nil {
		slog.Error("token issue failed",
			slog.String(logkey.TraceID, getTraceID(c)),
			slog.String(logkey.Error, err.Error()))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := store.GetUser(c.Request.Context(), h.db, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := store.UpdateUserName(c.Request.Context(), h.db, userID, req.Name); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
}
