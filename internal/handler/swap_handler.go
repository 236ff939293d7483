package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"swapstyle-service/internal/middleware"
	"swapstyle-service/internal/service"
)

// SwapHandler exposes the swap-request lifecycle.
type SwapHandler struct {
	Sessions *service.Sessions
}

func (h *SwapHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/swaps", h.RequestSwap)
	rg.POST("/swaps/:id/accept", h.Accept)
	rg.POST("/swaps/:id/reject", h.Reject)

	rg.GET("/me/swaps/received", h.Received)
	rg.GET("/me/swaps/sent", h.Sent)
	rg.GET("/me/swaps/history", h.History)
	rg.GET("/me/notifications", h.Notifications)
}

type requestSwapDTO struct {
	FromItemID string `json:"fromItemId" binding:"required"`
	ToUserID   string `json:"toUserId" binding:"required"`
	ToItemID   string `json:"toItemId" binding:"required"`
}

// POST /api/swaps
func (h *SwapHandler) RequestSwap(c *gin.Context) {
	var req requestSwapDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uid := middleware.UserID(c)
	co := h.Sessions.For(uid)
	created, err := co.RequestSwap(c.Request.Context(), uid, req.FromItemID, req.ToUserID, req.ToItemID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// POST /api/swaps/:id/accept
func (h *SwapHandler) Accept(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	if err := co.AcceptSwap(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// POST /api/swaps/:id/reject
func (h *SwapHandler) Reject(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	if err := co.RejectSwap(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// GET /api/me/swaps/received
func (h *SwapHandler) Received(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	reqs, err := co.ReceivedRequests(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// GET /api/me/swaps/sent
func (h *SwapHandler) Sent(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	reqs, err := co.SentRequests(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// GET /api/me/swaps/history
func (h *SwapHandler) History(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	records, err := co.SwapHistory(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GET /api/me/notifications
func (h *SwapHandler) Notifications(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	notes, err := co.Notifications(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}
