package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type scanRequest struct {
	Data string `json:"data" binding:"required"`
}

func (h *Handler) scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid QR code format")
		return
	}
	res, err := h.Checkins.Scan(c.Request.Context(), claims(c).Email, req.Data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
