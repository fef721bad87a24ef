package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smart_parking_lot/internal/service"
)

type LotHandler struct {
	parkingService *service.ParkingService
}

func NewLotHandler(ps *service.ParkingService) *LotHandler {
	return &LotHandler{parkingService: ps}
}

// GET /api/v1/lot/status
func (h *LotHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"lot_name": h.parkingService.LotName(),
		"status":   h.parkingService.Status(),
	})
}

// POST /api/v1/lot/reset
func (h *LotHandler) ResetLot(c *gin.Context) {
	if err := h.parkingService.ResetLot(c.Request.Context()); err != nil {
		respondError(c, err, "could not reset lot")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "lot reset", "status": h.parkingService.Status()})
}
