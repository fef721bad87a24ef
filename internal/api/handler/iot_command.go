package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/service"
)

type IoTCommandHandler struct {
	gateService *service.GateService
}

func NewIoTCommandHandler(gs *service.GateService) *IoTCommandHandler {
	return &IoTCommandHandler{gateService: gs}
}

// POST /api/v1/gates/:gate_id/command
func (h *IoTCommandHandler) ControlBarrier(c *gin.Context) {
	var req domain.BarrierCommandDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
		return
	}

	cmd, err := h.gateService.SendBarrierCommand(c.Request.Context(), c.Param("gate_id"), req.Command)
	if err != nil {
		respondError(c, err, "could not send barrier command")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "barrier command sent", "request_id": cmd.RequestID, "gate_id": cmd.GateID})
}
