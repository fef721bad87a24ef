package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/service"
)

type ParkingHandler struct {
	parkingService *service.ParkingService
}

func NewParkingHandler(ps *service.ParkingService) *ParkingHandler {
	return &ParkingHandler{parkingService: ps}
}

// POST /api/v1/vehicles/entry
func (h *ParkingHandler) VehicleEntry(c *gin.Context) {
	var dto domain.VehicleEntryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
		return
	}

	result, err := h.parkingService.Enter(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err, "could not park vehicle")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// POST /api/v1/vehicles/exit
func (h *ParkingHandler) VehicleExit(c *gin.Context) {
	var dto domain.VehicleExitDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
		return
	}

	var receipt *domain.ExitReceipt
	var err error
	switch {
	case dto.SpotID != nil:
		receipt, err = h.parkingService.Exit(c.Request.Context(), *dto.SpotID)
	case dto.LicensePlate != "":
		receipt, err = h.parkingService.ExitByPlate(c.Request.Context(), dto.LicensePlate)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "spot_id or license_plate is required"})
		return
	}
	if err != nil {
		respondError(c, err, "could not release vehicle")
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// GET /api/v1/vehicles
func (h *ParkingHandler) CurrentVehicles(c *gin.Context) {
	c.JSON(http.StatusOK, h.parkingService.CurrentVehicles())
}
