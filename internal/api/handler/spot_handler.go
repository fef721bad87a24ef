package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/service"
)

type SpotHandler struct {
	parkingService *service.ParkingService
}

func NewSpotHandler(ps *service.ParkingService) *SpotHandler {
	return &SpotHandler{parkingService: ps}
}

// GET /api/v1/spots
func (h *SpotHandler) GetSpots(c *gin.Context) {
	c.JSON(http.StatusOK, h.parkingService.Spots())
}

// GET /api/v1/spots/available?type=
func (h *SpotHandler) GetAvailableSpots(c *gin.Context) {
	var filter *domain.SpotType
	if raw := c.Query("type"); raw != "" {
		t, err := domain.ParseSpotType(raw)
		if err != nil {
			respondError(c, err, "invalid type filter")
			return
		}
		filter = &t
	}
	ids := h.parkingService.AvailableSpots(filter)
	c.JSON(http.StatusOK, gin.H{"spot_ids": ids, "count": len(ids)})
}

// GET /api/v1/spots/:id
func (h *SpotHandler) GetSpotByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid spot id"})
		return
	}
	spot, err := h.parkingService.Spot(id)
	if err != nil {
		respondError(c, err, "could not load spot")
		return
	}
	c.JSON(http.StatusOK, spot)
}
