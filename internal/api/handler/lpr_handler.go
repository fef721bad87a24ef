package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/service"
)

type LPRHandler struct {
	lprService     *service.LPRService
	parkingService *service.ParkingService
}

func NewLPRHandler(lprService *service.LPRService, parkingService *service.ParkingService) *LPRHandler {
	return &LPRHandler{lprService: lprService, parkingService: parkingService}
}

func decodeImage(raw string) ([]byte, error) {
	image, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, errors.New("image is empty")
	}
	return image, nil
}

// recognize never fails the request: detector problems come back as an
// error message so the operator can type the plate instead.
func (h *LPRHandler) recognize(c *gin.Context, image []byte, imageRef string) domain.LPRResponseDTO {
	candidate, ok, err := h.lprService.Recognize(c.Request.Context(), image, domain.SourceUpload, imageRef)
	switch {
	case err != nil:
		logging.Warnf(c.Request.Context(), "LPRHandler: recognition failed: %v", err)
		return domain.LPRResponseDTO{ErrorMessage: err.Error()}
	case !ok:
		return domain.LPRResponseDTO{ErrorMessage: "no license plate recognized"}
	}
	return domain.LPRResponseDTO{DetectedPlate: candidate.Plate, Confidence: candidate.Confidence}
}

// POST /api/v1/lpr/recognize
func (h *LPRHandler) Recognize(c *gin.Context) {
	var req domain.LPRRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
		return
	}
	image, err := decodeImage(req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image data", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.recognize(c, image, req.ImageRef))
}

// POST /api/v1/lpr/entry
func (h *LPRHandler) EntryFromImage(c *gin.Context) {
	var req domain.LPREntryDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
		return
	}

	resp := domain.LPREntryResponseDTO{}
	if req.ImageBase64 != "" {
		image, err := decodeImage(req.ImageBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image data", "details": err.Error()})
			return
		}
		resp.Detection = h.recognize(c, image, "")
	}

	plate := resp.Detection.DetectedPlate
	if plate == "" {
		plate = req.ManualPlate
		resp.ManualEntry = true
	}
	if domain.NormalizePlate(plate) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "no plate detected and no manual plate given",
			"detection": resp.Detection,
		})
		return
	}

	result, err := h.parkingService.Enter(c.Request.Context(), domain.VehicleEntryDTO{
		LicensePlate:   plate,
		PreferredType:  req.PreferredType,
		HandicapPermit: req.HandicapPermit,
		Notes:          req.Notes,
	})
	if err != nil {
		respondError(c, err, "could not park vehicle")
		return
	}
	resp.Entry = result
	c.JSON(http.StatusCreated, resp)
}

// GET /api/v1/detections?limit=
func (h *LPRHandler) RecentDetections(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	records, err := h.lprService.RecentDetections(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err, "could not load detections")
		return
	}
	c.JSON(http.StatusOK, records)
}
