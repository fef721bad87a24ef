package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/repository"
	"smart_parking_lot/internal/service"
)

// statusFor maps service and repository errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrInvalidSpotType),
		errors.Is(err, domain.ErrInvalidHistoryStatus),
		errors.Is(err, service.ErrInvalidVehicle),
		errors.Is(err, service.ErrInvalidGateCommand),
		errors.Is(err, service.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrNoActiveSession):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPlateAlreadyParked),
		errors.Is(err, service.ErrSpotAlreadyOccupied),
		errors.Is(err, service.ErrSpotAlreadyFree),
		errors.Is(err, service.ErrLotFull),
		errors.Is(err, service.ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrDetectionDisabled),
		errors.Is(err, service.ErrGateControlDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes {"error", "details"}. Client errors use the error text
// as the message; server errors use msg and log the cause.
func respondError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Errorf(c.Request.Context(), "%s %s: %s: %v", c.Request.Method, c.FullPath(), msg, err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "details": msg})
}
