package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(as *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// Register creates an operator account. Admins are created with parkingctl.
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var dto domain.RegisterUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err, "could not register user")
		return
	}
	logging.Infof(c.Request.Context(), "registered %s account %q", user.Role, user.Username)
	c.JSON(http.StatusCreated, user)
}

// Login exchanges credentials for a bearer token.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var dto domain.LoginUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "details": err.Error()})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), dto)
	if err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			logging.Warnf(c.Request.Context(), "failed login for %q from %s", dto.Username, c.ClientIP())
		}
		respondError(c, err, "login failed")
		return
	}
	c.JSON(http.StatusOK, resp)
}
