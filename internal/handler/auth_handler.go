package handler

import (
	"errors"
	"net/http"

	"github.com/eptportal/ept-backend/internal/middleware"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/eptportal/ept-backend/internal/response"
	"github.com/eptportal/ept-backend/internal/service"
	"github.com/eptportal/ept-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// StudentLogin godoc
// POST /api/v1/auth/login
// Exchanges an EPT id for a token. Logging in again ends the previous session.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req model.StudentLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.EptID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownStudent) {
			response.Fail(c, http.StatusUnauthorized, response.ErrUnknownEptID)
			return
		}
		h.log.Error().Err(err).Str("ept_id", req.EptID).Msg("Login failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// GetStudentProfile godoc
// GET /api/v1/auth/me
// Returns the identity carried by the caller's token.
func (h *AuthHandler) GetStudentProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"student": gin.H{
			"id":     claims.StudentID,
			"ept_id": claims.EptID,
			"name":   claims.Name,
		},
	})
}

// StudentLogout godoc
// POST /api/v1/auth/logout
func (h *AuthHandler) StudentLogout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.EptID); err != nil {
		h.log.Error().Err(err).Str("ept_id", claims.EptID).Msg("Logout failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
