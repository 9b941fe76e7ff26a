package handler

import (
	"errors"
	"net/http"

	"github.com/eptportal/ept-backend/internal/model"
	"github.com/eptportal/ept-backend/internal/repository"
	"github.com/eptportal/ept-backend/internal/response"
	"github.com/eptportal/ept-backend/internal/service"
	"github.com/eptportal/ept-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RegistrationHandler serves the public booking endpoints.
type RegistrationHandler struct {
	registration *service.RegistrationService
	log          zerolog.Logger
}

// NewRegistrationHandler creates a new RegistrationHandler.
func NewRegistrationHandler(registration *service.RegistrationService, log zerolog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		registration: registration,
		log:          log.With().Str("component", "registration_handler").Logger(),
	}
}

// ListTestDates godoc
// GET /api/v1/public/test-dates
// Returns the regular and refugee test dates with seats taken.
func (h *RegistrationHandler) ListTestDates(c *gin.Context) {
	dates, err := h.registration.Dates(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("List test dates failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, dates)
}

// CheckRegistration godoc
// POST /api/v1/registration/check
func (h *RegistrationHandler) CheckRegistration(c *gin.Context) {
	var req model.CheckRegistrationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	status, err := h.registration.Check(c.Request.Context(), req.EptID)
	if err != nil {
		h.log.Error().Err(err).Str("ept_id", req.EptID).Msg("Registration check failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// CreateBooking godoc
// POST /api/v1/bookings
func (h *RegistrationHandler) CreateBooking(c *gin.Context) {
	var req model.CreateBookingRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	booking, err := h.registration.Book(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateBooking):
			response.Fail(c, http.StatusConflict, response.ErrDuplicateBooking)
		case errors.Is(err, repository.ErrDateFull):
			response.Fail(c, http.StatusConflict, response.ErrDateFull)
		case errors.Is(err, service.ErrUnknownTestDate):
			response.Fail(c, http.StatusBadRequest, response.ErrUnknownTestDate)
		case errors.Is(err, service.ErrRefugeeDateMismatch):
			response.Fail(c, http.StatusBadRequest, response.ErrRefugeeDate)
		case errors.Is(err, service.ErrAttendanceRequired):
			response.Fail(c, http.StatusBadRequest, response.ErrAttendanceRequired)
		default:
			h.log.Error().Err(err).Str("ept_id", req.EptID).Msg("Create booking failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"booking": booking})
}
