package handler

import (
	"errors"
	"net/http"

	"github.com/eptportal/ept-backend/internal/clock"
	"github.com/eptportal/ept-backend/internal/middleware"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/eptportal/ept-backend/internal/response"
	"github.com/eptportal/ept-backend/internal/runner"
	"github.com/eptportal/ept-backend/internal/service"
	"github.com/eptportal/ept-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StudentPortalHandler serves the authenticated student endpoints.
type StudentPortalHandler struct {
	registration *service.RegistrationService
	content      *service.ContentService
	submissions  *service.SubmissionService
	results      *service.ResultService
	log          zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	registration *service.RegistrationService,
	content *service.ContentService,
	submissions *service.SubmissionService,
	results *service.ResultService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		registration: registration,
		content:      content,
		submissions:  submissions,
		results:      results,
		log:          log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// GetAvailability godoc
// GET /api/v1/student/availability
// Tells whether the student's booked test can be taken now.
func (h *StudentPortalHandler) GetAvailability(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	status, err := h.registration.Availability(c.Request.Context(), claims.EptID)
	if err != nil {
		if errors.Is(err, service.ErrNoBooking) {
			response.Fail(c, http.StatusNotFound, response.ErrNoBooking)
			return
		}
		h.log.Error().Err(err).Str("ept_id", claims.EptID).Msg("Availability lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// GetTestDelivery godoc
// GET /api/v1/student/test-delivery?section=reading
// Returns the section content for the student's booked date, answer keys
// removed.
func (h *StudentPortalHandler) GetTestDelivery(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	section := model.SectionType(c.Query("section"))
	if !section.Valid() {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidSection)
		return
	}

	status, ok := h.requireAvailable(c, claims.EptID)
	if !ok {
		return
	}

	view, err := h.content.Deliver(c.Request.Context(), runner.ContentRequest{
		Date:      status.SelectedDate,
		Section:   section,
		StudentID: claims.EptID,
	})
	if err != nil {
		h.failContent(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// SubmitTest godoc
// POST /api/v1/student/submit-test
// Records a section submission; a repeat yields 409 ALREADY_SUBMITTED.
func (h *StudentPortalHandler) SubmitTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmissionPayload
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	// A student can only submit as themselves.
	req.StudentID = claims.EptID

	res, err := h.submissions.Submit(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		case errors.Is(err, model.ErrTestNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
		case errors.Is(err, service.ErrInvalidSubmission):
			response.FailWithMessage(c, http.StatusBadRequest, response.ErrInvalidSubmission, err.Error())
		default:
			h.log.Error().Err(err).Str("ept_id", claims.EptID).Str("test_id", req.TestID).Msg("Submission failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// GetTestResults godoc
// GET /api/v1/student/test-results
func (h *StudentPortalHandler) GetTestResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	results, err := h.results.Results(c.Request.Context(), claims.EptID)
	if err != nil {
		h.log.Error().Err(err).Str("ept_id", claims.EptID).Msg("Results lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// requireAvailable writes the error response and returns false unless the
// student's booked test is open right now.
func (h *StudentPortalHandler) requireAvailable(c *gin.Context, eptID string) (*service.AvailabilityStatus, bool) {
	status, err := h.registration.Availability(c.Request.Context(), eptID)
	if err != nil {
		if errors.Is(err, service.ErrNoBooking) {
			response.Fail(c, http.StatusNotFound, response.ErrNoBooking)
			return nil, false
		}
		h.log.Error().Err(err).Str("ept_id", eptID).Msg("Availability lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return nil, false
	}
	if status.Availability != clock.Available {
		response.Fail(c, http.StatusForbidden, response.ErrTestNotAvailable)
		return nil, false
	}
	return status, true
}

func (h *StudentPortalHandler) failContent(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, model.ErrTestNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrTestNotFound)
	default:
		h.log.Error().Err(err).Msg("Content delivery failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
