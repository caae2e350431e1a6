package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slotbook/backend/internal/domain"
)

type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

type dataBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, dataBody{Success: true, Data: data})
}

func abortWith(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Success: false, Code: code, Error: msg})
}

type errorMapping struct {
	err    error
	status int
	code   string
	msg    string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidToken, http.StatusBadRequest, "INVALID_TOKEN", "Slot id is not a valid slot token"},
	{domain.ErrMalformedDate, http.StatusBadRequest, "INVALID_DATE", "Date must be YYYY-MM-DD"},
	{domain.ErrMalformedTime, http.StatusBadRequest, "INVALID_TIME", "Time must be HH:MM"},
	{domain.ErrServiceNotFound, http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found"},
	{domain.ErrSlotNotOffered, http.StatusNotFound, "SLOT_NOT_OFFERED", "Slot not available at given time"},
	{domain.ErrSlotAlreadyBooked, http.StatusConflict, "SLOT_ALREADY_BOOKED", "Slot already booked"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Service does not belong to provider"},
	{domain.ErrOverlappingAvailability, http.StatusConflict, "OVERLAPPING_AVAILABILITY", "Overlapping availability"},
	{domain.ErrDurationLocked, http.StatusConflict, "DURATION_LOCKED", "Duration cannot change once the service has bookings"},
	{domain.ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND", "Appointment not found"},
	{domain.ErrBookingNotActive, http.StatusConflict, "BOOKING_NOT_ACTIVE", "Appointment is already cancelled"},
	{domain.ErrEmailTaken, http.StatusConflict, "EMAIL_TAKEN", "Email already exists"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"},
	{domain.ErrIdempotencyConflict, http.StatusConflict, "IDEMPOTENCY_CONFLICT", "This request key was already used for a different slot"},
	{domain.ErrSlotOverflow, http.StatusBadRequest, "SLOT_OVERFLOW", "Slot would run past midnight"},
	{domain.ErrPersistence, http.StatusServiceUnavailable, "PERSISTENCE_FAILURE", "Storage temporarily unavailable"},
}

// classify maps an error from the service layer to an HTTP status, a stable
// reason code and a client-safe message.
func classify(err error) (int, string, string) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, "VALIDATION_ERROR", vErr.Error()
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.msg
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "TIMEOUT", "Request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return 499, "CANCELLED", "Request cancelled"
	}
	return http.StatusInternalServerError, "INTERNAL", "Internal server error"
}

func (h *handlers) fail(c *gin.Context, op string, err error) {
	status, code, msg := classify(err)
	log := h.log.With(
		zap.String("op", op),
		zap.String("code", code),
		zap.String("request_id", requestID(c)),
	)
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("request failed", zap.Error(err))
	case status == http.StatusBadRequest:
		log.Warn("invalid request", zap.Error(err))
	default:
		log.Info("request rejected", zap.Error(err))
	}
	abortWith(c, status, code, msg)
}

func (h *handlers) badRequest(c *gin.Context, op string, err error) {
	h.log.Warn("invalid request",
		zap.String("op", op),
		zap.String("request_id", requestID(c)),
		zap.Error(err),
	)
	abortWith(c, http.StatusBadRequest, "VALIDATION_ERROR", describeBindError(err))
}
