package domain

import "errors"

var (
	ErrMalformedTime  = errors.New("malformed time")
	ErrSlotOverflow   = errors.New("slot overflows the day")
	ErrMalformedDate  = errors.New("malformed date")
	ErrInvalidToken   = errors.New("invalid slot token")
	ErrPersistence    = errors.New("persistence failure")
	ErrSlotNotOffered = errors.New("slot not offered")

	ErrServiceNotFound   = errors.New("service not found")
	ErrSlotAlreadyBooked = errors.New("slot already booked")

	ErrForbidden               = errors.New("forbidden")
	ErrOverlappingAvailability = errors.New("overlapping availability")
	ErrDurationLocked          = errors.New("duration cannot change once bookings exist")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrBookingNotActive        = errors.New("booking is not active")
	ErrEmailTaken              = errors.New("email already exists")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrIdempotencyConflict     = errors.New("idempotency key conflict")
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}
