package store

import (
	"context"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
)

type BookingRepository interface {
	// CreateBooking inserts b unless an active booking already holds its slot
	// token. durationMinutes is the service duration the slot was derived with;
	// a mismatch with the stored service means the slot is stale. created is
	// false when an earlier booking with the same id was returned instead.
	CreateBooking(ctx context.Context, b domain.Booking, durationMinutes int) (out domain.Booking, created bool, err error)
	ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (domain.Booking, error)
	ListProviderBookings(ctx context.Context, providerID uuid.UUID, date string) ([]domain.Booking, error)
}
