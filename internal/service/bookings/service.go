package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/events"
	"slotbook/backend/internal/service/catalog"
	"slotbook/backend/internal/store"
)

const (
	maxIdempotencyKeyLength = 256
	publishTimeout          = 5 * time.Second
)

type Service struct {
	catalog   store.CatalogRepository
	bookings  store.BookingRepository
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewService(catalogRepo store.CatalogRepository, bookingRepo store.BookingRepository, publisher events.Publisher, log *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		catalog:   catalogRepo,
		bookings:  bookingRepo,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type AssignInput struct {
	UserID         uuid.UUID
	SlotToken      string
	IdempotencyKey string
}

// Assign books the slot named by the token for the user. The slot must be one
// the service currently offers; the storage layer decides the single winner
// when several users race for the same token.
func (s *Service) Assign(ctx context.Context, in AssignInput) (domain.Booking, error) {
	if in.UserID == uuid.Nil {
		return domain.Booking{}, domain.NewValidationError("user_id is required")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLength {
		return domain.Booking{}, domain.NewValidationError("idempotency key too long")
	}

	ref, err := domain.DecodeSlotToken(in.SlotToken)
	if err != nil {
		return domain.Booking{}, err
	}

	svc, cat, err := catalog.LoadSlots(ctx, s.catalog, ref.ServiceID, ref.Date)
	if err != nil {
		return domain.Booking{}, err
	}

	token := ref.Token()
	slot, ok := cat.Find(token)
	if !ok {
		return domain.Booking{}, domain.ErrSlotNotOffered
	}

	b := domain.Booking{
		UserID:    in.UserID,
		ServiceID: slot.ServiceID,
		Date:      slot.Date,
		SlotToken: token,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Status:    domain.BookingStatusBooked,
	}

	if key != "" {
		b.ID = IdempotentBookingID(in.UserID, key)
	}

	out, created, err := s.bookings.CreateBooking(ctx, b, svc.DurationMinutes)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrSlotTaken):
			return domain.Booking{}, domain.ErrSlotAlreadyBooked
		case errors.Is(err, store.ErrConflict):
			// duration changed between derivation and insert
			return domain.Booking{}, domain.ErrSlotNotOffered
		case errors.Is(err, store.ErrNotFound):
			return domain.Booking{}, domain.ErrServiceNotFound
		case errors.Is(err, store.ErrIdempotencyConflict):
			return domain.Booking{}, domain.ErrIdempotencyConflict
		}
		return domain.Booking{}, translate(err)
	}

	if created {
		s.publish(ctx, events.BookingCreated, out)
	}
	return out, nil
}

// IdempotentBookingID maps a client idempotency key to a stable booking id,
// scoped to the user so keys never collide across accounts.
func IdempotentBookingID(userID uuid.UUID, key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("slotbook:assign:"+userID.String()+":"+key))
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user_id is required")
	}
	rows, err := s.bookings.ListBookingsByUser(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (s *Service) Cancel(ctx context.Context, userID, bookingID uuid.UUID) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, domain.NewValidationError("booking_id is required")
	}
	out, err := s.bookings.CancelBooking(ctx, userID, bookingID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Booking{}, domain.ErrBookingNotFound
		case errors.Is(err, store.ErrConflict):
			return domain.Booking{}, domain.ErrBookingNotActive
		}
		return domain.Booking{}, translate(err)
	}

	s.publish(ctx, events.BookingCancelled, out)
	return out, nil
}

type ScheduleEntry struct {
	Service  domain.Service
	Bookings []domain.Booking
}

// ProviderSchedule returns the provider's active bookings on date, grouped by
// service in the order the services first appear.
func (s *Service) ProviderSchedule(ctx context.Context, providerID uuid.UUID, date string) ([]ScheduleEntry, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	rows, err := s.bookings.ListProviderBookings(ctx, providerID, date)
	if err != nil {
		return nil, translate(err)
	}

	out := []ScheduleEntry{}
	index := map[uuid.UUID]int{}
	for _, b := range rows {
		i, ok := index[b.ServiceID]
		if !ok {
			entry := ScheduleEntry{Service: domain.Service{ID: b.ServiceID}}
			if b.Service != nil {
				entry.Service = *b.Service
			}
			out = append(out, entry)
			i = len(out) - 1
			index[b.ServiceID] = i
		}
		out[i].Bookings = append(out[i].Bookings, b)
	}
	return out, nil
}

// publish is best effort: the booking is already committed, so a broker
// failure is logged and swallowed.
func (s *Service) publish(ctx context.Context, kind events.Kind, b domain.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := events.Event{Kind: kind, Booking: b, OccurredAt: s.now()}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("publish booking event",
			zap.String("kind", string(kind)),
			zap.String("booking_id", b.ID.String()),
			zap.Error(err),
		)
	}
}

func translate(err error) error {
	if errors.Is(err, domain.ErrPersistence) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
