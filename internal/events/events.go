package events

import (
	"context"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"slotbook/backend/internal/domain"
)

type Kind string

const (
	BookingCreated   Kind = "booking.created"
	BookingCancelled Kind = "booking.cancelled"
)

const ContentType = "application/x-protobuf"

type Event struct {
	Kind       Kind
	Booking    domain.Booking
	OccurredAt time.Time
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(ctx context.Context, ev Event) error { return nil }

// Encode renders ev as a serialized google.protobuf.Struct so consumers need
// no schema beyond the well-known types.
func Encode(ev Event) ([]byte, error) {
	b := ev.Booking
	fields := map[string]any{
		"kind":       string(ev.Kind),
		"occurredAt": ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		"bookingId":  b.ID.String(),
		"userId":     b.UserID.String(),
		"serviceId":  b.ServiceID.String(),
		"slotId":     b.SlotToken,
		"date":       b.Date,
		"startTime":  b.StartTime,
		"endTime":    b.EndTime,
		"status":     string(b.Status),
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Decode is the inverse of Encode, returning the flat field map.
func Decode(body []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}
