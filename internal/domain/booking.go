package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "BOOKED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking keeps its own copy of the slot bounds so it stays meaningful after
// the originating availability window is edited or removed.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID          uuid.UUID     `bun:"id,pk,type:uuid"`
	UserID      uuid.UUID     `bun:"user_id,notnull,type:uuid"`
	ServiceID   uuid.UUID     `bun:"service_id,notnull,type:uuid"`
	Date        string        `bun:"date,notnull"`
	SlotToken   string        `bun:"slot_token,notnull"`
	StartTime   string        `bun:"start_time,notnull"`
	EndTime     string        `bun:"end_time,notnull"`
	Status      BookingStatus `bun:"status,notnull"`
	CancelledAt *time.Time    `bun:"cancelled_at"`
	CreatedAt   time.Time     `bun:"created_at,notnull"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull"`

	Service *Service `bun:"rel:belongs-to,join:service_id=id"`
	User    *User    `bun:"rel:belongs-to,join:user_id=id"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampTimestamps(query, &b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (b Booking) Active() bool {
	return b.Status == BookingStatusBooked
}
