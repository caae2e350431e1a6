package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ServiceType string

const (
	ServiceTypeMedical   ServiceType = "MEDICAL"
	ServiceTypeHouseHelp ServiceType = "HOUSE_HELP"
	ServiceTypeBeauty    ServiceType = "BEAUTY"
	ServiceTypeFitness   ServiceType = "FITNESS"
	ServiceTypeEducation ServiceType = "EDUCATION"
	ServiceTypeOther     ServiceType = "OTHER"
)

func (t ServiceType) Valid() bool {
	switch t {
	case ServiceTypeMedical, ServiceTypeHouseHelp, ServiceTypeBeauty,
		ServiceTypeFitness, ServiceTypeEducation, ServiceTypeOther:
		return true
	}
	return false
}

type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              uuid.UUID   `bun:"id,pk,type:uuid"`
	ProviderID      uuid.UUID   `bun:"provider_id,notnull,type:uuid"`
	Name            string      `bun:"name,notnull"`
	Type            ServiceType `bun:"type,notnull"`
	DurationMinutes int         `bun:"duration_minutes,notnull"`
	CreatedAt       time.Time   `bun:"created_at,notnull"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull"`

	Provider *User `bun:"rel:belongs-to,join:provider_id=id"`
}

func (s *Service) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampTimestamps(query, &s.ID, &s.CreatedAt, &s.UpdatedAt)
}

type AvailabilityWindow struct {
	bun.BaseModel `bun:"table:availability_windows"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	ServiceID uuid.UUID `bun:"service_id,notnull,type:uuid"`
	DayOfWeek int       `bun:"day_of_week,notnull"`
	StartTime string    `bun:"start_time,notnull"`
	EndTime   string    `bun:"end_time,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (w *AvailabilityWindow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampTimestamps(query, &w.ID, &w.CreatedAt, nil)
}

// Overlaps reports whether two windows on the same day intersect as half-open
// intervals. Touching windows (09:00-10:00 and 10:00-11:00) do not overlap.
func (w AvailabilityWindow) Overlaps(other AvailabilityWindow) (bool, error) {
	if w.DayOfWeek != other.DayOfWeek {
		return false, nil
	}
	ws, we, err := w.bounds()
	if err != nil {
		return false, err
	}
	os, oe, err := other.bounds()
	if err != nil {
		return false, err
	}
	return ws < oe && we > os, nil
}

func (w AvailabilityWindow) bounds() (int, int, error) {
	start, err := ToMinutes(w.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err := ToMinutes(w.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
