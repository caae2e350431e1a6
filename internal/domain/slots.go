package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Slot is a bookable sub-interval of an availability window on a concrete date.
// Slots are never stored; they are derived again on every read.
type Slot struct {
	ServiceID uuid.UUID
	Date      string
	StartTime string
	EndTime   string
}

func (s Slot) Token() string {
	return EncodeSlotToken(s.ServiceID, s.Date, s.StartTime)
}

type SlotCatalog struct {
	ServiceID uuid.UUID
	Date      string
	Slots     []Slot
}

// DeriveSlots splits one availability window into consecutive slots of
// durationMinutes. A trailing remainder shorter than the duration produces no
// slot. A window shorter than a single duration yields one slot covering the
// whole window.
func DeriveSlots(serviceID uuid.UUID, date string, window AvailabilityWindow, durationMinutes int) ([]Slot, error) {
	if durationMinutes <= 0 {
		return nil, errors.New("invalid duration")
	}
	start, end, err := window.bounds()
	if err != nil {
		return nil, err
	}
	span := end - start
	if span <= 0 {
		return nil, nil
	}

	if span < durationMinutes {
		return []Slot{{
			ServiceID: serviceID,
			Date:      date,
			StartTime: window.StartTime,
			EndTime:   window.EndTime,
		}}, nil
	}

	out := make([]Slot, 0, span/durationMinutes)
	for cursor := start; cursor+durationMinutes <= end; cursor += durationMinutes {
		from, err := ToTimeString(cursor)
		if err != nil {
			return nil, err
		}
		to, err := ToTimeString(cursor + durationMinutes)
		if err != nil {
			return nil, err
		}
		out = append(out, Slot{
			ServiceID: serviceID,
			Date:      date,
			StartTime: from,
			EndTime:   to,
		})
	}
	return out, nil
}

// DeriveDay derives the slot catalog of a service for one date. Windows on other
// weekdays are ignored; the remaining windows contribute their slots in the
// order given, without re-sorting.
func DeriveDay(service Service, date string, windows []AvailabilityWindow) (SlotCatalog, error) {
	weekday, err := DayOfWeek(date)
	if err != nil {
		return SlotCatalog{}, err
	}

	out := SlotCatalog{ServiceID: service.ID, Date: date, Slots: []Slot{}}
	for _, w := range windows {
		if w.DayOfWeek != weekday {
			continue
		}
		slots, err := DeriveSlots(service.ID, date, w, service.DurationMinutes)
		if err != nil {
			return SlotCatalog{}, err
		}
		out.Slots = append(out.Slots, slots...)
	}
	return out, nil
}

// Find returns the slot whose canonical token equals token.
func (c SlotCatalog) Find(token string) (Slot, bool) {
	for _, s := range c.Slots {
		if s.Token() == token {
			return s, true
		}
	}
	return Slot{}, false
}
