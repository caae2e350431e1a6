package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// tokenSeparator cannot occur in a UUID, a YYYY-MM-DD date or an HH:MM time.
const tokenSeparator = "_"

type SlotRef struct {
	ServiceID uuid.UUID
	Date      string
	StartTime string
}

func (r SlotRef) Token() string {
	return EncodeSlotToken(r.ServiceID, r.Date, r.StartTime)
}

func EncodeSlotToken(serviceID uuid.UUID, date, startTime string) string {
	return serviceID.String() + tokenSeparator + date + tokenSeparator + startTime
}

// DecodeSlotToken splits a slot token into its parts. Every part is validated;
// a token is either accepted whole or rejected with ErrInvalidToken.
func DecodeSlotToken(token string) (SlotRef, error) {
	parts := strings.Split(token, tokenSeparator)
	if len(parts) != 3 {
		return SlotRef{}, fmt.Errorf("%w: expected 3 parts, got %d", ErrInvalidToken, len(parts))
	}

	// uuid.Parse also accepts urn and braced forms; only the bare form is a token.
	if len(parts[0]) != 36 {
		return SlotRef{}, fmt.Errorf("%w: service id", ErrInvalidToken)
	}
	serviceID, err := uuid.Parse(parts[0])
	if err != nil {
		return SlotRef{}, fmt.Errorf("%w: service id", ErrInvalidToken)
	}
	if _, err := ParseDate(parts[1]); err != nil {
		return SlotRef{}, fmt.Errorf("%w: date", ErrInvalidToken)
	}
	if _, err := ToMinutes(parts[2]); err != nil {
		return SlotRef{}, fmt.Errorf("%w: start time", ErrInvalidToken)
	}

	return SlotRef{ServiceID: serviceID, Date: parts[1], StartTime: parts[2]}, nil
}
