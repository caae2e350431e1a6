package domain

import (
	"fmt"
	"time"
)

const (
	MinutesPerDay = 24 * 60
	dateLayout    = "2006-01-02"
)

// ToMinutes converts a 24-hour "HH:MM" wall-clock string into minutes since midnight.
func ToMinutes(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	h, ok := twoDigits(s[0], s[1])
	if !ok || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	m, ok := twoDigits(s[3], s[4])
	if !ok || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	return h*60 + m, nil
}

// ToTimeString renders minutes since midnight as "HH:MM". Values past the end of
// the day are reported as ErrSlotOverflow rather than wrapped.
func ToTimeString(minutes int) (string, error) {
	if minutes < 0 {
		return "", fmt.Errorf("%w: %d minutes", ErrMalformedTime, minutes)
	}
	if minutes >= MinutesPerDay {
		return "", fmt.Errorf("%w: %d minutes", ErrSlotOverflow, minutes)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

// ParseDate parses a calendar date in YYYY-MM-DD form. Impossible dates such as
// 2026-02-30 are rejected.
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(dateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return d, nil
}

// DayOfWeek returns 0 (Sunday) through 6 (Saturday) for a YYYY-MM-DD date.
func DayOfWeek(date string) (int, error) {
	d, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return int(d.Weekday()), nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}
