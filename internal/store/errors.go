package store

import (
	"errors"

	"slotbook/backend/internal/domain"
)

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrSlotTaken           = errors.New("slot token already held")
	ErrDurationLocked      = errors.New("duration locked by existing bookings")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	// ErrPersistence is the domain's storage-fault error, so services can
	// return repository faults unchanged.
	ErrPersistence = domain.ErrPersistence
)
