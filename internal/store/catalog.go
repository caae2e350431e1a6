package store

import (
	"context"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
)

type ServiceFilter struct {
	Type domain.ServiceType
}

type CatalogRepository interface {
	CreateService(ctx context.Context, svc domain.Service) (domain.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (domain.Service, error)
	ListServices(ctx context.Context, filter ServiceFilter) ([]domain.Service, error)
	UpdateService(ctx context.Context, svc domain.Service) (domain.Service, error)

	CreateAvailability(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error)
	ListAvailability(ctx context.Context, serviceID uuid.UUID, dayOfWeek int) ([]domain.AvailabilityWindow, error)
}

// CatalogTx is the set of catalog operations available inside a
// service-scoped transaction.
type CatalogTx interface {
	GetService(ctx context.Context, id uuid.UUID) (domain.Service, error)
	UpdateService(ctx context.Context, svc domain.Service) (domain.Service, error)
	CountBookings(ctx context.Context, serviceID uuid.UUID) (int, error)

	ListAvailability(ctx context.Context, serviceID uuid.UUID, dayOfWeek int) ([]domain.AvailabilityWindow, error)
	CreateAvailability(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error)
}
