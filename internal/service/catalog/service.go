package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

const (
	MinDurationMinutes  = 30
	MaxDurationMinutes  = 120
	DurationGranularity = 30
	// availability boundaries sit on the half hour
	TimeGranularity = 30
	maxNameLength   = 200
)

type Service struct {
	repo store.CatalogRepository
}

func NewService(repo store.CatalogRepository) *Service {
	return &Service{repo: repo}
}

type CreateServiceInput struct {
	ProviderID      uuid.UUID
	Name            string
	Type            domain.ServiceType
	DurationMinutes int
}

func (s *Service) CreateService(ctx context.Context, in CreateServiceInput) (domain.Service, error) {
	if in.ProviderID == uuid.Nil {
		return domain.Service{}, domain.NewValidationError("provider_id is required")
	}
	name, err := validateName(in.Name)
	if err != nil {
		return domain.Service{}, err
	}
	if !in.Type.Valid() {
		return domain.Service{}, domain.NewValidationError("type is invalid")
	}
	if err := validateDuration(in.DurationMinutes); err != nil {
		return domain.Service{}, err
	}

	svc, err := s.repo.CreateService(ctx, domain.Service{
		ProviderID:      in.ProviderID,
		Name:            name,
		Type:            in.Type,
		DurationMinutes: in.DurationMinutes,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Service{}, domain.ErrForbidden
		}
		return domain.Service{}, translate(err)
	}
	return svc, nil
}

type UpdateServiceInput struct {
	ProviderID      uuid.UUID
	ServiceID       uuid.UUID
	Name            *string
	DurationMinutes *int
}

func (s *Service) UpdateService(ctx context.Context, in UpdateServiceInput) (domain.Service, error) {
	if in.Name == nil && in.DurationMinutes == nil {
		return domain.Service{}, domain.NewValidationError("nothing to update")
	}

	current, err := s.ownedService(ctx, in.ProviderID, in.ServiceID)
	if err != nil {
		return domain.Service{}, err
	}

	updated := current
	if in.Name != nil {
		name, err := validateName(*in.Name)
		if err != nil {
			return domain.Service{}, err
		}
		updated.Name = name
	}
	if in.DurationMinutes != nil {
		if err := validateDuration(*in.DurationMinutes); err != nil {
			return domain.Service{}, err
		}
		updated.DurationMinutes = *in.DurationMinutes
	}

	out, err := s.repo.UpdateService(ctx, updated)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDurationLocked):
			return domain.Service{}, domain.ErrDurationLocked
		case errors.Is(err, store.ErrNotFound):
			return domain.Service{}, domain.ErrServiceNotFound
		}
		return domain.Service{}, translate(err)
	}
	return out, nil
}

func (s *Service) ListServices(ctx context.Context, serviceType domain.ServiceType) ([]domain.Service, error) {
	if serviceType != "" && !serviceType.Valid() {
		return nil, domain.NewValidationError("type is invalid")
	}
	rows, err := s.repo.ListServices(ctx, store.ServiceFilter{Type: serviceType})
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

type AddAvailabilityInput struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	DayOfWeek  int
	StartTime  string
	EndTime    string
}

func (s *Service) AddAvailability(ctx context.Context, in AddAvailabilityInput) (domain.AvailabilityWindow, error) {
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return domain.AvailabilityWindow{}, domain.NewValidationError("day_of_week must be between 0 and 6")
	}
	start, err := validateBoundary("start_time", in.StartTime)
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	end, err := validateBoundary("end_time", in.EndTime)
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	if end <= start {
		return domain.AvailabilityWindow{}, domain.NewValidationError("end_time must be after start_time")
	}

	if _, err := s.ownedService(ctx, in.ProviderID, in.ServiceID); err != nil {
		return domain.AvailabilityWindow{}, err
	}

	w, err := s.repo.CreateAvailability(ctx, domain.AvailabilityWindow{
		ServiceID: in.ServiceID,
		DayOfWeek: in.DayOfWeek,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return domain.AvailabilityWindow{}, domain.ErrOverlappingAvailability
		case errors.Is(err, store.ErrNotFound):
			return domain.AvailabilityWindow{}, domain.ErrServiceNotFound
		}
		return domain.AvailabilityWindow{}, translate(err)
	}
	return w, nil
}

// Slots derives the bookable slots of a service on date. Nothing is cached:
// every call reads the current duration and windows.
func (s *Service) Slots(ctx context.Context, serviceID uuid.UUID, date string) (domain.SlotCatalog, error) {
	_, cat, err := LoadSlots(ctx, s.repo, serviceID, date)
	return cat, err
}

// LoadSlots loads the service and its windows for the weekday of date and
// derives the slot catalog. The date is validated before any lookup.
func LoadSlots(ctx context.Context, repo store.CatalogRepository, serviceID uuid.UUID, date string) (domain.Service, domain.SlotCatalog, error) {
	weekday, err := domain.DayOfWeek(date)
	if err != nil {
		return domain.Service{}, domain.SlotCatalog{}, err
	}

	svc, err := repo.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Service{}, domain.SlotCatalog{}, domain.ErrServiceNotFound
		}
		return domain.Service{}, domain.SlotCatalog{}, translate(err)
	}

	windows, err := repo.ListAvailability(ctx, serviceID, weekday)
	if err != nil {
		return domain.Service{}, domain.SlotCatalog{}, translate(err)
	}

	cat, err := domain.DeriveDay(svc, date, windows)
	if err != nil {
		return domain.Service{}, domain.SlotCatalog{}, err
	}
	return svc, cat, nil
}

func (s *Service) ownedService(ctx context.Context, providerID, serviceID uuid.UUID) (domain.Service, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Service{}, domain.ErrServiceNotFound
		}
		return domain.Service{}, translate(err)
	}
	if svc.ProviderID != providerID {
		return domain.Service{}, domain.ErrForbidden
	}
	return svc, nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", domain.NewValidationError("name is required")
	}
	if len(name) > maxNameLength {
		return "", domain.NewValidationError("name too long")
	}
	return name, nil
}

func validateDuration(minutes int) error {
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes || minutes%DurationGranularity != 0 {
		return domain.NewValidationError(fmt.Sprintf("duration_minutes must be a multiple of %d between %d and %d",
			DurationGranularity, MinDurationMinutes, MaxDurationMinutes))
	}
	return nil
}

func validateBoundary(field, value string) (int, error) {
	m, err := domain.ToMinutes(value)
	if err != nil || m%TimeGranularity != 0 {
		return 0, domain.NewValidationError(field + " must be HH:MM on the hour or half hour")
	}
	return m, nil
}

func translate(err error) error {
	if errors.Is(err, domain.ErrPersistence) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
