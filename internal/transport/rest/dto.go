package rest

import (
	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/service/bookings"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=USER SERVICE_PROVIDER"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type createServiceRequest struct {
	Name            string `json:"name" binding:"required"`
	Type            string `json:"type" binding:"required,service_type"`
	DurationMinutes int    `json:"durationMinutes" binding:"required"`
}

type updateServiceRequest struct {
	Name            *string `json:"name"`
	DurationMinutes *int    `json:"durationMinutes"`
}

type availabilityRequest struct {
	DayOfWeek *int   `json:"dayOfWeek" binding:"required,min=0,max=6"`
	StartTime string `json:"startTime" binding:"required,clock,half_hour"`
	EndTime   string `json:"endTime" binding:"required,clock,half_hour"`
}

type bookRequest struct {
	SlotID string `json:"slotId" binding:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID.String(), Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

type serviceResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	DurationMinutes int    `json:"durationMinutes"`
	ProviderID      string `json:"providerId"`
	ProviderName    string `json:"providerName,omitempty"`
}

func toServiceResponse(s domain.Service) serviceResponse {
	out := serviceResponse{
		ID:              s.ID.String(),
		Name:            s.Name,
		Type:            string(s.Type),
		DurationMinutes: s.DurationMinutes,
		ProviderID:      s.ProviderID.String(),
	}
	if s.Provider != nil {
		out.ProviderName = s.Provider.Name
	}
	return out
}

type availabilityResponse struct {
	ID        string `json:"id"`
	ServiceID string `json:"serviceId"`
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func toAvailabilityResponse(w domain.AvailabilityWindow) availabilityResponse {
	return availabilityResponse{
		ID:        w.ID.String(),
		ServiceID: w.ServiceID.String(),
		DayOfWeek: w.DayOfWeek,
		StartTime: w.StartTime,
		EndTime:   w.EndTime,
	}
}

type slotResponse struct {
	SlotID    string `json:"slotId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type slotCatalogResponse struct {
	ServiceID string         `json:"serviceId"`
	Date      string         `json:"date"`
	Slots     []slotResponse `json:"slots"`
}

func toSlotCatalogResponse(c domain.SlotCatalog) slotCatalogResponse {
	out := slotCatalogResponse{
		ServiceID: c.ServiceID.String(),
		Date:      c.Date,
		Slots:     make([]slotResponse, 0, len(c.Slots)),
	}
	for _, s := range c.Slots {
		out.Slots = append(out.Slots, slotResponse{SlotID: s.Token(), StartTime: s.StartTime, EndTime: s.EndTime})
	}
	return out
}

type bookingCreatedResponse struct {
	ID     string `json:"id"`
	SlotID string `json:"slotId"`
	Status string `json:"status"`
}

type bookingResponse struct {
	ID          string  `json:"id"`
	SlotID      string  `json:"slotId"`
	ServiceID   string  `json:"serviceId"`
	ServiceName string  `json:"serviceName,omitempty"`
	Date        string  `json:"date"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	Status      string  `json:"status"`
	CancelledAt *string `json:"cancelledAt,omitempty"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	out := bookingResponse{
		ID:        b.ID.String(),
		SlotID:    b.SlotToken,
		ServiceID: b.ServiceID.String(),
		Date:      b.Date,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Status:    string(b.Status),
	}
	if b.Service != nil {
		out.ServiceName = b.Service.Name
	}
	if b.CancelledAt != nil {
		ts := b.CancelledAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		out.CancelledAt = &ts
	}
	return out
}

type scheduleAppointment struct {
	AppointmentID string `json:"appointmentId"`
	UserName      string `json:"userName,omitempty"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	Status        string `json:"status"`
}

type scheduleService struct {
	ServiceID    string                `json:"serviceId"`
	ServiceName  string                `json:"serviceName"`
	Appointments []scheduleAppointment `json:"appointments"`
}

type scheduleResponse struct {
	Date     string            `json:"date"`
	Services []scheduleService `json:"services"`
}

func toScheduleResponse(date string, entries []bookings.ScheduleEntry) scheduleResponse {
	out := scheduleResponse{Date: date, Services: make([]scheduleService, 0, len(entries))}
	for _, e := range entries {
		svc := scheduleService{
			ServiceID:    e.Service.ID.String(),
			ServiceName:  e.Service.Name,
			Appointments: make([]scheduleAppointment, 0, len(e.Bookings)),
		}
		for _, b := range e.Bookings {
			a := scheduleAppointment{
				AppointmentID: b.ID.String(),
				StartTime:     b.StartTime,
				EndTime:       b.EndTime,
				Status:        string(b.Status),
			}
			if b.User != nil {
				a.UserName = b.User.Name
			}
			svc.Appointments = append(svc.Appointments, a)
		}
		out.Services = append(out.Services, svc)
	}
	return out
}
