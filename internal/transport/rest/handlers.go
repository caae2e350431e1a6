package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/identity"
	"slotbook/backend/internal/service/accounts"
	"slotbook/backend/internal/service/bookings"
	"slotbook/backend/internal/service/catalog"
)

const idempotencyHeader = "Idempotency-Key"

type accountsService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (domain.User, error)
	Login(ctx context.Context, email, password string) (accounts.Session, error)
	Logout(ctx context.Context, claims identity.Claims) error
	Me(ctx context.Context, userID uuid.UUID) (domain.User, error)
}

type catalogService interface {
	CreateService(ctx context.Context, in catalog.CreateServiceInput) (domain.Service, error)
	UpdateService(ctx context.Context, in catalog.UpdateServiceInput) (domain.Service, error)
	ListServices(ctx context.Context, serviceType domain.ServiceType) ([]domain.Service, error)
	AddAvailability(ctx context.Context, in catalog.AddAvailabilityInput) (domain.AvailabilityWindow, error)
	Slots(ctx context.Context, serviceID uuid.UUID, date string) (domain.SlotCatalog, error)
}

type bookingsService interface {
	Assign(ctx context.Context, in bookings.AssignInput) (domain.Booking, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	Cancel(ctx context.Context, userID, bookingID uuid.UUID) (domain.Booking, error)
	ProviderSchedule(ctx context.Context, providerID uuid.UUID, date string) ([]bookings.ScheduleEntry, error)
}

type handlers struct {
	accounts accountsService
	catalog  catalogService
	bookings bookingsService
	log      *zap.Logger
}

func (h *handlers) register(c *gin.Context) {
	const op = "Register"
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, err)
		return
	}

	u, err := h.accounts.Register(c.Request.Context(), accounts.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		h.fail(c, op, err)
		return
	}

	h.log.Info("user registered", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	respond(c, http.StatusCreated, toUserResponse(u))
}

func (h *handlers) login(c *gin.Context) {
	const op = "Login"
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, err)
		return
	}

	session, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"token":     session.Token,
		"expiresAt": session.Claims.ExpiresAt.UTC(),
		"user":      toUserResponse(session.User),
	})
}

func (h *handlers) logout(c *gin.Context) {
	claims, _ := claimsFrom(c)
	if err := h.accounts.Logout(c.Request.Context(), claims); err != nil {
		h.fail(c, "Logout", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"loggedOut": true})
}

func (h *handlers) me(c *gin.Context) {
	claims, _ := claimsFrom(c)
	u, err := h.accounts.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, "Me", err)
		return
	}
	respond(c, http.StatusOK, toUserResponse(u))
}

func (h *handlers) createService(c *gin.Context) {
	const op = "CreateService"
	var req createServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, err)
		return
	}
	claims, _ := claimsFrom(c)

	svc, err := h.catalog.CreateService(c.Request.Context(), catalog.CreateServiceInput{
		ProviderID:      claims.UserID,
		Name:            req.Name,
		Type:            domain.ServiceType(req.Type),
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.fail(c, op, err)
		return
	}

	h.log.Info("service created",
		zap.String("service_id", svc.ID.String()),
		zap.String("provider_id", svc.ProviderID.String()),
		zap.Int("duration_minutes", svc.DurationMinutes),
	)
	respond(c, http.StatusCreated, toServiceResponse(svc))
}

func (h *handlers) updateService(c *gin.Context) {
	const op = "UpdateService"
	serviceID, ok := h.pathUUID(c, op, "serviceId")
	if !ok {
		return
	}
	var req updateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, err)
		return
	}
	claims, _ := claimsFrom(c)

	svc, err := h.catalog.UpdateService(c.Request.Context(), catalog.UpdateServiceInput{
		ProviderID:      claims.UserID,
		ServiceID:       serviceID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.fail(c, op, err)
		return
	}
	respond(c, http.StatusOK, toServiceResponse(svc))
}

func (h *handlers) addAvailability(c *gin.Context) {
	const op = "AddAvailability"
	serviceID, ok := h.pathUUID(c, op, "serviceId")
	if !ok {
		return
	}
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, err)
		return
	}
	claims, _ := claimsFrom(c)

	w, err := h.catalog.AddAvailability(c.Request.Context(), catalog.AddAvailabilityInput{
		ProviderID: claims.UserID,
		ServiceID:  serviceID,
		DayOfWeek:  *req.DayOfWeek,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		h.fail(c, op, err)
		return
	}

	h.log.Info("availability added",
		zap.String("service_id", serviceID.String()),
		zap.Int("day_of_week", w.DayOfWeek),
		zap.String("start_time", w.StartTime),
		zap.String("end_time", w.EndTime),
	)
	respond(c, http.StatusCreated, toAvailabilityResponse(w))
}

func (h *handlers) listServices(c *gin.Context) {
	serviceType := domain.ServiceType(strings.ToUpper(strings.TrimSpace(c.Query("type"))))
	rows, err := h.catalog.ListServices(c.Request.Context(), serviceType)
	if err != nil {
		h.fail(c, "ListServices", err)
		return
	}
	out := make([]serviceResponse, 0, len(rows))
	for _, s := range rows {
		out = append(out, toServiceResponse(s))
	}
	respond(c, http.StatusOK, out)
}

func (h *handlers) slots(c *gin.Context) {
	const op = "Slots"
	serviceID, ok := h.pathUUID(c, op, "serviceId")
	if !ok {
		return
	}
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		abortWith(c, http.StatusBadRequest, "VALIDATION_ERROR", "date query parameter is required")
		return
	}

	cat, err := h.catalog.Slots(c.Request.Context(), serviceID, date)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	respond(c, http.StatusOK, toSlotCatalogResponse(cat))
}

func (h *handlers) book(c *gin.Context) {
	const op = "Assign"
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, err)
		return
	}
	claims, _ := claimsFrom(c)

	b, err := h.bookings.Assign(c.Request.Context(), bookings.AssignInput{
		UserID:         claims.UserID,
		SlotToken:      req.SlotID,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(idempotencyHeader)),
	})
	if err != nil {
		h.fail(c, op, err)
		return
	}

	h.log.Info("slot booked",
		zap.String("booking_id", b.ID.String()),
		zap.String("user_id", b.UserID.String()),
		zap.String("slot_id", b.SlotToken),
	)
	respond(c, http.StatusCreated, bookingCreatedResponse{
		ID:     b.ID.String(),
		SlotID: b.SlotToken,
		Status: string(b.Status),
	})
}

func (h *handlers) myBookings(c *gin.Context) {
	claims, _ := claimsFrom(c)
	rows, err := h.bookings.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		h.fail(c, "ListMine", err)
		return
	}
	out := make([]bookingResponse, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBookingResponse(b))
	}
	respond(c, http.StatusOK, out)
}

func (h *handlers) cancelBooking(c *gin.Context) {
	const op = "Cancel"
	bookingID, ok := h.pathUUID(c, op, "id")
	if !ok {
		return
	}
	claims, _ := claimsFrom(c)

	b, err := h.bookings.Cancel(c.Request.Context(), claims.UserID, bookingID)
	if err != nil {
		h.fail(c, op, err)
		return
	}

	h.log.Info("booking cancelled", zap.String("booking_id", b.ID.String()), zap.String("user_id", b.UserID.String()))
	respond(c, http.StatusOK, toBookingResponse(b))
}

func (h *handlers) providerSchedule(c *gin.Context) {
	const op = "ProviderSchedule"
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		abortWith(c, http.StatusBadRequest, "VALIDATION_ERROR", "date query parameter is required")
		return
	}
	claims, _ := claimsFrom(c)

	entries, err := h.bookings.ProviderSchedule(c.Request.Context(), claims.UserID, date)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	respond(c, http.StatusOK, toScheduleResponse(date, entries))
}

func (h *handlers) pathUUID(c *gin.Context, op, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.log.Warn("invalid path parameter",
			zap.String("op", op),
			zap.String("param", name),
			zap.String("request_id", requestID(c)),
		)
		abortWith(c, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
