package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

type Deps struct {
	Accounts    accountsService
	Catalog     catalogService
	Bookings    bookingsService
	Tokens      tokenVerifier
	Revocations store.RevocationStore
	// Ready reports whether the backing stores are reachable.
	Ready func(ctx context.Context) error
	Log   *zap.Logger

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

func NewRouter(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "http"))
	registerValidators()

	h := &handlers{
		accounts: d.Accounts,
		catalog:  d.Catalog,
		bookings: d.Bookings,
		log:      log,
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		abortWith(c, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		abortWith(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Use(requestIDMiddleware(), recoveryMiddleware(log), accessLogMiddleware(log))
	r.Use(cors.New(corsConfig(d.AllowedOrigins)))
	if d.RateLimitRPS > 0 {
		r.Use(rateLimitMiddleware(newIPRateLimiter(d.RateLimitRPS, d.RateLimitBurst), log))
	}
	r.Use(timeoutMiddleware(d.RequestTimeout))

	r.GET("/healthz", func(c *gin.Context) {
		respond(c, http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				log.Warn("readiness check failed", zap.Error(err))
				abortWith(c, http.StatusServiceUnavailable, "UNAVAILABLE", "Dependencies unavailable")
				return
			}
		}
		respond(c, http.StatusOK, gin.H{"status": "ready"})
	})

	auth := authMiddleware(d.Tokens, d.Revocations, log)

	r.POST("/auth/register", h.register)
	r.POST("/auth/login", h.login)
	r.POST("/auth/logout", auth, h.logout)
	r.GET("/auth/me", auth, h.me)

	services := r.Group("/services", auth)
	services.GET("", h.listServices)
	services.GET("/:serviceId/slots", h.slots)
	provider := services.Group("", requireRole(domain.RoleProvider))
	provider.POST("", h.createService)
	provider.PATCH("/:serviceId", h.updateService)
	provider.POST("/:serviceId/availability", h.addAvailability)

	appointments := r.Group("/appointments", auth, requireRole(domain.RoleUser))
	appointments.POST("", h.book)
	appointments.GET("/me", h.myBookings)
	appointments.POST("/:id/cancel", h.cancelBooking)

	providers := r.Group("/providers/me", auth, requireRole(domain.RoleProvider))
	providers.GET("/schedule", h.providerSchedule)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

type Server struct {
	srv *http.Server
	log *zap.Logger
}

func NewServer(addr string, handler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Serve blocks until the listener fails or Shutdown is called. A clean
// shutdown returns nil.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("http server listening", zap.String("addr", lis.Addr().String()))
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("http graceful shutdown timed out; closing", zap.Error(err))
		return s.srv.Close()
	}
	return nil
}
