package rest

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/identity"
	"slotbook/backend/internal/store"
)

const (
	requestIDHeader  = "X-Request-ID"
	requestIDKey     = "request_id"
	claimsKey        = "claims"
	maxRequestIDLen  = 128
	limiterIdleAfter = 10 * time.Minute
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func accessLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", requestID(c)),
		}
		if claims, ok := claimsFrom(c); ok {
			fields = append(fields, zap.String("user_id", claims.UserID.String()))
		}
		log.Info("http request", fields...)
	}
}

func recoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("route", c.FullPath()),
			zap.String("request_id", requestID(c)),
			zap.Stack("stack"),
		)
		abortWith(c, http.StatusInternalServerError, "INTERNAL", "Internal server error")
	})
}

// timeoutMiddleware gives every request a deadline unless the caller's
// context already carries one.
func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); ok {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	if now.Sub(l.lastSweep) > time.Minute {
		for k, other := range l.visitors {
			if now.Sub(other.lastSeen) > limiterIdleAfter {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}
	return v.limiter.AllowN(now, 1)
}

func rateLimitMiddleware(l *ipRateLimiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.allow(ip) {
			log.Warn("rate limit exceeded", zap.String("client_ip", ip), zap.String("request_id", requestID(c)))
			abortWith(c, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded. Try again later.")
			return
		}
		c.Next()
	}
}

type tokenVerifier interface {
	Verify(token string) (identity.Claims, error)
}

// authMiddleware accepts "Authorization: Bearer <jwt>" and rejects tokens that
// were revoked by logout.
func authMiddleware(verifier tokenVerifier, revocations store.RevocationStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.Fields(c.GetHeader("Authorization"))
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWith(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid Authorization header")
			return
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			abortWith(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}

		revoked, err := revocations.IsRevoked(c.Request.Context(), claims.TokenID)
		if err != nil {
			log.Error("revocation lookup failed", zap.Error(err), zap.String("request_id", requestID(c)))
			abortWith(c, http.StatusServiceUnavailable, "UNAVAILABLE", "Authentication temporarily unavailable")
			return
		}
		if revoked {
			abortWith(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token has been revoked")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func requireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if claims.Role != role {
			abortWith(c, http.StatusForbidden, "FORBIDDEN", "Requires role "+string(role))
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) (identity.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return identity.Claims{}, false
	}
	claims, ok := v.(identity.Claims)
	return claims, ok
}
