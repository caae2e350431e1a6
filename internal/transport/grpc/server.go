package grpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health-check name reported alongside the overall ("")
// status.
const ServiceName = "slotbook.v1.Bookings"

// HealthCheck reports whether the process can serve traffic, typically a database
// ping.
type HealthCheck func(ctx context.Context) error

type OpsConfig struct {
	RequestTimeout time.Duration
	CheckInterval  time.Duration
	CheckTimeout   time.Duration
}

// OpsServer exposes grpc.health.v1 and server reflection. Health follows the
// check until Shutdown, which flips every service to NOT_SERVING first.
type OpsServer struct {
	srv    *grpc.Server
	health *health.Server
	check  HealthCheck
	cfg    OpsConfig
	log    *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewOpsServer(check HealthCheck, cfg OpsConfig, log *zap.Logger) *OpsServer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 10 * time.Second
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}
	log = log.With(zap.String("component", "grpc.ops"))

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			defaultRequestTimeoutInterceptor(cfg.RequestTimeout),
			loggingInterceptor(log),
		),
	)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &OpsServer{
		srv:    srv,
		health: hs,
		check:  check,
		cfg:    cfg,
		log:    log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Serve runs the check loop and blocks serving lis until Shutdown.
func (s *OpsServer) Serve(lis net.Listener) error {
	go s.watch()

	s.log.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Refresh runs the check once and publishes the result.
func (s *OpsServer) Refresh(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
		err := s.check(ctx)
		cancel()
		if err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	select {
	case <-s.stop:
		return
	default:
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *OpsServer) watch() {
	defer close(s.done)

	s.Refresh(context.Background())
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Refresh(context.Background())
		}
	}
}

// Shutdown marks the server NOT_SERVING, then stops it gracefully, forcing a
// hard stop once timeout elapses.
func (s *OpsServer) Shutdown(timeout time.Duration) {
	s.stopOnce.Do(func() { close(s.stop) })
	s.health.Shutdown()

	s.log.Info("shutting down grpc server", zap.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		s.log.Info("grpc server stopped")
	case <-timer.C:
		s.log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.srv.Stop()
	}
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("rpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}
