package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slotbook/backend/internal/config"
	"slotbook/backend/internal/events"
	"slotbook/backend/internal/identity"
	"slotbook/backend/internal/logging"
	"slotbook/backend/internal/service/accounts"
	"slotbook/backend/internal/service/bookings"
	"slotbook/backend/internal/service/catalog"
	"slotbook/backend/internal/store"
	"slotbook/backend/internal/store/postgres"
	redisstore "slotbook/backend/internal/store/redis"
	grpcTransport "slotbook/backend/internal/transport/grpc"
	"slotbook/backend/internal/transport/rest"
)

const serviceName = "slotbook-server"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.Environment, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting",
		zap.String("http_addr", cfg.HTTPAddr()),
		zap.String("grpc_addr", cfg.GRPCAddr()),
		zap.String("log_level", cfg.LogLevel),
		zap.String("env", cfg.Environment),
	)

	log.Info("connecting to database", databaseLogFields(cfg.DatabaseURL)...)
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	db, err := postgres.Open(openCtx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	cancel()
	if err != nil {
		log.Error("database connection failed", append([]zap.Field{zap.Error(err)}, databaseLogFields(cfg.DatabaseURL)...)...)
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
	}()

	var revocations store.RevocationStore = redisstore.NopRevocationStore{}
	if cfg.RedisURL != "" {
		redisCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := redisstore.Open(redisCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = client.Close() }()
		revocations = redisstore.NewRevocationStore(client)
		log.Info("token revocation enabled")
	} else {
		log.Warn("REDIS_URL not set; logout will not revoke tokens")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("connect amqp: %w", err)
		}
		defer func() {
			if err := p.Close(); err != nil {
				log.Warn("amqp close failed", zap.Error(err))
			}
		}()
		publisher = p
		log.Info("booking events enabled", zap.String("exchange", cfg.AMQPExchange))
	}

	tokens, err := identity.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return err
	}

	catalogRepo := postgres.NewCatalogRepo(db)
	accountSvc := accounts.NewService(postgres.NewUserRepo(db), identity.NewPasswordHasher(cfg.BcryptCost), tokens, revocations)
	catalogSvc := catalog.NewService(catalogRepo)
	bookingSvc := bookings.NewService(catalogRepo, postgres.NewBookingRepo(db), publisher, log.With(zap.String("component", "bookings")))

	ready := func(ctx context.Context) error { return postgres.Ping(ctx, db) }

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := rest.NewRouter(rest.Deps{
		Accounts:       accountSvc,
		Catalog:        catalogSvc,
		Bookings:       bookingSvc,
		Tokens:         tokens,
		Revocations:    revocations,
		Ready:          ready,
		Log:            log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: cfg.HTTPRequestTimeout,
	})
	httpServer := rest.NewServer(cfg.HTTPAddr(), router, log)
	opsServer := grpcTransport.NewOpsServer(ready, grpcTransport.OpsConfig{RequestTimeout: cfg.GRPCRequestTimeout}, log)

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr())
	if err != nil {
		return fmt.Errorf("http listen on %s: %w", cfg.HTTPAddr(), err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("grpc listen on %s: %w", cfg.GRPCAddr(), err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- httpServer.Serve(httpLis) }()
	go func() { errCh <- opsServer.Serve(grpcLis) }()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("server stopped unexpectedly", zap.Error(serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	opsServer.Shutdown(cfg.ShutdownTimeout)
	log.Info("stopped")
	return serveErr
}

func databaseLogFields(databaseURL string) []zap.Field {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []zap.Field{zap.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []zap.Field{
		zap.String("db_host", host),
		zap.String("db_port", port),
		zap.String("db_name", name),
	}
}
