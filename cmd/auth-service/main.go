package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/go-session-auth/internal/cache"
	"github.com/pribylovaa/go-session-auth/internal/config"
	"github.com/pribylovaa/go-session-auth/internal/interceptors"
	"github.com/pribylovaa/go-session-auth/internal/metrics"
	"github.com/pribylovaa/go-session-auth/internal/service"
	"github.com/pribylovaa/go-session-auth/internal/storage"
	"github.com/pribylovaa/go-session-auth/internal/storage/memory"
	"github.com/pribylovaa/go-session-auth/internal/storage/mongo"
	"github.com/pribylovaa/go-session-auth/internal/storage/postgres"
	"github.com/pribylovaa/go-session-auth/internal/token"
	grpcverifier "github.com/pribylovaa/go-session-auth/internal/transport/grpc"
	httptransport "github.com/pribylovaa/go-session-auth/internal/transport/http"
	"github.com/pribylovaa/go-session-auth/internal/transport/http/middleware"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application",
		slog.String("env", cfg.Env),
		slog.String("db_driver", cfg.DB.Driver),
		slog.String("revocation", cfg.Revocation.Driver),
	)
	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		log.Warn("insecure_default_jwt_secret")
	}

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(rootCtx context.Context, cfg *config.Config, log *slog.Logger) error {
	// Хранилище c таймаутом на подключение.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := openStorage(dbCtx, cfg.DB)
	dbCancel()
	if err != nil {
		return err
	}
	defer str.Close()
	log.Info("storage_connected", slog.String("driver", cfg.DB.Driver))

	codec, err := token.New([]byte(cfg.Auth.JWTSecret), token.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return err
	}

	srvc := service.New(str, codec, cfg.Auth)
	srvc.SetMetrics(metrics.New(prometheus.DefaultRegisterer))

	if cfg.Revocation.Enabled() {
		denyCtx, denyCancel := context.WithTimeout(rootCtx, 5*time.Second)
		deny, err := openDenylist(denyCtx, cfg.Revocation)
		denyCancel()
		if err != nil {
			return err
		}
		defer deny.Close()

		srvc.SetDenylist(deny)
	}
	log.Info("service_initialized", slog.Bool("revocation", srvc.RevocationEnabled()))

	verifier, closeVerifier, err := newVerifier(cfg, log, srvc)
	if err != nil {
		return err
	}
	defer closeVerifier()

	var ready atomic.Bool

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httptransport.NewRouter(srvc, verifier, httptransport.Options{
			Logger:       log,
			Timeout:      cfg.Timeouts.Service,
			BasePath:     "/api",
			ClientOrigin: cfg.HTTP.ClientOrigin,
			Ready:        ready.Load,
			Metrics:      promhttp.Handler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 2)

	httpLis, err := net.Listen("tcp", httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", httpSrv.Addr, err)
	}
	go func() {
		log.Info("http_listen_start", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var (
		grpcServer *grpc.Server
		hs         *health.Server
	)
	if !cfg.GRPC.Disabled {
		grpcServer, hs = newGRPCServer(cfg, log, srvc)

		addr := cfg.GRPC.Addr()
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			_ = httpSrv.Close()
			return fmt.Errorf("grpc listen %s: %w", addr, err)
		}
		log.Info("grpc_listen_start", slog.String("addr", addr))

		go func() {
			if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serveErrCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()

		hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		hs.SetServingStatus(grpcverifier.ServiceName, healthpb.HealthCheckResponse_SERVING)
	}

	ready.Store(true)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		log.Error("serve_failed", slog.String("err", serveErr.Error()))
	}

	ready.Store(false)
	if hs != nil {
		hs.Shutdown()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer shutdownCancel()

	if grpcServer != nil {
		stopGRPC(shutdownCtx, grpcServer, log)
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	}
	log.Info("http_stopped")

	return serveErr
}

// newGRPCServer собирает gRPC-сервер верификации с интерсепторами, метриками и health.
func newGRPCServer(cfg *config.Config, log *slog.Logger, srvc *service.Service) (*grpc.Server, *health.Server) {
	grpc_prometheus.EnableHandlingTimeHistogram()

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.UnaryLoggingInterceptor(log),
			interceptors.WithTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	grpcverifier.Register(grpcServer, grpcverifier.NewVerifierServer(srvc))

	// Рефлексия — только в local/dev.
	if cfg.Env == config.EnvLocal || cfg.Env == config.EnvDev {
		reflection.Register(grpcServer)
	}

	grpc_prometheus.Register(grpcServer)

	return grpcServer, hs
}

// newVerifier выбирает проверку токенов для защищённых маршрутов:
// локально через сервис или удалённо через VERIFIER_ADDR.
func newVerifier(cfg *config.Config, log *slog.Logger, srvc *service.Service) (middleware.Verifier, func(), error) {
	if !cfg.Verifier.Remote() {
		return srvc, func() {}, nil
	}

	cc, err := grpcverifier.Dial(cfg.Verifier.Addr, log, cfg.Verifier.Timeout)
	if err != nil {
		return nil, nil, err
	}
	log.Info("remote_verifier_configured", slog.String("addr", cfg.Verifier.Addr))

	return grpcverifier.NewVerifierClient(cc), func() {
		if err := cc.Close(); err != nil {
			log.Warn("remote_verifier_close_failed", slog.String("err", err.Error()))
		}
	}, nil
}

// stopGRPC — graceful stop с принудительной остановкой по истечении ctx.
func stopGRPC(ctx context.Context, s *grpc.Server, log *slog.Logger) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc_stopped")
	case <-ctx.Done():
		log.Warn("grpc_force_stop")
		s.Stop()
	}
}

// openStorage выбирает хранилище пользователей по DB_DRIVER.
func openStorage(ctx context.Context, cfg config.DBConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverMongo:
		st, err := mongo.New(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

// openDenylist выбирает реализацию отзыва токенов по REVOCATION.
func openDenylist(ctx context.Context, cfg config.RevocationConfig) (cache.Denylist, error) {
	switch cfg.Driver {
	case config.RevocationMemory:
		return cache.NewMemoryDenylist(nil), nil
	case config.RevocationRedis:
		return cache.NewRedisDenylist(ctx, cfg.RedisURL, "")
	default:
		return nil, fmt.Errorf("unknown revocation driver %q", cfg.Driver)
	}
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	switch env {
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
