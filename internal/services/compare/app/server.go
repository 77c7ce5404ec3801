// Package server wires the compare runtime and its HTTP and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/planmatch/internal/platform/logging"
	"github.com/louisbranch/planmatch/internal/platform/timeouts"
	compareapi "github.com/louisbranch/planmatch/internal/services/compare/api/http/compare"
	"github.com/louisbranch/planmatch/internal/services/compare/catalog"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/source"
	"github.com/louisbranch/planmatch/internal/services/compare/identity"
	"github.com/louisbranch/planmatch/internal/services/compare/session"
	comparesqlite "github.com/louisbranch/planmatch/internal/services/compare/storage/sqlite"
	"github.com/louisbranch/planmatch/internal/services/compare/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported for the HTTP API.
const HealthService = "planmatch.compare.v1.CompareHTTP"

// Config describes one compare server.
type Config struct {
	Service  string
	HTTPAddr string
	GRPCAddr string
	DBPath   string
	Source   source.Config
	// SecureCookies marks anonymous session cookies Secure.
	SecureCookies bool
	// Identity overrides the env-configured token verifier.
	Identity identity.Provider
	Logger   *zap.Logger
}

// Server hosts the compare HTTP API, a gRPC health endpoint, and storage.
type Server struct {
	logger       *zap.Logger
	httpListener net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	sink         *telemetry.Sink
	store        *comparesqlite.Store
}

// New opens storage, builds the compare runtime, and binds both listeners.
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := logging.OrNop(cfg.Logger)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "compare.db")
	}
	if strings.TrimSpace(cfg.Service) == "" {
		cfg.Service = "compare"
	}

	store, err := openCompareStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	mock, err := catalog.DefaultMockCatalog()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	provider := cfg.Identity
	if provider == nil {
		provider, err = identityFromEnv(logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	sink := telemetry.NewSink(store, logger.Named("analytics"))
	handler, err := compareapi.NewHandler(compareapi.Dependencies{
		Catalog:       catalog.NewProvider(store, mock, logger.Named("catalog")),
		Sessions:      session.NewRegistry(cfg.Source, store, logger.Named("session"), session.Limits{}),
		Sink:          sink,
		Identity:      provider,
		Logger:        logger.Named("http"),
		SecureCookies: cfg.SecureCookies,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpListener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		logger:       logger,
		httpListener: httpListener,
		httpServer: &http.Server{
			Handler:           handler.Routes(cfg.Service),
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		grpcListener: grpcListener,
		grpcServer:   grpcServer,
		health:       healthServer,
		sink:         sink,
		store:        store,
	}, nil
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the gRPC health listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a compare server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs both listeners until ctx is canceled or either server fails,
// then shuts both down.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	s.logger.Info("compare server listening",
		zap.String("http_addr", s.HTTPAddr()),
		zap.String("grpc_addr", s.GRPCAddr()),
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := s.httpServer.Serve(s.httpListener)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	})
	group.Go(func() error {
		err := s.grpcServer.Serve(s.grpcListener)
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases compare server resources. Pending analytics records are
// flushed before storage closes.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.sink != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		if err := s.sink.Close(flushCtx); err != nil {
			s.logger.Warn("flush analytics", zap.Error(err))
		}
		cancel()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("close compare store", zap.Error(err))
		}
	}
}

func identityFromEnv(logger *zap.Logger) (identity.Provider, error) {
	cfg, err := identity.LoadJWTConfigFromEnv(nil)
	if err != nil {
		return nil, err
	}
	if !cfg.Configured() {
		logger.Info("identity verifier not configured; serving anonymous sessions only")
		return nil, nil
	}
	return identity.NewJWTProvider(cfg)
}

func openCompareStore(ctx context.Context, path string) (*comparesqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := comparesqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open compare sqlite store: %w", err)
	}
	return store, nil
}
