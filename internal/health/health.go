// Package health serves the standard gRPC health service for the worker and keeps
// its status in line with database reachability.
package health

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported next to the overall ("") status.
const ServiceName = "taiga.telemetry.Worker"

// DefaultInterval is how often Checker pings the database when no interval is given.
const DefaultInterval = 15 * time.Second

// pingTimeout bounds a single readiness ping.
const pingTimeout = 3 * time.Second

// Pinger is used for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker flips the health status between SERVING and NOT_SERVING from periodic pings.
type Checker struct {
	server   *grpchealth.Server
	pinger   Pinger
	interval time.Duration

	mu   sync.Mutex
	last healthpb.HealthCheckResponse_ServingStatus
}

// NewChecker returns a Checker. A nil pinger always reports SERVING.
func NewChecker(pinger Pinger, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Checker{
		server:   grpchealth.NewServer(),
		pinger:   pinger,
		interval: interval,
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
}

// HealthServer returns the gRPC health implementation backed by this checker.
func (c *Checker) HealthServer() *grpchealth.Server { return c.server }

// Check pings once, publishes the resulting status, and returns it.
func (c *Checker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if c.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := c.pinger.PingContext(pingCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			log.Warn().Err(err).Msg("health: database ping failed")
		}
	}
	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)

	c.mu.Lock()
	if status != c.last {
		log.Info().Str("status", status.String()).Msg("health: status changed")
		c.last = status
	}
	c.mu.Unlock()
	return status
}

// Run checks immediately and then on every interval until ctx is done, when all services are
// marked NOT_SERVING.
func (c *Checker) Run(ctx context.Context) {
	c.Check(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// NewServer returns a gRPC server exposing the checker's health service, instrumented with otelgrpc.
func NewServer(c *Checker) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(LoggingUnary(map[string]bool{
			healthpb.Health_Check_FullMethodName: true,
		})),
	)
	healthpb.RegisterHealthServer(s, c.HealthServer())
	return s
}

// Serve listens on addr and serves the health service until ctx is done, then stops gracefully.
func Serve(ctx context.Context, addr string, c *Checker) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, lis, c)
}

func serve(ctx context.Context, lis net.Listener, c *Checker) error {
	s := NewServer(c)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Msg("health: gRPC server listening")
		errCh <- s.Serve(lis)
	}()
	select {
	case <-ctx.Done():
		s.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
