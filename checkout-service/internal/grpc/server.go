// Package grpc exposes the standard gRPC health and reflection services so
// orchestrators can probe checkout-service and its dependencies.
package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name for the checkout API as a whole.
const ServiceName = "checkout"

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

type Server struct {
	grpc   *gogrpc.Server
	health *health.Server
	probes map[string]Probe
	log    *slog.Logger
}

func NewServer(log *slog.Logger) *Server {
	s := &Server{
		grpc:   gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler())),
		health: health.NewServer(),
		probes: map[string]Probe{},
		log:    log,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// AddProbe registers a dependency reported as its own health service. It
// starts NOT_SERVING until the first successful check.
func (s *Server) AddProbe(name string, p Probe) {
	s.probes[name] = p
	s.health.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Watch runs every probe each interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.checkAll(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.checkAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) checkAll(ctx context.Context) {
	for name, probe := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := probe(pctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.log.WarnContext(ctx, "dependency unhealthy", "dependency", name, "error", err)
		}
		s.health.SetServingStatus(name, status)
	}
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop flips every service to NOT_SERVING before draining.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
