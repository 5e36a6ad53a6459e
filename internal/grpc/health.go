package grpc

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service key reported next to the overall ("") status.
const ServiceName = "pawmart"

// Check is one dependency probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthReporter struct {
	server   *health.Server
	checks   []Check
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

func NewHealthReporter(interval time.Duration, log *slog.Logger, checks ...Check) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{
		server:   srv,
		checks:   checks,
		interval: interval,
		timeout:  2 * time.Second,
		log:      log,
	}
}

// Probe runs every check once and publishes the result. It returns the status it set.
func (h *HealthReporter) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for _, c := range h.checks {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := c.Ping(pingCtx)
		cancel()
		if err != nil {
			h.log.WarnContext(ctx, "dependency unhealthy", slog.String("dependency", c.Name), slog.Any("error", err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run probes immediately and then on every tick until ctx is done.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Probe(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}

// Shutdown marks everything NOT_SERVING and ignores later updates.
func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}

// NewServer builds the gRPC server carrying the health service and reflection.
func NewServer(reporter *HealthReporter) *grpc.Server {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(srv, reporter.server)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(srv)
	return srv
}
