package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type flakyDep struct {
	down atomic.Bool
}

func (f *flakyDep) Ping(context.Context) error {
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func startServer(t *testing.T, reporter *HealthReporter) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(reporter)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestHealthReporter_FlipsStatus(t *testing.T) {
	postgres := &flakyDep{}
	redis := &flakyDep{}
	reporter := NewHealthReporter(time.Hour, discardLogger(),
		Check{Name: "postgres", Ping: postgres.Ping},
		Check{Name: "redis", Ping: redis.Ping},
	)
	client := startServer(t, reporter)
	ctx := context.Background()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status, "not serving before the first probe")

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, reporter.Probe(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	redis.down.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, reporter.Probe(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	redis.down.Store(false)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, reporter.Probe(ctx))
}

func TestHealthReporter_RunProbesImmediately(t *testing.T) {
	var calls atomic.Int32
	reporter := NewHealthReporter(time.Hour, discardLogger(), Check{Name: "mongo", Ping: func(context.Context) error {
		calls.Add(1)
		return nil
	}})
	client := startServer(t, reporter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reporter.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, int32(1), calls.Load())
}

func TestHealthReporter_Shutdown(t *testing.T) {
	reporter := NewHealthReporter(time.Hour, discardLogger())
	client := startServer(t, reporter)
	ctx := context.Background()

	reporter.Probe(ctx)
	reporter.Shutdown()
	reporter.Probe(ctx)

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestHealthCheck_UnknownService(t *testing.T) {
	client := startServer(t, NewHealthReporter(time.Hour, discardLogger()))
	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Error(t, err)
}
