package server

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/registry"
)

// HealthService is the service name reported by the gRPC health server.
const HealthService = "model-registry"

// #region health-server

// NewHealthServer reports SERVING while the registry holds a model and follows
// every reload.
func NewHealthServer(reg *registry.Registry) *health.Server {
	hs := health.NewServer()
	set := func() {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if _, ok := reg.Current(); ok {
			status = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(HealthService, status)
	}
	set()
	reg.OnReload(func(registry.ModelInfo, error) { set() })
	return hs
}

// ServeHealth serves hs on lis until ctx is done.
func ServeHealth(ctx context.Context, lis net.Listener, hs *health.Server, logger *zerolog.Logger) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", lis.Addr().String()).Msg("grpc health server starting")
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		hs.Shutdown()
		srv.GracefulStop()
		return nil
	}
}

// ListenAndServeHealth listens on addr and calls ServeHealth.
func ListenAndServeHealth(ctx context.Context, addr string, hs *health.Server, logger *zerolog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return ServeHealth(ctx, lis, hs, logger)
}

// #endregion health-server

// #region health-client

// Probe asks a running server whether the model registry is serving.
func Probe(ctx context.Context, addr string, opts ...grpc.DialOption) (healthpb.HealthCheckResponse_ServingStatus, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus(), nil
}

// #endregion health-client
