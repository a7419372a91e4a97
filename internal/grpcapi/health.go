// Package grpcapi exposes the standard gRPC health service. The simulation
// service reports SERVING while the price simulator runs.
package grpcapi

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/efreitasn/papertrade/internal/engine"
)

// SimulationService is the health service name tracking the simulator.
const SimulationService = "papertrade.simulation"

// Health tracks process and simulator health. It is an engine.Listener.
type Health struct {
	engine.NopListener

	srv    *health.Server
	logger *slog.Logger
}

// NewHealth creates a Health with the process SERVING and the simulator
// NOT_SERVING until it reports otherwise.
func NewHealth(logger *slog.Logger) *Health {
	if logger == nil {
		logger = slog.Default()
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(SimulationService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Health{srv: srv, logger: logger}
}

// SimulationStateChanged flips the simulation service status.
func (h *Health) SimulationStateChanged(running bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if running {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus(SimulationService, status)
	h.logger.Debug("health status changed",
		slog.String("service", SimulationService),
		slog.String("status", status.String()),
	)
}

// Shutdown marks every service NOT_SERVING and ends active watches.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}

// NewServer creates a gRPC server with the health and reflection services
// registered.
func NewServer(h *Health) *grpc.Server {
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, h.srv)
	reflection.Register(server)
	return server
}

// Serve runs server on lis until ctx is cancelled, then stops it gracefully.
func Serve(ctx context.Context, server *grpc.Server, lis net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("grpc server listening", slog.String("addr", lis.Addr().String()))
		errCh <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		server.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
