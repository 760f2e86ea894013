package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/quote-compare/internal/repository"
)

// ServiceName is the health service name reported for the extraction API.
const ServiceName = "quotecompare.v1.Extraction"

// OpsServer is the gRPC listener for health checks and reflection.
type OpsServer struct {
	GRPC   *grpc.Server
	Health *health.Server
	db     *repository.DB
	logger *slog.Logger
}

func NewOpsServer(db *repository.DB, logger *slog.Logger) *OpsServer {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	// reflection for grpcurl
	reflection.Register(gs)
	return &OpsServer{GRPC: gs, Health: hs, db: db, logger: logger}
}

// Probe refreshes the serving status from a database health check.
func (o *OpsServer) Probe(ctx context.Context) {
	if o.db == nil {
		return
	}
	status := healthpb.HealthCheckResponse_SERVING
	if err := repository.HealthCheck(ctx, o.db, 2*time.Second, o.logger); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	o.Health.SetServingStatus(ServiceName, status)
}

// Serve listens on addr until ctx is done. The journal is probed every interval.
func (o *OpsServer) Serve(ctx context.Context, addr string, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	o.logger.Info("grpc.serve", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := o.GRPC.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return err
		case <-ticker.C:
			o.Probe(ctx)
		case <-ctx.Done():
			o.logger.Info("grpc.shutdown")
			o.Health.Shutdown()
			o.GRPC.GracefulStop()
			return nil
		}
	}
}
