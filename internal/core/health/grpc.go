package health

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	healthsvc "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"mcpd/internal/shared/logger"
	"mcpd/internal/shared/types"
)

// GRPCServer publishes the checker snapshot through the standard
// grpc.health.v1 service, so infrastructure probes (Kubernetes,
// grpc_health_probe) can watch the process without speaking MCP.
type GRPCServer struct {
	server *grpc.Server
	health *healthsvc.Server
	log    zerolog.Logger
}

func NewGRPCServer() *GRPCServer {
	hs := healthsvc.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &GRPCServer{
		server: gs,
		health: hs,
		log:    logger.WithComponent("grpc-health"),
	}
}

// Serve listens on addr and blocks until Stop is called.
func (g *GRPCServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc health listen failed: %w", err)
	}
	g.log.Info().Str("addr", addr).Msg("grpc health endpoint listening")
	return g.server.Serve(lis)
}

// Publish mirrors backend states into the grpc health service. The
// empty service name carries the overall status.
func (g *GRPCServer) Publish(states map[string]*types.BackendState) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, state := range states {
		status := healthpb.HealthCheckResponse_SERVING
		if state.Status != types.StatusUp {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		g.health.SetServingStatus(name, status)
	}
	g.health.SetServingStatus("", overall)
}

func (g *GRPCServer) Stop() {
	g.server.GracefulStop()
}
