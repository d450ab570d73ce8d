package health

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer serves the standard gRPC health service. The empty service name
// reports the system status; each chain id is its own service.
type GRPCServer struct {
	port   int
	server *grpc.Server
	health *grpchealth.Server
}

// NewGRPCServer creates a gRPC health server.
func NewGRPCServer(port int) *GRPCServer {
	s := &GRPCServer{
		port:   port,
		server: grpc.NewServer(),
		health: grpchealth.NewServer(),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Update applies a health report to the served statuses.
func (s *GRPCServer) Update(report HealthReport) {
	s.health.SetServingStatus("", servingStatus(report.SystemStatus))
	for id, chain := range report.Chains {
		s.health.SetServingStatus(id, servingStatus(chain.Status))
	}
}

// Health exposes the underlying health service.
func (s *GRPCServer) Health() healthpb.HealthServer {
	return s.health
}

// Start listens and serves until Stop.
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.server.Serve(lis)
}

// Stop shuts the server down gracefully.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func servingStatus(status SystemStatus) healthpb.HealthCheckResponse_ServingStatus {
	if status == StatusCritical {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
