// Package grpcserver runs the gRPC side of the host: the standard health
// service, reporting whether the bridge is serving, and server reflection.
package grpcserver

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/patric-chuzhbe/nativebridge/internal/grpcserver/interceptor"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "nativebridge"

type Server struct {
	*grpc.Server
	health *health.Server
}

// New builds a server with every service registered and reporting NOT_SERVING
// until MarkServing is called.
func New() *Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryLoggingInterceptor([]string{
				healthpb.Health_Check_FullMethodName,
			}),
		),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return &Server{Server: server, health: healthServer}
}

func (s *Server) MarkServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Listen opens addr for Serve.
func Listen(addr string) (net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for gRPC on %s: %w", addr, err)
	}
	return lis, nil
}

// Stop reports NOT_SERVING to watchers and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.GracefulStop()
}
