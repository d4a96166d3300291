package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthhandler "session-auth/backend/internal/health/handler"
)

// NewGRPCServer returns a gRPC server traced with otelgrpc and serving grpc.health.v1 from checker
// plus server reflection.
func NewGRPCServer(checker *healthhandler.Checker, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, checker)
	return s
}

// RegisterServices registers the health service and reflection with s.
func RegisterServices(s reflection.GRPCServer, checker *healthhandler.Checker) {
	healthpb.RegisterHealthServer(s, checker.GRPCServer())
	reflection.Register(s)
}
