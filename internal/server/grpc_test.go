package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "session-auth/backend/internal/health/handler"
)

// mockServiceRegistrar implements reflection.GRPCServer for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
}

func (m *mockServiceRegistrar) GetServiceInfo() map[string]grpc.ServiceInfo {
	out := make(map[string]grpc.ServiceInfo, len(m.services))
	for _, s := range m.services {
		out[s] = grpc.ServiceInfo{}
	}
	return out
}

func TestRegisterServices_HealthAndReflection(t *testing.T) {
	mockReg := &mockServiceRegistrar{}
	RegisterServices(mockReg, healthhandler.NewChecker(nil))

	want := map[string]bool{
		"grpc.health.v1.Health":                    false,
		"grpc.reflection.v1.ServerReflection":      false,
		"grpc.reflection.v1alpha.ServerReflection": false,
	}
	for _, s := range mockReg.services {
		if _, ok := want[s]; ok {
			want[s] = true
		}
	}
	for s, seen := range want {
		if !seen {
			t.Errorf("%s not registered (got %v)", s, mockReg.services)
		}
	}
}

func TestGRPCServer_HealthCheck(t *testing.T) {
	checker := healthhandler.NewChecker(nil)
	if err := checker.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	srv := NewGRPCServer(checker)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: healthhandler.ServiceName})
	if err != nil {
		t.Fatalf("Health.Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.GetStatus())
	}
}
