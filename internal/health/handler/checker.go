package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside the overall "" status.
const ServiceName = "session-auth"

const pingTimeout = 2 * time.Second

// Pinger is used for readiness (e.g. the session store). Ping returns nil if the dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker tracks readiness from periodic pings and publishes it over gRPC health and HTTP.
type Checker struct {
	pinger Pinger
	grpc   *health.Server
	ready  atomic.Bool
}

// NewChecker returns a Checker. pinger may be nil; then the service is always ready.
// The checker starts not ready until the first Check.
func NewChecker(pinger Pinger) *Checker {
	c := &Checker{pinger: pinger, grpc: health.NewServer()}
	c.set(false)
	return c
}

// GRPCServer returns the grpc.health.v1 implementation to register on a gRPC server.
func (c *Checker) GRPCServer() *health.Server { return c.grpc }

// Ready reports the result of the last Check.
func (c *Checker) Ready() bool { return c.ready.Load() }

// Check pings the dependency once and updates readiness.
func (c *Checker) Check(ctx context.Context) error {
	var err error
	if c.pinger != nil {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = c.pinger.Ping(pctx)
		cancel()
	}
	if err != nil && c.Ready() {
		log.Printf("health: dependency unreachable: %v", err)
	}
	c.set(err == nil)
	return err
}

// Run checks immediately and then every interval until ctx is done, after which every
// service is reported NOT_SERVING.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	_ = c.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.ready.Store(false)
			c.grpc.Shutdown()
			return
		case <-ticker.C:
			_ = c.Check(ctx)
		}
	}
}

func (c *Checker) set(ok bool) {
	c.ready.Store(ok)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	c.grpc.SetServingStatus("", status)
	c.grpc.SetServingStatus(ServiceName, status)
}

// Liveness handles GET /healthz. It answers 200 while the process serves HTTP.
func (c *Checker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

// Readiness handles GET /readyz: 200 when the last check passed, 503 otherwise.
func (c *Checker) Readiness(w http.ResponseWriter, r *http.Request) {
	if !c.Ready() {
		writeStatus(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
