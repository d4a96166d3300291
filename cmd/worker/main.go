// Worker periodically deletes Postgres sessions whose absolute expiry passed more than
// SESSION_RETENTION ago. Redis sessions expire through key TTLs, so with SESSION_STORE=redis or
// memory there is nothing to do. Set DATABASE_URL and SWEEP_INTERVAL; the sweep counter is served
// at HTTP_ADDR/metrics. The JWT secrets are required by config but unused.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"session-auth/backend/internal/config"
	"session-auth/backend/internal/db"
	sessionrepo "session-auth/backend/internal/session/repository"
	"session-auth/backend/internal/session/sweeper"
	"session-auth/backend/internal/telemetry/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.SessionStore != config.StorePostgres {
		log.Printf("worker: SESSION_STORE=%s needs no sweeping; exiting", cfg.SessionStore)
		return
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	m := metrics.New()
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("worker: metrics server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	sw := sweeper.New(sessionrepo.NewPostgresRepository(conn), cfg.SessionRetention, cfg.SweepInterval, m)
	log.Printf("worker: sweeping sessions every %s (retention %s)", cfg.SweepInterval, cfg.SessionRetention)
	sw.Run(ctx)
	log.Println("worker: stopped")
}
