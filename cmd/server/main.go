package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"session-auth/backend/internal/audit"
	"session-auth/backend/internal/config"
	"session-auth/backend/internal/db"
	healthhandler "session-auth/backend/internal/health/handler"
	identityhandler "session-auth/backend/internal/identity/handler"
	identityservice "session-auth/backend/internal/identity/service"
	"session-auth/backend/internal/security"
	"session-auth/backend/internal/server"
	"session-auth/backend/internal/server/middleware"
	sessionrepo "session-auth/backend/internal/session/repository"
	"session-auth/backend/internal/session/sweeper"
	"session-auth/backend/internal/telemetry/metrics"
	telemetryotel "session-auth/backend/internal/telemetry/otel"
	userrepo "session-auth/backend/internal/user/repository"
	"session-auth/backend/internal/user/seed"
)

const (
	redisKeyPrefix      = "sa"
	healthCheckInterval = 15 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	hasher, err := security.NewHasherFor(cfg.PasswordHash, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hasher: %v", err)
	}

	var conn *sql.DB
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer conn.Close()
	}

	var users identityservice.UserRepo
	if conn != nil {
		users = userrepo.NewPostgresRepository(conn)
	} else {
		mem := userrepo.NewMemoryRepository()
		if _, err := seed.Apply(ctx, mem, hasher, time.Now().UTC()); err != nil {
			log.Fatalf("seed: %v", err)
		}
		log.Println("no DATABASE_URL: using in-memory development users (alice, bob)")
		users = mem
	}

	sessions, closeSessions, err := openSessionStore(cfg, conn)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}
	defer closeSessions()

	verifier, err := identityservice.NewCredentialVerifier(users, hasher, cfg.PasswordHashConcurrency)
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}
	tokens, err := security.NewTokenProviderFromConfig(security.ProviderConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	m := metrics.New()
	auditLogger := audit.NewLogger(providers.LoggerProvider, middleware.ClientIPFrom)
	authSvc := identityservice.NewAuthService(verifier, sessions, tokens, auditLogger, m, identityservice.Options{
		SessionTTL:  cfg.SessionTTL,
		ReusePolicy: cfg.ReusePolicy,
	})

	checker := healthhandler.NewChecker(sessions)
	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHTTPHandler(server.HTTPDeps{
			Auth:         identityhandler.NewAuthHandler(authSvc),
			Tokens:       tokens,
			Health:       checker,
			Metrics:      m,
			LoginLimiter: middleware.NewIPRateLimiter(cfg.LoginRatePerSecond, cfg.LoginRateBurst),
			TrustProxy:   cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	grpcSrv := server.NewGRPCServer(checker)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		checker.Run(gctx, healthCheckInterval)
		return nil
	})
	if mem, ok := sessions.(*sessionrepo.MemoryRepository); ok {
		// No worker sweeps the in-process store.
		g.Go(func() error {
			sweeper.New(mem, cfg.SessionRetention, cfg.SweepInterval, m).Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		log.Printf("HTTP server listening on %s (session store: %s)", cfg.HTTPAddr, cfg.SessionStore)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}
	log.Println("servers stopped")
}

// openSessionStore returns the session repository selected by SESSION_STORE and a close function.
func openSessionStore(cfg *config.Config, conn *sql.DB) (sessionrepo.Repository, func(), error) {
	switch cfg.SessionStore {
	case config.StorePostgres:
		if conn == nil {
			return nil, nil, errors.New("SESSION_STORE=postgres requires DATABASE_URL")
		}
		return sessionrepo.NewPostgresRepository(conn), func() {}, nil
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return sessionrepo.NewRedisRepository(client, redisKeyPrefix, cfg.SessionRetention), func() { _ = client.Close() }, nil
	default:
		log.Println("SESSION_STORE=memory: sessions are lost on restart and not shared between instances")
		return sessionrepo.NewMemoryRepository(), func() {}, nil
	}
}
